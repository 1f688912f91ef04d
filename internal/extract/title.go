package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const siteSuffix = " - GoFundMe"

var ogTitlePattern = regexp.MustCompile(`(?i)<meta[^>]*property="og:title"[^>]*content="([^"]+)"`)

// titleStrategy returns the og:title content as written in the markup
// (entities left encoded) and whether it was found.
type titleStrategy func(rawHTML string) (string, bool)

var titleStrategies = []titleStrategy{ogTitleByPattern, ogTitleByDocument}

func ogTitleByPattern(rawHTML string) (string, bool) {
	m := ogTitlePattern.FindStringSubmatch(rawHTML)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ogTitleByDocument covers meta tags that list content before property.
// The parser decodes attribute values, so the result is escaped again to
// match what ogTitleByPattern returns.
func ogTitleByDocument(rawHTML string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", false
	}
	content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if !ok {
		return "", false
	}
	return html.EscapeString(content), true
}

// FindTitle returns the page's og:title without the site suffix, or nil when
// the page has none.
func FindTitle(rawHTML string) *string {
	for _, strategy := range titleStrategies {
		raw, ok := strategy(rawHTML)
		if !ok {
			continue
		}
		title := cleanTitle(raw)
		if title == "" {
			continue
		}
		return &title
	}
	return nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, siteSuffix)
	return strings.TrimSpace(s)
}
