package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// space matches one whitespace character of the wider Unicode set that
// browsers treat as blank: ASCII whitespace, vertical tab, every Zs space
// separator (U+00A0, U+3000 and friends), the line and paragraph separators
// and the byte-order mark. RE2's \s alone covers only [\t\n\f\r ].
const space = `[\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]`

var (
	commentPattern    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(space + `+`)
	numberPattern     = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)
)

// StripHTML turns an HTML document into plain text suitable for pattern
// search. Comments are dropped, every tag becomes a single space and all
// whitespace runs (Unicode spaces included) collapse to one space. Leading
// and trailing spaces are kept. This is a best-effort strip, not a parser:
// a tag runs from '<' to the next '>'.
func StripHTML(html string) string {
	text := commentPattern.ReplaceAllString(html, "")
	text = tagPattern.ReplaceAllString(text, " ")
	return whitespacePattern.ReplaceAllString(text, " ")
}

// ExtractNumber returns the first number found in text after removing
// thousands separators, or 0 when text holds no digits.
func ExtractNumber(text string) float64 {
	m := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
