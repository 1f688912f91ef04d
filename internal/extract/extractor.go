package extract

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/discrapp/discr-site/internal/campaign"
)

// Extractor turns a fetched campaign page into a snapshot. ok is false when
// the page could not be parsed at all; missing fields are not a failure.
type Extractor interface {
	Extract(rawHTML string) (snap campaign.Snapshot, ok bool)
}

// Parser is the pattern-based Extractor for campaign pages.
type Parser struct {
	Defaults campaign.Defaults
}

// NewParser returns a Parser that fills misses from d.
func NewParser(d campaign.Defaults) *Parser {
	return &Parser{Defaults: d}
}

// Extract implements Extractor.
func (p *Parser) Extract(rawHTML string) (campaign.Snapshot, bool) {
	f, err := p.Match(rawHTML)
	if err != nil {
		log.Warn().Err(err).Msg("campaign page parse failed")
		return campaign.Snapshot{}, false
	}
	return f.Resolve(p.Defaults), true
}

// Match collects the raw fields from a page. Any panic raised while matching
// is returned as an error.
func (p *Parser) Match(rawHTML string) (f Fields, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = Fields{}
			err = fmt.Errorf("extract: %v", r)
		}
	}()
	f = MatchText(StripHTML(rawHTML))
	f.Title = FindTitle(rawHTML)
	return f, nil
}
