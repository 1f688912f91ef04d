package extract

import (
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/discrapp/discr-site/internal/campaign"
)

// Fields is the raw outcome of matching a page. A nil field was not found on
// the page; it only becomes a default in Resolve.
type Fields struct {
	Title         *string
	AmountRaised  *float64
	GoalAmount    *float64
	DonationCount *float64
}

// Resolve fills misses from d and derives the percentage.
func (f Fields) Resolve(d campaign.Defaults) campaign.Snapshot {
	s := d.Snapshot()
	if f.Title != nil {
		s.Title = *f.Title
	}
	if f.AmountRaised != nil {
		s.AmountRaised = *f.AmountRaised
	}
	if f.GoalAmount != nil {
		s.GoalAmount = *f.GoalAmount
	}
	if f.DonationCount != nil {
		s.DonationCount = *f.DonationCount
	}
	s.PercentComplete = campaign.PercentComplete(s.AmountRaised, s.GoalAmount)
	return s
}

// amountRule is one step of the amount search. apply reports whether the
// rule matched; later rules are skipped after the first match.
type amountRule struct {
	name  string
	apply func(text string, f *Fields) bool
}

// Word gaps use the same space class as StripHTML.
var (
	progressPattern = regexp.MustCompile(`(?i)\$?([\d,]+)` + space + `+raised` + space + `+of` + space + `+\$?([\d,]+)`)
	raisedPattern   = regexp.MustCompile(`(?i)\$?([\d,]+)` + space + `+raised`)
	goalPattern     = regexp.MustCompile(`(?i)of` + space + `+\$?([\d,]+)`)
	donationPattern = regexp.MustCompile(`(?i)([\d,]+)` + space + `+donation`)
)

// amountRules is ordered: the combined "X raised of Y" phrase wins over the
// independent searches.
var amountRules = []amountRule{
	{name: "progress", apply: matchProgress},
	{name: "separate", apply: matchSeparate},
}

func matchProgress(text string, f *Fields) bool {
	m := progressPattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	f.AmountRaised = number(m[1])
	f.GoalAmount = number(m[2])
	return true
}

func matchSeparate(text string, f *Fields) bool {
	matched := false
	if m := raisedPattern.FindStringSubmatch(text); m != nil {
		f.AmountRaised = number(m[1])
		matched = true
	}
	if m := goalPattern.FindStringSubmatch(text); m != nil {
		f.GoalAmount = number(m[1])
		matched = true
	}
	return matched
}

func matchDonations(text string, f *Fields) {
	if m := donationPattern.FindStringSubmatch(text); m != nil {
		f.DonationCount = number(m[1])
	}
}

// MatchText runs the amount rules and the donation search against
// normalized text. It does not look for a title.
func MatchText(text string) Fields {
	var f Fields
	for _, r := range amountRules {
		if r.apply(text, &f) {
			log.Debug().Str("rule", r.name).Msg("amount rule matched")
			break
		}
	}
	matchDonations(text, &f)
	return f
}

func number(s string) *float64 {
	v := ExtractNumber(s)
	return &v
}
