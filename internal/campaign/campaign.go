package campaign

import (
	"errors"
	"math"
	"strings"
)

// Snapshot is the campaign record served to the funding banner. It is built
// fresh for every request and never mutated after construction.
type Snapshot struct {
	Title           string  `json:"title"`
	AmountRaised    float64 `json:"amountRaised"`
	GoalAmount      float64 `json:"goalAmount"`
	DonationCount   float64 `json:"donationCount"`
	PercentComplete int     `json:"percentComplete"`
	URL             string  `json:"url"`
	// Fallback marks a page that was fetched but could not be parsed.
	Fallback bool `json:"fallback,omitempty"`
	// Error marks a failed fetch (network error or non-2xx upstream status).
	Error bool `json:"error,omitempty"`
}

// Defaults carries the business constants used whenever a field cannot be
// recovered from the page. They are tied to one specific campaign and must be
// configured explicitly.
type Defaults struct {
	Title      string
	GoalAmount float64
	URL        string
}

// Validate reports missing or out-of-range defaults.
func (d Defaults) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("campaign fallback title is required")
	}
	if strings.TrimSpace(d.URL) == "" {
		return errors.New("campaign url is required")
	}
	if d.GoalAmount < 0 {
		return errors.New("campaign goal must not be negative")
	}
	return nil
}

// Snapshot returns the all-defaults record with no outcome flag set.
func (d Defaults) Snapshot() Snapshot {
	return Snapshot{
		Title:           d.Title,
		AmountRaised:    0,
		GoalAmount:      d.GoalAmount,
		DonationCount:   0,
		PercentComplete: 0,
		URL:             d.URL,
	}
}

// FallbackSnapshot is the record for a reachable page that did not parse.
func (d Defaults) FallbackSnapshot() Snapshot {
	s := d.Snapshot()
	s.Fallback = true
	return s
}

// ErrorSnapshot is the record for a failed fetch.
func (d Defaults) ErrorSnapshot() Snapshot {
	s := d.Snapshot()
	s.Error = true
	return s
}

// PercentComplete returns raised/goal as a whole percentage, rounded half up.
// A zero (or negative) goal yields 0. Ratios beyond the int range saturate at
// math.MaxInt or math.MinInt.
func PercentComplete(raised, goal float64) int {
	if goal <= 0 {
		return 0
	}
	p := math.Floor(raised/goal*100 + 0.5)
	switch {
	case math.IsNaN(p):
		return 0
	case p >= maxIntFloat:
		return math.MaxInt
	case p < -maxIntFloat:
		return math.MinInt
	}
	return int(p)
}

// maxIntFloat is 2^63 on 64-bit platforms, the first float64 past math.MaxInt.
const maxIntFloat = float64(math.MaxInt) + 1
