// Package extract recovers campaign figures from a fundraising page.
//
// Pages are reduced to whitespace-normalized text with StripHTML and then
// searched with an ordered list of phrase patterns ("$X raised of $Y", then
// "$X raised" and "of $Y" independently, and "N donations"). Fields that do
// not match keep their configured defaults. The display title comes from the
// raw page's og:title meta tag.
package extract
