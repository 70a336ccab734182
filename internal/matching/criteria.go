// internal/matching/criteria.go
package matching

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MatchesCriteria reports whether an associate's interest tags overlap a
// demand's criteria. Comparison is collation based so case, accents and
// width differences do not break a match ("console" matches "Console",
// "cafe" matches "café").
//
// An empty set on either side matches everything: a demand without tags
// reaches every associate in range, and an associate without tags hears
// about every demand in range.
func MatchesCriteria(demandCriteria, associateCriteria []string, tag language.Tag) bool {
	if len(demandCriteria) == 0 || len(associateCriteria) == 0 {
		return true
	}
	c := collate.New(tag, collate.Loose)
	for _, want := range demandCriteria {
		for _, have := range associateCriteria {
			if c.CompareString(want, have) == 0 {
				return true
			}
		}
	}
	return false
}
