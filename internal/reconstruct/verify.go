package reconstruct

import (
	"strings"
)

// DefaultWildcards are the characters that match any position.
const DefaultWildcards = "_?*"

// Verification reports how a candidate text lines up with a constraint
// sequence.
type Verification struct {
	Valid bool `json:"valid"`
	// FirstMismatch is the position index of the first failing letter, or
	// -1 when nothing failed.
	FirstMismatch int `json:"first_mismatch"`
	// Mismatches lists every failing position index in order.
	Mismatches []int `json:"mismatches,omitempty"`
	// Checked is the number of positions compared: the overlap of the
	// text's letters and the constraint sequence.
	Checked int `json:"checked"`
}

// Verify checks text against constraints using DefaultWildcards.
func Verify(constraints Constraints, text string) Verification {
	return VerifyWith(constraints, text, DefaultWildcards)
}

// VerifyWith checks text against constraints position by position. The text
// is lowercased first. Spaces are word boundaries: they match nothing and
// consume no position, mirroring how the search inserts them. A wildcard
// consumes its position and always passes. Comparison stops at the shorter
// of the two sequences; every mismatch within that overlap is recorded.
func VerifyWith(constraints Constraints, text string, wildcards string) Verification {
	v := Verification{Valid: true, FirstMismatch: -1}
	pos := 0
	for _, r := range strings.ToLower(text) {
		if pos >= len(constraints) {
			break
		}
		if r == ' ' {
			continue
		}
		if !strings.ContainsRune(wildcards, r) && !constraints[pos].Contains(r) {
			if v.Valid {
				v.FirstMismatch = pos
			}
			v.Valid = false
			v.Mismatches = append(v.Mismatches, pos)
		}
		pos++
	}
	v.Checked = pos
	return v
}
