package reconstruct

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
)

// LetterSet is the set of characters allowed at one text position. It is
// kept sorted and free of duplicates so iteration order is deterministic.
type LetterSet []rune

// NewLetterSet builds a set from the given runes.
func NewLetterSet(runes ...rune) LetterSet {
	s := slices.Clone(runes)
	slices.Sort(s)
	return LetterSet(slices.Compact(s))
}

// LettersOf returns the distinct lowercase letters of text.
func LettersOf(text string) LetterSet {
	var runes []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			runes = append(runes, r)
		}
	}
	return NewLetterSet(runes...)
}

// Contains reports whether r is in the set.
func (s LetterSet) Contains(r rune) bool {
	_, found := slices.BinarySearch(s, r)
	return found
}

// Len returns the number of letters in the set.
func (s LetterSet) Len() int { return len(s) }

func (s LetterSet) String() string { return string(s) }

// MarshalJSON encodes the set as a string of its letters.
func (s LetterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts the string form written by MarshalJSON.
func (s *LetterSet) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("letter set must be a string: %w", err)
	}
	*s = NewLetterSet([]rune(str)...)
	return nil
}

// Constraints is the ordered sequence of per-position letter sets. The
// engine honours the order exactly; what it means is up to the caller.
type Constraints []LetterSet

// FromMessages derives one letter set per message text, in the order given.
// A text with no letters yields an empty set.
func FromMessages(texts []string) Constraints {
	c := make(Constraints, len(texts))
	for i, t := range texts {
		c[i] = LettersOf(t)
	}
	return c
}

// Reversed returns a copy of c in the opposite order.
func (c Constraints) Reversed() Constraints {
	out := slices.Clone(c)
	slices.Reverse(out)
	return out
}

// Key is a stable textual form of c, one set per line.
func (c Constraints) Key() string {
	var b strings.Builder
	for _, s := range c {
		b.WriteString(string(s))
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseConstraints reads one position per line; the letters of each line
// form that position's set. Blank lines are empty sets.
func ParseConstraints(r io.Reader) (Constraints, error) {
	var c Constraints
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		c = append(c, LettersOf(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading constraints: %w", err)
	}
	return c, nil
}
