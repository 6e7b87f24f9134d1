package trie

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// ReadWords reads one word per line, lowercasing and trimming each. Blank
// lines and lines starting with '#' are skipped. Duplicates are kept; Insert
// ignores them.
func ReadWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading word list: %w", err)
	}
	return words, nil
}

// LoadFile builds a trie from a word-list file. An empty path yields a
// root-only trie.
func LoadFile(path string) (*Trie, []string, error) {
	if path == "" {
		return New(), nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening word list %s: %w", path, err)
	}
	defer f.Close()
	words, err := ReadWords(f)
	if err != nil {
		return nil, nil, err
	}
	return New(words...), words, nil
}

// Fingerprint identifies a word list independent of order and duplicates.
func Fingerprint(words []string) string {
	sorted := slices.Clone(words)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	h := sha256.New()
	for _, w := range sorted {
		h.Write([]byte(w))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
