package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"hey", "what_s", "up", "2day"}, Words("Hey!! what_s UP, 2day?"))
	assert.Equal(t, []string{"don", "t"}, Words("don't"))
	assert.Empty(t, Words("  ... !!! "))
}

func TestUniqueTokens(t *testing.T) {
	assert.Equal(t, []string{"lol", "ok"}, UniqueTokens("lol LOL ok lol", Options{}))
	assert.Equal(t, []string{"lol"}, UniqueTokens("lol LOL ok lol", Options{MinLength: 3}))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"cat", "hat"}, Tokenize("The cat and THE hat", Options{SkipStopWords: true}))
	assert.Equal(t, []string{"bb", "ccc"}, Tokenize("a bb ccc", Options{MinLength: 2}))
	// rune length, not bytes
	assert.Equal(t, []string{"éé"}, Tokenize("é éé", Options{MinLength: 2}))
	assert.Equal(t, []string{"the", "cat"}, Tokenize("the cat", Options{}))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("groupme"))
}

func BenchmarkWords(b *testing.B) {
	text := "Distributed search engines process queries across multiple shards to achieve horizontal scalability"
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Words(text)
	}
}
