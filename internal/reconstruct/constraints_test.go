package reconstruct

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLettersOf(t *testing.T) {
	assert.Equal(t, "dehlorw", LettersOf("Hello, World!").String())
	assert.Equal(t, 0, LettersOf("1234 !!").Len())
	assert.True(t, LettersOf("Zebra").Contains('z'))
	assert.False(t, LettersOf("Zebra").Contains('Z'))
}

func TestFromMessages(t *testing.T) {
	c := FromMessages([]string{"Hi!", "123", "", "aaa bbb"})

	require.Len(t, c, 4)
	assert.Equal(t, "hi", c[0].String())
	assert.Equal(t, 0, c[1].Len())
	assert.Equal(t, 0, c[2].Len())
	assert.Equal(t, "ab", c[3].String())
}

func TestReversed(t *testing.T) {
	c := sets("a", "b", "c")
	r := c.Reversed()

	assert.Equal(t, "c", r[0].String())
	assert.Equal(t, "a", c[0].String())
}

func TestParseConstraints(t *testing.T) {
	c, err := ParseConstraints(strings.NewReader("ab\n\nXyz\n"))
	require.NoError(t, err)

	require.Len(t, c, 3)
	assert.Equal(t, "ab", c[0].String())
	assert.Equal(t, 0, c[1].Len())
	assert.Equal(t, "xyz", c[2].String())
	assert.Equal(t, "ab\n\nxyz\n", c.Key())
}

func TestConstraintsJSON(t *testing.T) {
	c := sets("ba", "", "c")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `["ab","","c"]`, string(data))

	var back Constraints
	require.NoError(t, json.Unmarshal([]byte(`["zyx","q"]`), &back))
	assert.Equal(t, "xyz", back[0].String())
	assert.True(t, back[1].Contains('q'))

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}
