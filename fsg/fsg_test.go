package fsg

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greeting accepts "hello world" and "hi world", plus "hi" alone via a
// second final state.
func greeting(t *testing.T) *Model {
	t.Helper()
	m := New("greeting", 4, 0)
	require.NoError(t, m.AddTransition(0, 1, "hello", math.Log(0.5)))
	require.NoError(t, m.AddTransition(0, 2, "hi", math.Log(0.5)))
	require.NoError(t, m.AddNull(2, 1, 0))
	require.NoError(t, m.AddTransition(1, 3, "world", 0))
	m.SetFinal(3)
	m.SetFinal(2)
	return m
}

func TestMatches(t *testing.T) {
	m := greeting(t)
	tests := []struct {
		words []string
		want  bool
	}{
		{[]string{"hello", "world"}, true},
		{[]string{"hi", "world"}, true},
		{[]string{"hi"}, true},
		{[]string{"hello"}, false},
		{[]string{"bye", "world"}, false},
		{[]string{"hello", "world", "world"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Matches(tt.words), "%v", tt.words)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, greeting(t).Validate())

	m := New("cycle", 3, 0)
	require.NoError(t, m.AddNull(0, 1, 0))
	require.NoError(t, m.AddNull(1, 0, 0))
	require.NoError(t, m.AddTransition(1, 2, "a", 0))
	m.SetFinal(2)
	assert.True(t, errors.Is(m.Validate(), ErrEpsilonCycle))

	m = New("island", 3, 0)
	require.NoError(t, m.AddTransition(0, 1, "a", 0))
	m.SetFinal(2)
	assert.True(t, errors.Is(m.Validate(), ErrUnreachableFinal))

	assert.True(t, errors.Is(New("empty", 1, 0).Validate(), ErrNoFinal))
}

func TestNullClosure(t *testing.T) {
	m := New("chain", 3, 0)
	require.NoError(t, m.AddNull(0, 1, math.Log(0.5)))
	require.NoError(t, m.AddNull(1, 2, math.Log(0.5)))
	require.NoError(t, m.AddNull(0, 2, math.Log(0.1)))
	paths := m.NullClosure(0)
	require.Len(t, paths, 3)
	assert.Equal(t, 2, paths[2].To)
	assert.InDelta(t, math.Log(0.25), paths[2].LogProb, 1e-12)
}

func TestNewLinear(t *testing.T) {
	m := NewLinear("align", []string{"go", "forward", "ten"})
	require.NoError(t, m.Validate())
	assert.True(t, m.Matches([]string{"go", "forward", "ten"}))
	assert.False(t, m.Matches([]string{"go", "ten"}))
	assert.Equal(t, []string{"forward", "go", "ten"}, m.Vocabulary())
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := greeting(t)
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	assert.Contains(t, buf.String(), "FINAL_STATE 4")

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.Name())
	assert.Equal(t, 5, got.NumStates())
	for _, words := range [][]string{
		{"hello", "world"}, {"hi", "world"}, {"hi"}, {"hello"}, {"world"},
	} {
		assert.Equal(t, m.Matches(words), got.Matches(words), "%v", words)
	}
}

func TestWriteRejectsSpacedWord(t *testing.T) {
	m := New("spaced", 2, 0)
	require.NoError(t, m.AddTransition(0, 1, "new york", 0))
	m.SetFinal(1)
	var buf bytes.Buffer
	assert.Error(t, m.Write(&buf))
	assert.Zero(t, buf.Len())
}

func TestReadAbbreviated(t *testing.T) {
	src := `# turtle grammar
FSG_BEGIN turtle
N 3
S 0
F 2
T 0 1 1.0 go
T 1 2 0.5 left
T 1 2 0.5 right
FSG_END
`
	m, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, m.Matches([]string{"go", "right"}))
	assert.Equal(t, 3, m.NumTransitions())
}

func TestReadErrors(t *testing.T) {
	tests := []string{
		"FSG_BEGIN x\nSTART_STATE 0\nFSG_END\n",
		"FSG_BEGIN x\nNUM_STATES 2\nSTART_STATE 0\nTRANSITION 0 1 2.0 a\nFSG_END\n",
		"FSG_BEGIN x\nNUM_STATES 2\nSTART_STATE 0\nBOGUS\nFSG_END\n",
	}
	for _, src := range tests {
		_, err := Read(strings.NewReader(src))
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "expected ParseError for %q, got %v", src, err)
	}
}
