package fsg_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/jsgf"
)

func TestCompiledGrammarRoundTrip(t *testing.T) {
	g, err := jsgf.Parse(`#JSGF V1.0;
grammar cmd;
public <cmd> = [please] (open | close) <object> [now];
<object> = /3/ the (door | "o'clock" window) | /1/ it;
`)
	require.NoError(t, err)
	m, err := g.CompileFSG()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	back, err := fsg.Read(&buf)
	require.NoError(t, err)
	require.NoError(t, back.Validate())

	for _, words := range [][]string{
		{"open", "it"},
		{"please", "close", "the", "door", "now"},
		{"open", "the", "o'clock", "window"},
	} {
		assert.True(t, m.Matches(words), "compiled grammar rejects %v", words)
		assert.True(t, back.Matches(words), "round trip rejects %v", words)
	}
	for _, words := range [][]string{
		{"please"},
		{"open", "the"},
		{"close", "it", "it"},
	} {
		assert.False(t, back.Matches(words), "round trip accepts %v", words)
	}
	assert.Equal(t, m.Vocabulary(), back.Vocabulary())
}
