package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeepsExplicitMarkdown(t *testing.T) {
	md, err := Derive("<p>ignored</p>", "# mine")
	require.NoError(t, err)
	require.Equal(t, "# mine", md)
}

func TestDerivePlainContent(t *testing.T) {
	md, err := Derive("just text, 2 < 3", "")
	require.NoError(t, err)
	require.Equal(t, "just text, 2 < 3", md)
}

func TestDeriveConvertsHTML(t *testing.T) {
	md, err := Derive("<h1>Title</h1><p>Some <strong>bold</strong> text</p>", "")
	require.NoError(t, err)
	require.Contains(t, md, "# Title")
	require.Contains(t, md, "**bold**")
}

func TestLooksLikeHTML(t *testing.T) {
	require.True(t, LooksLikeHTML("<p>x</p>"))
	require.True(t, LooksLikeHTML("line<br/>break"))
	require.False(t, LooksLikeHTML("a <b"))
	require.False(t, LooksLikeHTML("plain"))
}
