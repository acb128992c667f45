package tokenize

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func keywordSet(tokens []Token) []string {
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t.Text] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestSplit_HierarchicalDelimiters(t *testing.T) {
	tokens := Tokens("a-b/c")
	assert.ElementsMatch(t, []string{"a-b/c", "a-b", "c", "a", "b"}, keywordSet(tokens))
}

func TestSplit_EmailLikeValue(t *testing.T) {
	tokens := Tokens("user@example.com")
	assert.ElementsMatch(t, []string{"user@example.com", "user", "example.com", "example", "com"}, keywordSet(tokens))
}

func TestSplit_RootSkipOnImmediateLevel0Split(t *testing.T) {
	tokens := Tokens("hello world")
	assert.ElementsMatch(t, []string{"hello", "world"}, keywordSet(tokens))
	assert.Len(t, tokens, 2)
}

func TestSplit_EmptyCellProducesNoKeywords(t *testing.T) {
	assert.Empty(t, Tokens(""))
}

func TestSplit_SingleUnsplitWord(t *testing.T) {
	tokens := Tokens("hello")
	assert.Len(t, tokens, 1)
	assert.Equal(t, "hello", tokens[0].Text)
	assert.False(t, tokens[0].HasParent)
}

func TestSplit_ParentLinkage(t *testing.T) {
	tokens := Tokens("a-b/c")
	byText := make(map[string]Token, len(tokens))
	for _, tok := range tokens {
		byText[tok.Text] = tok
	}

	root := byText["a-b/c"]
	assert.False(t, root.HasParent)

	ab := byText["a-b"]
	assert.True(t, ab.HasParent)
	assert.Equal(t, "a-b/c", ab.Parent)

	a := byText["a"]
	assert.True(t, a.HasParent)
	assert.Equal(t, "a-b", a.Parent)

	c := byText["c"]
	assert.True(t, c.HasParent)
	assert.Equal(t, "a-b/c", c.Parent)
}

func TestParentSplitLevel(t *testing.T) {
	level, ok := ParentSplitLevel(BitRoot)
	assert.False(t, ok)
	assert.Equal(t, 0, level)

	level, ok = ParentSplitLevel(BitRoot | BitLevel0)
	assert.True(t, ok)
	assert.Equal(t, 0, level)

	level, ok = ParentSplitLevel(BitLevel1 | BitLevel2)
	assert.True(t, ok)
	assert.Equal(t, 1, level)
}

func TestIsDelimiter_NonASCIINeverDelimits(t *testing.T) {
	assert.False(t, IsDelimiter(0, 'é'))
	assert.False(t, IsDelimiter(3, '日'))
}
