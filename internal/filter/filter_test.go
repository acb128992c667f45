package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_SmallVocabularyUsesExactSet(t *testing.T) {
	f := Build([]string{"b", "a", "c"}, DefaultErrorRate)
	assert.True(t, f.IsExact())
	assert.True(t, f.MightContain("a"))
	assert.True(t, f.MightContain("b"))
	assert.False(t, f.MightContain("z"))
}

func TestBuild_LargeVocabularyUsesBloom(t *testing.T) {
	keywords := make([]string, MinKeywordsForBloom)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword-%d", i)
	}
	f := Build(keywords, DefaultErrorRate)
	assert.False(t, f.IsExact())

	for _, kw := range keywords {
		assert.True(t, f.MightContain(kw))
	}
}

func TestMightContain_NoFalseNegatives(t *testing.T) {
	keywords := make([]string, 500)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("kw-%d", i)
	}
	f := Build(keywords, 0.05)
	for _, kw := range keywords {
		assert.True(t, f.MightContain(kw), "false negative for %q", kw)
	}
}

func TestExactSetMarshalRoundTrip(t *testing.T) {
	f := Build([]string{"one", "two", "three"}, DefaultErrorRate)
	enc, err := f.Marshal()
	assert.NoError(t, err)

	decoded, err := Unmarshal(enc)
	assert.NoError(t, err)
	assert.True(t, decoded.IsExact())
	assert.True(t, decoded.MightContain("one"))
	assert.False(t, decoded.MightContain("missing"))
}

func TestBloomFilterMarshalRoundTrip(t *testing.T) {
	keywords := make([]string, 200)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("kw-%d", i)
	}
	f := Build(keywords, DefaultErrorRate)
	enc, err := f.Marshal()
	assert.NoError(t, err)

	decoded, err := Unmarshal(enc)
	assert.NoError(t, err)
	assert.False(t, decoded.IsExact())
	for _, kw := range keywords {
		assert.True(t, decoded.MightContain(kw))
	}
}

func TestNilFilterNeverContainsAnything(t *testing.T) {
	var f *Filter
	assert.False(t, f.MightContain("anything"))
}

func TestBloomParams(t *testing.T) {
	m, k := bloomParams(1000, 0.01)
	assert.Greater(t, m, uint(0))
	assert.GreaterOrEqual(t, k, uint(1))
}
