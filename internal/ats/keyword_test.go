package ats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords_PreservesTechTokens(t *testing.T) {
	kw := extractKeywords("Experienced in C++, C#, Node.js and the Go toolchain.")
	assert.True(t, kw["c++"])
	assert.True(t, kw["node.js"])
	assert.True(t, kw["toolchain"])
	assert.False(t, kw["the"])
	assert.False(t, kw["go"], "two-letter tokens are dropped")
}

func TestScoreKeywords(t *testing.T) {
	out := scoreKeywords("python django postgres", "python postgres kubernetes")
	assert.Equal(t, []string{"postgres", "python"}, out.Matching)
	assert.Equal(t, []string{"kubernetes"}, out.Missing)
	assert.InDelta(t, 0.5, out.Score, 0.0001)

	empty := scoreKeywords("", "")
	assert.Zero(t, empty.Score)
}

func TestNormalizeJobDescription(t *testing.T) {
	assert.Equal(t, "Plain text JD", NormalizeJobDescription("  Plain text JD \n"))
	assert.Equal(t, "Use a < b comparisons", NormalizeJobDescription("Use a < b comparisons"))

	md := NormalizeJobDescription("<p>We need <strong>Go</strong> skills</p><ul><li>gRPC</li></ul>")
	assert.Contains(t, md, "**Go**")
	assert.Contains(t, md, "gRPC")
	assert.NotContains(t, md, "<p>")
}
