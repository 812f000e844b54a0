package stageagents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractGoSource_StripsFence(t *testing.T) {
	text := "```go\npackage main\n\nfunc main() {}\n```"
	assert.Equal(t, "package main\n\nfunc main() {}", extractGoSource(text))
}

func TestExtractGoSource_NoFence(t *testing.T) {
	text := "package main\n"
	assert.Equal(t, "package main", extractGoSource(text))
}

func TestTokenHashOverlap(t *testing.T) {
	a := "func add(a int, b int) int { return a + b }"
	assert.Equal(t, 1.0, tokenHashOverlap(a, a))
	assert.Equal(t, 0.0, tokenHashOverlap(a, "completely unrelated text here"))
}
