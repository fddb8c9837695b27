package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("hello   \n\t world"))
}

func TestNormalizeStripsMarkdown(t *testing.T) {
	got := Normalize("**Bold** and _italic_ with a [link](https://example.com) and `code`.")
	assert.Equal(t, "Bold and italic with a link and .", got)
}

func TestNormalizeDropsCodeFences(t *testing.T) {
	got := Normalize("Before.\n```go\nfunc main() {}\n```\nAfter.")
	assert.Equal(t, "Before. After.", got)
}

func TestNormalizeDropsEmoji(t *testing.T) {
	got := Normalize("Great idea! 🎉🚀 Let's do it.")
	assert.Equal(t, "Great idea! Let's do it.", got)
}

func TestNormalizeKeepsPunctuationAndCurrency(t *testing.T) {
	got := Normalize("That costs $5.50, right? Yes: 10% off!")
	assert.Equal(t, "That costs $5.50, right? Yes: 10% off!", got)
}
