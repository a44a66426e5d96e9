package vision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptsEnglish(t *testing.T) {
	p, err := LoadPrompts("en")
	require.NoError(t, err)
	assert.Equal(t, "en", p.Language())

	scene := p.Scene()
	assert.True(t, strings.HasPrefix(scene, "Describe what you see in this image in detail."))
	assert.Contains(t, scene, "potential hazards")
	assert.True(t, strings.HasSuffix(scene, "Please respond in English."))

	q := p.Question("what color is the cup?")
	assert.Contains(t, q, "Looking at this image, please answer: what color is the cup. Be descriptive and helpful.")
	assert.True(t, strings.HasSuffix(q, "Please respond in English."))
}

func TestLoadPromptsHindi(t *testing.T) {
	p, err := LoadPrompts("hi")
	require.NoError(t, err)
	assert.Contains(t, p.Scene(), "Hindi")
}

func TestLoadPromptsUnknownLanguage(t *testing.T) {
	_, err := LoadPrompts("fr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "en, hi")
}

func TestParsePromptsValidation(t *testing.T) {
	_, err := ParsePrompts([]byte("en:\n  scene: look\n  question: no placeholder\n"), "en")
	assert.Error(t, err)

	_, err = ParsePrompts([]byte(":::"), "en")
	assert.Error(t, err)

	p, err := ParsePrompts([]byte("en:\n  scene: look\n  question: \"answer {{question}}\"\n"), "en")
	require.NoError(t, err)
	assert.Equal(t, "look", p.Scene())
	assert.Equal(t, "answer hi", p.Question("hi?"))
}
