package vision

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

const questionPlaceholder = "{{question}}"

// PromptSet holds the prompts for one response language.
type PromptSet struct {
	Scene       string `yaml:"scene"`
	Question    string `yaml:"question"`
	Instruction string `yaml:"instruction"`
}

// Prompts builds prompt text for auto descriptions and user questions.
type Prompts struct {
	lang string
	set  PromptSet
}

// LoadPrompts returns the embedded prompts for lang ("en" or "hi").
func LoadPrompts(lang string) (*Prompts, error) {
	return ParsePrompts(promptsYAML, lang)
}

// ParsePrompts reads a YAML prompt catalogue keyed by language.
func ParsePrompts(data []byte, lang string) (*Prompts, error) {
	var catalogue map[string]PromptSet
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	set, ok := catalogue[lang]
	if !ok {
		langs := make([]string, 0, len(catalogue))
		for k := range catalogue {
			langs = append(langs, k)
		}
		sort.Strings(langs)
		return nil, fmt.Errorf("no prompts for language %q (have %s)", lang, strings.Join(langs, ", "))
	}
	if set.Scene == "" || !strings.Contains(set.Question, questionPlaceholder) {
		return nil, fmt.Errorf("prompts for %q need a scene prompt and a question template containing %s", lang, questionPlaceholder)
	}
	return &Prompts{lang: lang, set: set}, nil
}

// Language returns the response language code.
func (p *Prompts) Language() string { return p.lang }

// Scene returns the prompt used for automatic descriptions.
func (p *Prompts) Scene() string {
	return p.withInstruction(p.set.Scene)
}

// Question returns the prompt used to answer a user question about the frame.
func (p *Prompts) Question(q string) string {
	q = strings.TrimRight(strings.TrimSpace(q), "?.! ")
	return p.withInstruction(strings.ReplaceAll(p.set.Question, questionPlaceholder, q))
}

func (p *Prompts) withInstruction(s string) string {
	if p.set.Instruction == "" {
		return s
	}
	return s + "\n\n" + p.set.Instruction
}
