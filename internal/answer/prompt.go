package answer

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/tableqa/tableqa/internal/llm"
)

const (
	inputVar   = "human_input"
	contextVar = "db_context"
)

// DefaultTemplateText keeps the question and the evidence in separate
// labeled sections.
const DefaultTemplateText = "Input:\n{{." + inputVar + "}}\n\nContext:\n{{." + contextVar + "}}\n\nOutput:"

type Template struct {
	prompt prompts.PromptTemplate
}

// NewTemplate parses a Go template that references both .human_input and
// .db_context.
func NewTemplate(text string) (Template, error) {
	for _, name := range []string{inputVar, contextVar} {
		if !strings.Contains(text, "."+name) {
			return Template{}, fmt.Errorf("answer template must reference .%s", name)
		}
	}
	tpl := Template{prompt: prompts.NewPromptTemplate(text, []string{inputVar, contextVar})}
	if _, err := tpl.Format("q", "c"); err != nil {
		return Template{}, fmt.Errorf("parse answer template: %w", err)
	}
	return tpl, nil
}

func DefaultTemplate() Template {
	tpl, err := NewTemplate(DefaultTemplateText)
	if err != nil {
		panic(err)
	}
	return tpl
}

func (t Template) IsZero() bool {
	return t.prompt.Template == ""
}

func (t Template) Format(question, result string) (string, error) {
	return t.prompt.Format(map[string]any{
		inputVar:   question,
		contextVar: result,
	})
}

// BuildMessages returns the system framing followed by one user message.
// The question only ever reaches the user message.
func BuildMessages(framing Framing, template Template, question, result string) ([]llm.Message, error) {
	user, err := template.Format(question, result)
	if err != nil {
		return nil, fmt.Errorf("format answer prompt: %w", err)
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: framing.SystemPrompt()},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
