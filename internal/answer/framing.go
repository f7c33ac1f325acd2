// Package answer composes the final natural-language answer from a question
// and the retrieved result.
package answer

import (
	"fmt"
	"strings"
)

// Framing is the fixed persona delivered as the system message. It is set
// per deployment and never derived from a question.
type Framing struct {
	Domain string
	Fields []string
}

func (f Framing) Validate() error {
	if strings.TrimSpace(f.Domain) == "" {
		return fmt.Errorf("framing domain is required")
	}
	if len(f.Fields) == 0 {
		return fmt.Errorf("framing needs at least one field")
	}
	return nil
}

func (f Framing) SystemPrompt() string {
	return fmt.Sprintf(
		"You are a %s data expert. Your task is to analyze and answer user questions using the following columns:\n\n- %s\n\nUse the provided context to give a concise and clear answer.\n",
		strings.TrimSpace(f.Domain),
		strings.Join(f.Fields, ", "),
	)
}
