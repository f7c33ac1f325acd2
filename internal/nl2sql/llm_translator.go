package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/tableqa/tableqa/internal/llm"
	"github.com/tableqa/tableqa/internal/sqlguard"
)

const defaultTopK = 5

const systemTemplate = `You are a {{.dialect}} expert. Given an input question, write one syntactically correct {{.dialect}} query that answers it.
Rules:
- Query only the single table described by the user. Never reference any other table.
- Write a read-only SELECT statement. Never modify data or schema.
- Unless the question asks for a specific number of rows, return at most {{.top_k}} rows using LIMIT.
- Never select all columns; select only the columns needed to answer the question.
- Wrap each column name in {{.quote}} to denote it as a delimited identifier.
- Use only column names that appear in the table description.
- Use {{.today}} if the question involves "today".
Return only the SQL query, with no markdown and no explanation.`

const userTemplate = `Only use the following table:
{{.table_info}}

Question: {{.input}}
SQLQuery:`

type dialectHints struct {
	name  string
	quote string
	today string
}

var hintsByDialect = map[string]dialectHints{
	"mysql":    {name: "MySQL", quote: "backticks (`)", today: "CURDATE()"},
	"postgres": {name: "PostgreSQL", quote: `double quotes (")`, today: "CURRENT_DATE"},
	"duckdb":   {name: "DuckDB", quote: `double quotes (")`, today: "current_date"},
}

type LLMConfig struct {
	Model string
	TopK  int
}

// LLMTranslator asks a language model for the query and screens the answer
// with sqlguard before handing it out.
type LLMTranslator struct {
	client llm.Client
	model  string
	topK   int
	system prompts.PromptTemplate
	user   prompts.PromptTemplate
}

var _ Translator = (*LLMTranslator)(nil)

func NewLLMTranslator(client llm.Client, cfg LLMConfig) (*LLMTranslator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &LLMTranslator{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
		topK:   topK,
		system: prompts.NewPromptTemplate(systemTemplate, []string{"dialect", "top_k", "quote", "today"}),
		user:   prompts.NewPromptTemplate(userTemplate, []string{"table_info", "input"}),
	}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	if req.Table.IsZero() {
		return Result{}, fmt.Errorf("table descriptor is required")
	}

	messages, err := t.buildMessages(req)
	if err != nil {
		return Result{}, err
	}
	// Temperature is always 0.
	raw, err := t.client.Complete(ctx, llm.ChatRequest{
		Model:    t.model,
		Messages: messages,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate sql: %w", err)
	}

	sqlText := sqlguard.Normalize(raw)
	if err := sqlguard.CheckReadOnly(sqlText); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidSQL, err)
	}
	return Result{
		SQL:      sqlText,
		Provider: t.client.Provider(),
		Model:    t.client.Model(),
	}, nil
}

func (t *LLMTranslator) buildMessages(req Request) ([]llm.Message, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = t.topK
	}
	hints, ok := hintsByDialect[req.Table.Dialect()]
	if !ok {
		hints = dialectHints{name: "SQL", quote: `double quotes (")`, today: "CURRENT_DATE"}
	}

	system, err := t.system.Format(map[string]any{
		"dialect": hints.name,
		"top_k":   topK,
		"quote":   hints.quote,
		"today":   hints.today,
	})
	if err != nil {
		return nil, fmt.Errorf("format system prompt: %w", err)
	}
	user, err := t.user.Format(map[string]any{
		"table_info": req.Table.Render(),
		"input":      req.Question,
	})
	if err != nil {
		return nil, fmt.Errorf("format user prompt: %w", err)
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
