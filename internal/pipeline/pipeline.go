// Package pipeline answers one question end to end: synthesize a query, run
// it, then compose the answer. Stages run strictly in sequence and nothing
// is retried.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tableqa/tableqa/internal/nl2sql"
	"github.com/tableqa/tableqa/internal/observability"
	"github.com/tableqa/tableqa/internal/retrieval"
)

type State string

const (
	StateIdle         State = "idle"
	StateSynthesizing State = "synthesizing"
	StateExecuting    State = "executing"
	StateComposing    State = "composing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

type Transition struct {
	From State
	To   State
}

// Observer sees every state change of every question. It is called
// synchronously and must not block.
type Observer func(ctx context.Context, transition Transition)

type Retriever interface {
	Translate(ctx context.Context, question string) (nl2sql.Result, error)
	Execute(ctx context.Context, sqlText string) (retrieval.Retrieval, error)
}

type Composer interface {
	Compose(ctx context.Context, question, result string) (string, error)
}

type Response struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Result   string `json:"result"`
	Answer   string `json:"answer"`
}

type Options struct {
	Logger   *slog.Logger
	Observer Observer
	// MaxInFlight caps concurrently processed questions; 0 means no cap.
	MaxInFlight int
}

type Pipeline struct {
	retriever Retriever
	composer  Composer
	logger    *slog.Logger
	observer  Observer
	slots     *semaphore.Weighted
}

func New(retriever Retriever, composer Composer, opts Options) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if opts.MaxInFlight < 0 {
		return nil, fmt.Errorf("max in-flight must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{retriever: retriever, composer: composer, logger: logger, observer: opts.Observer}
	if opts.MaxInFlight > 0 {
		p.slots = semaphore.NewWeighted(int64(opts.MaxInFlight))
	}
	return p, nil
}

// Ask returns a non-empty answer or a *Error naming exactly one kind. The
// question is passed on exactly as given.
func (p *Pipeline) Ask(ctx context.Context, question string) (Response, error) {
	if strings.TrimSpace(question) == "" {
		observability.ObserveAsk(string(KindValidation), 0)
		return Response{}, &Error{Kind: KindValidation, Stage: StateIdle, Err: ErrEmptyQuestion}
	}

	start := time.Now()
	observability.IncInFlight()
	defer observability.DecInFlight()

	r := &run{pipeline: p, ctx: ctx, state: StateIdle}
	response, err := r.execute(question)
	elapsed := time.Since(start)

	if err != nil {
		kind, _ := KindOf(err)
		observability.ObserveAsk(string(kind), elapsed)
		p.logger.WarnContext(ctx, "question failed",
			slog.String("kind", string(kind)),
			slog.String("sql", response.SQL),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return response, err
	}
	observability.ObserveAsk("ok", elapsed)
	p.logger.InfoContext(ctx, "question answered",
		slog.String("sql", response.SQL),
		slog.Int("result_bytes", len(response.Result)),
		slog.Duration("elapsed", elapsed),
	)
	return response, nil
}

// run tracks the state of a single question.
type run struct {
	pipeline *Pipeline
	ctx      context.Context
	state    State
}

func (r *run) execute(question string) (Response, error) {
	p := r.pipeline
	response := Response{Question: question}

	r.enter(StateSynthesizing)
	if p.slots != nil {
		if err := p.slots.Acquire(r.ctx, 1); err != nil {
			return response, r.fail(KindSynthesis, fmt.Errorf("wait for pipeline slot: %w", err))
		}
		defer p.slots.Release(1)
	}
	stageStart := time.Now()
	translated, err := p.retriever.Translate(r.ctx, question)
	observability.ObserveStage(string(StateSynthesizing), time.Since(stageStart))
	if err != nil {
		return response, r.fail(KindSynthesis, err)
	}
	response.SQL = translated.SQL

	r.enter(StateExecuting)
	stageStart = time.Now()
	retrieved, err := p.retriever.Execute(r.ctx, translated.SQL)
	observability.ObserveStage(string(StateExecuting), time.Since(stageStart))
	if err != nil {
		return response, r.fail(KindDataAccess, err)
	}
	// The caller may have left while the store was answering.
	if err := r.ctx.Err(); err != nil {
		return response, r.fail(KindDataAccess, fmt.Errorf("request ended before composing: %w", err))
	}
	response.Result = retrieved.Result
	observability.ObserveRetrievedResult(len(retrieved.Result))

	r.enter(StateComposing)
	stageStart = time.Now()
	answer, err := p.composer.Compose(r.ctx, question, retrieved.Result)
	observability.ObserveStage(string(StateComposing), time.Since(stageStart))
	if err != nil {
		return response, r.fail(KindGeneration, err)
	}
	if strings.TrimSpace(answer) == "" {
		return response, r.fail(KindGeneration, ErrEmptyAnswer)
	}
	response.Answer = answer

	r.enter(StateDone)
	return response, nil
}

func (r *run) enter(next State) {
	prev := r.state
	r.state = next
	if r.pipeline.observer != nil {
		r.pipeline.observer(r.ctx, Transition{From: prev, To: next})
	}
}

func (r *run) fail(kind Kind, err error) error {
	stage := r.state
	r.enter(StateFailed)
	return &Error{Kind: kind, Stage: stage, Err: err}
}
