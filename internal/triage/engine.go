package triage

import (
	"context"
	"fmt"

	"github.com/kerbelp/z-mail-agent/internal/llm"
	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
	"github.com/kerbelp/z-mail-agent/internal/rules"
)

// Engine composes the ingest -> classify -> dispatch -> loop control
// flow over a single run. Messages are processed strictly sequentially:
// the provider and classification service are rate limited externally,
// and sequential processing keeps the marker side effect ordered after
// the classification that produced it, so a batch can never double-reply.
type Engine struct {
	ingestor   *Ingestor
	classifier *Classifier
	dispatcher *Dispatcher
}

// Deps carries the collaborators and configuration an Engine needs.
// The Service is expected to arrive already decorated with per-attempt
// timeouts and rate-limit retries.
type Deps struct {
	Provider provider.Provider
	Rules    *rules.Store
	Service  llm.Service
	Run      model.RunConfig
}

// NewEngine wires up the run components.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		ingestor: NewIngestor(
			deps.Provider, deps.Run.BatchLimit, model.MarkerID(deps.Run.MarkerID),
		),
		classifier: NewClassifier(deps.Provider, deps.Rules, deps.Service),
		dispatcher: NewDispatcher(deps.Provider, deps.Rules, deps.Run),
	}
}

// Run executes one bounded triage pass. The run only fails fatally when
// ingestion itself fails; every later failure is accumulated in the
// summary and the batch continues.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	state, err := e.ingestor.Ingest(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("ingesting messages: %w", err)
	}

	for Next(state) == Continue {
		cls := e.classifier.Classify(ctx, state)
		e.dispatcher.Dispatch(ctx, state, cls)
	}

	return state.summary(), nil
}
