package triage

import (
	"context"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// TestEngineRunTwoMessageBatch walks a full run: one message matches
// the reply rule, the other falls through to the unclassified skip.
func TestEngineRunTwoMessageBatch(t *testing.T) {
	store := loadRuleSet(t, []model.ClassificationRule{
		{Name: "inquiry", Priority: 1, PromptRef: "inquiry.txt", Action: model.ActionReply, ReplyTemplateRef: "inquiry_reply.txt"},
	})

	p := &fakeProvider{
		unread: []model.Message{
			{ID: "m1", FromAddress: "alice@example.com", Subject: "pricing question"},
			{ID: "m2", FromAddress: "bob@example.com", Subject: "weekly digest"},
		},
		bodies: map[string]string{
			"m1": "How much does the standard plan cost?",
			"m2": "Here is what happened this week.",
		},
	}

	svc := &fakeService{fn: func(_, userText string) (model.Judgment, error) {
		match := strings.Contains(userText, "pricing")
		return model.Judgment{Match: match, Confidence: 0.95, Reasoning: "test"}, nil
	}}

	cfg := liveRunConfig()
	cfg.BatchLimit = 10
	engine := NewEngine(Deps{
		Provider: p,
		Rules:    store,
		Service:  svc,
		Run:      cfg,
	})

	summary, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}
	if summary.Replied != 1 {
		t.Errorf("replied = %d, want 1", summary.Replied)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("errors = %v", summary.Errors)
	}
	if len(p.replies) != 1 || p.replies[0] != "alice@example.com" {
		t.Errorf("replies = %v, want [alice@example.com]", p.replies)
	}
	// Both messages end up marked: one replied, one skipped.
	if len(p.marked) != 2 {
		t.Errorf("marked = %v, want both messages", p.marked)
	}
}

func TestEngineRunIngestFailureIsFatal(t *testing.T) {
	store := loadRuleSet(t, []model.ClassificationRule{
		{Name: "any", Priority: 1, PromptRef: "any.txt", Action: model.ActionSkip},
	})
	engine := NewEngine(Deps{
		Provider: &fakeProvider{fetchErr: errBoom},
		Rules:    store,
		Service:  &fakeService{fn: neverMatch},
		Run:      liveRunConfig(),
	})

	if _, err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error from failed ingest")
	}
}

// TestEngineRunAlwaysTerminates drives the engine over random batches
// with random per-message outcomes and checks the loop invariants: the
// run halts, every ingested message is processed exactly once, and the
// replied count never exceeds the processed count.
func TestEngineRunAlwaysTerminates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		batch := rapid.IntRange(0, 20).Draw(rt, "batch")
		outcomes := rapid.SliceOfN(
			rapid.SampledFrom([]string{"match", "nomatch", "error"}),
			batch, batch,
		).Draw(rt, "outcomes")
		replyFails := rapid.Bool().Draw(rt, "replyFails")

		store := loadRuleSet(t, []model.ClassificationRule{
			{Name: "inquiry", Priority: 1, PromptRef: "inquiry.txt", Action: model.ActionReply, ReplyTemplateRef: "inquiry_reply.txt"},
		})

		p := &fakeProvider{unread: msgs(batch)}
		if replyFails {
			p.replyErr = errBoom
		}
		call := 0
		svc := &fakeService{fn: func(string, string) (model.Judgment, error) {
			outcome := outcomes[call%len(outcomes)]
			call++
			switch outcome {
			case "match":
				return model.Judgment{Match: true, Confidence: 0.5}, nil
			case "error":
				return model.Judgment{}, errBoom
			default:
				return model.Judgment{Match: false}, nil
			}
		}}

		cfg := liveRunConfig()
		cfg.BatchLimit = batch
		if batch == 0 {
			cfg.BatchLimit = 1
		}

		engine := NewEngine(Deps{
			Provider: p,
			Rules:    store,
			Service:  svc,
			Run:      cfg,
		})

		summary, err := engine.Run(context.Background())
		if err != nil {
			rt.Fatal(err)
		}

		if summary.Processed != batch {
			rt.Errorf("processed %d of a %d message batch", summary.Processed, batch)
		}
		if summary.Replied > summary.Processed {
			rt.Errorf("replied %d > processed %d", summary.Replied, summary.Processed)
		}
	})
}

// TestRunStateInvariant checks that advance keeps the cursor and
// processed count locked together from any reachable state.
func TestRunStateInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(rt, "n")
		state := newRunState(msgs(n))

		for Next(state) == Continue {
			if state.Cursor != state.ProcessedCount {
				rt.Fatalf(
					"cursor %d != processed %d at loop boundary",
					state.Cursor, state.ProcessedCount,
				)
			}
			if _, ok := state.CurrentMessage(); !ok {
				rt.Fatalf("no current message at cursor %d of %d", state.Cursor, n)
			}
			state.advance()
		}

		if state.Cursor != n || state.ProcessedCount != n {
			rt.Fatalf(
				"terminal state cursor=%d processed=%d, want %d",
				state.Cursor, state.ProcessedCount, n,
			)
		}
		if _, ok := state.CurrentMessage(); ok {
			rt.Fatal("current message available past the end of the batch")
		}
	})
}
