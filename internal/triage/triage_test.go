package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/rules"
)

// fakeProvider records every call so tests can assert which side
// effects a run produced.
type fakeProvider struct {
	unread   []model.Message
	fetchErr error

	bodies  map[string]string
	bodyErr error

	replyErr error
	markErr  error

	fetchLimits []int
	replies     []string
	readIDs     []string
	marked      []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchUnread(_ context.Context, limit int) ([]model.Message, error) {
	f.fetchLimits = append(f.fetchLimits, limit)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.unread) {
		return f.unread[:limit], nil
	}
	return f.unread, nil
}

func (f *fakeProvider) FetchBody(_ context.Context, messageID, _ string) (string, error) {
	if f.bodyErr != nil {
		return "", f.bodyErr
	}
	return f.bodies[messageID], nil
}

func (f *fakeProvider) SendReply(_ context.Context, _, toAddress, _, _ string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, toAddress)
	return nil
}

func (f *fakeProvider) MarkRead(_ context.Context, messageID string) error {
	f.readIDs = append(f.readIDs, messageID)
	return nil
}

func (f *fakeProvider) ApplyMarker(
	_ context.Context, messageID, _ string, _ model.MarkerID,
) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, messageID)
	return nil
}

// fakeService answers classification calls through a function hook and
// counts how often it was consulted.
type fakeService struct {
	calls int
	fn    func(systemPrompt, userText string) (model.Judgment, error)
}

func (f *fakeService) Classify(
	_ context.Context, systemPrompt, userText string,
) (model.Judgment, error) {
	f.calls++
	return f.fn(systemPrompt, userText)
}

// loadRuleSet writes a rule file plus its referenced texts into a temp
// directory and loads it. Prompt files contain their own name so fakes
// can tell rules apart by system prompt.
func loadRuleSet(t *testing.T, entries []model.ClassificationRule) *rules.Store {
	t.Helper()

	dir := t.TempDir()

	yaml := "rules:\n"
	for _, r := range entries {
		yaml += fmt.Sprintf(
			"  - name: %s\n    priority: %d\n    prompt: %s\n    action: %s\n",
			r.Name, r.Priority, r.PromptRef, r.Action,
		)
		if r.ReplyTemplateRef != "" {
			yaml += fmt.Sprintf("    reply_template: %s\n", r.ReplyTemplateRef)
		}

		writeRef(t, dir, r.PromptRef)
		if r.ReplyTemplateRef != "" {
			writeRef(t, dir, r.ReplyTemplateRef)
		}
	}

	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := rules.Load(path)
	if err != nil {
		t.Fatalf("loading rule set: %v", err)
	}
	return store
}

func writeRef(t *testing.T, dir, ref string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ref), []byte(ref), 0o600); err != nil {
		t.Fatal(err)
	}
}

// matchByPrompt builds a service hook that matches exactly when the
// system prompt equals the given prompt reference text.
func matchByPrompt(ref string, confidence float64) func(string, string) (model.Judgment, error) {
	return func(systemPrompt, _ string) (model.Judgment, error) {
		if systemPrompt == ref {
			return model.Judgment{
				Match:      true,
				Confidence: confidence,
				Reasoning:  "matched " + ref,
			}, nil
		}
		return model.Judgment{Match: false}, nil
	}
}

func neverMatch(string, string) (model.Judgment, error) {
	return model.Judgment{Match: false}, nil
}

var errBoom = errors.New("boom")
