package triage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/k3a/html2text"

	"github.com/kerbelp/z-mail-agent/internal/llm"
	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
	"github.com/kerbelp/z-mail-agent/internal/rules"
)

// Classifier evaluates the message under the cursor against the
// ordered rule set: rules are a priority-ordered, mutually-exclusive
// decision list, and the first positive match wins. Per-call timeouts
// belong to the service (the retry decorator bounds each attempt).
type Classifier struct {
	provider provider.Provider
	rules    *rules.Store
	service  llm.Service
}

// NewClassifier creates a classifier.
func NewClassifier(
	p provider.Provider,
	store *rules.Store,
	service llm.Service,
) *Classifier {
	return &Classifier{
		provider: p,
		rules:    store,
		service:  service,
	}
}

// Classify judges the current message. A nil result means
// classification failed: the dispatcher must not mark the message
// processed, so the next run retries it. A broken rule reference is
// terminal instead: retrying cannot fix the rule file, so the message
// is skipped and marked. Rate-limit failures are logged but not
// recorded in the run errors; the retry decorator around the service
// has already retried them.
func (c *Classifier) Classify(
	ctx context.Context, state *RunState,
) *model.Classification {
	msg, ok := state.CurrentMessage()
	if !ok {
		// Loop controller violation; act as a defensive boundary.
		return nil
	}

	log.Printf(
		"classifying message %d/%d: %s (from %s)",
		state.Cursor+1, len(state.Messages), msg.Subject, msg.FromAddress,
	)

	// Body fetch fails soft: classification proceeds on subject only.
	body, err := c.provider.FetchBody(ctx, msg.ID, msg.FolderRef)
	if err != nil {
		log.Printf("fetching body for message %s: %v", msg.ID, err)
		body = ""
	}

	userText := fmt.Sprintf(
		"Subject: %s\n\nContent:\n%s", msg.Subject, textify(body),
	)

	for _, rule := range c.rules.Rules() {
		prompt, err := c.rules.LoadText(rule.PromptRef)
		if err != nil {
			state.appendError(
				"loading prompt for rule %q: %v", rule.Name, err,
			)
			// A broken rule reference cannot heal by retrying the
			// message, so skip it terminally; the dispatcher marks it.
			return &model.Classification{
				RuleName:  rule.Name,
				Reasoning: fmt.Sprintf("prompt %q unavailable", rule.PromptRef),
				Action:    model.ActionSkip,
			}
		}

		judgment, err := c.service.Classify(ctx, prompt, userText)
		if err != nil {
			if llm.IsRateLimited(err) {
				log.Printf(
					"rate limited classifying message %s against rule %q: %v",
					msg.ID, rule.Name, err,
				)
				return nil
			}
			state.appendError(
				"classifying message %s: %v", msg.ID, err,
			)
			return nil
		}

		if judgment.Match {
			log.Printf(
				"message %s matched rule %q (confidence %.2f)",
				msg.ID, rule.Name, judgment.Confidence,
			)
			return &model.Classification{
				RuleName:         rule.Name,
				Confidence:       judgment.Confidence,
				Reasoning:        judgment.Reasoning,
				Action:           rule.Action,
				ReplyTemplateRef: rule.ReplyTemplateRef,
			}
		}
	}

	return model.Unclassified()
}

// textify renders an HTML body as plain text for the model; plain text
// passes through untouched.
func textify(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}
	return strings.TrimSpace(html2text.HTML2Text(body))
}
