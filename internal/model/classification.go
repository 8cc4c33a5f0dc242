package model

import "fmt"

// Action is the terminal action a classification rule assigns to a
// matching message. The set is closed; dispatch switches over it
// exhaustively.
type Action string

const (
	ActionReply   Action = "reply"
	ActionSkip    Action = "skip"
	ActionForward Action = "forward"
	ActionLabel   Action = "label"
)

// ParseAction validates a configured action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionReply, ActionSkip, ActionForward, ActionLabel:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ClassificationRule is one ordered entry of the rule set. Rules are
// loaded once per run and read-only afterwards.
type ClassificationRule struct {
	// Name uniquely identifies the rule.
	Name string

	// Priority orders evaluation; lower values are tried first.
	// Ties are broken by declaration order in the rule file.
	Priority int

	// Description is a human-readable note, not used in matching.
	Description string

	// PromptRef references the system-prompt text for this rule.
	PromptRef string

	// Action is executed when the rule matches.
	Action Action

	// ReplyTemplateRef references the reply body text. Required when
	// Action is ActionReply, empty otherwise.
	ReplyTemplateRef string
}

// Judgment is the structured output of a single classification call.
// It is transient: consumed immediately by the waterfall, never stored.
type Judgment struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classification is the final verdict for one message. A nil
// *Classification means classification failed: the message must not be
// acted on and must not be marked processed, so a later run retries it.
type Classification struct {
	RuleName         string
	Confidence       float64
	Reasoning        string
	Action           Action
	ReplyTemplateRef string
}

// UnclassifiedRuleName is the synthetic rule name emitted when no rule
// in the waterfall matched.
const UnclassifiedRuleName = "unclassified"

// Unclassified is the fallback verdict after the waterfall is exhausted
// without a match.
func Unclassified() *Classification {
	return &Classification{
		RuleName:   UnclassifiedRuleName,
		Confidence: 1.0,
		Reasoning:  "No classification matched",
		Action:     ActionSkip,
	}
}
