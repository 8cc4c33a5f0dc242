package triage

import (
	"context"
	"log"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
	"github.com/kerbelp/z-mail-agent/internal/rules"
)

// Dispatcher executes the terminal action named by a classification and
// advances the cursor. Provider calls are attempted once per message
// per run; the dispatcher never retries them.
type Dispatcher struct {
	provider provider.Provider
	rules    *rules.Store
	cfg      model.RunConfig
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	p provider.Provider, store *rules.Store, cfg model.RunConfig,
) *Dispatcher {
	return &Dispatcher{
		provider: p,
		rules:    store,
		cfg:      cfg,
	}
}

// Dispatch executes the action for the message under the cursor. A nil
// classification is treated as skip without marking, so the message is
// reconsidered on the next run. Whatever happens, the cursor and
// processed count advance exactly once.
func (d *Dispatcher) Dispatch(
	ctx context.Context, state *RunState, cls *model.Classification,
) {
	msg, ok := state.CurrentMessage()
	if !ok {
		// Loop controller violation; nothing to dispatch.
		return
	}

	if cls == nil {
		log.Printf(
			"skipping message %s without marking: classification failed, will retry next run",
			msg.ID,
		)
		state.advance()
		return
	}

	switch cls.Action {
	case model.ActionReply:
		d.handleReply(ctx, state, msg, cls)
	case model.ActionSkip:
		log.Printf(
			"skipping message %s (rule %q): %s", msg.ID, cls.RuleName, cls.Reasoning,
		)
		d.applyMarker(ctx, msg)
	case model.ActionForward, model.ActionLabel:
		// Recognized but not yet implemented; the message is still
		// considered handled so the run does not revisit it.
		log.Printf(
			"action %q not implemented, skipping message %s (rule %q)",
			cls.Action, msg.ID, cls.RuleName,
		)
		d.applyMarker(ctx, msg)
	default:
		log.Printf(
			"unrecognized action %q for message %s (rule %q), skipping",
			cls.Action, msg.ID, cls.RuleName,
		)
		d.applyMarker(ctx, msg)
	}

	state.advance()
}

// handleReply loads the reply template and sends the reply. Template
// problems fall back to skip-with-marking: a broken template would
// otherwise make the message loop forever across runs. A failed send
// leaves the message unmarked so the next run retries it, but the
// cursor still advances to finish this batch.
func (d *Dispatcher) handleReply(
	ctx context.Context,
	state *RunState,
	msg model.Message,
	cls *model.Classification,
) {
	log.Printf(
		"handling reply for message %s from %s (rule %q)",
		msg.ID, msg.FromAddress, cls.RuleName,
	)

	if cls.ReplyTemplateRef == "" {
		log.Printf("rule %q names no reply template", cls.RuleName)
		state.appendError(
			"rule %q: reply action without a reply template", cls.RuleName,
		)
		d.applyMarker(ctx, msg)
		return
	}

	body, err := d.rules.LoadText(cls.ReplyTemplateRef)
	if err != nil {
		log.Printf("loading reply template %q: %v", cls.ReplyTemplateRef, err)
		state.appendError(
			"loading reply template %q: %v", cls.ReplyTemplateRef, err,
		)
		d.applyMarker(ctx, msg)
		return
	}

	if d.cfg.DryRun || !d.cfg.SendReply {
		log.Printf(
			"[DRY RUN] would reply to %s (dry_run=%t, send_reply=%t)",
			msg.FromAddress, d.cfg.DryRun, d.cfg.SendReply,
		)
		state.RepliedCount++
		d.applyMarker(ctx, msg)
		return
	}

	if err := d.provider.SendReply(
		ctx, msg.ID, msg.FromAddress, msg.Subject, body,
	); err != nil {
		log.Printf("sending reply to %s: %v", msg.FromAddress, err)
		state.appendError("failed to reply to %s: %v", msg.FromAddress, err)
		return
	}

	log.Printf("sent reply to %s", msg.FromAddress)
	state.RepliedCount++

	if err := d.provider.MarkRead(ctx, msg.ID); err != nil {
		log.Printf("marking message %s read: %v", msg.ID, err)
	}

	d.applyMarker(ctx, msg)
}

// applyMarker attaches the processed marker to a message. Marker
// application is best-effort: a missing marker ID or a provider failure
// degrades idempotency but never fails the run, and is never recorded
// in the run errors.
func (d *Dispatcher) applyMarker(ctx context.Context, msg model.Message) {
	if !d.cfg.AddLabel {
		log.Printf(
			"[SKIP] would mark message %s processed (add_label=false)", msg.ID,
		)
		return
	}

	if d.cfg.MarkerID == "" {
		log.Printf(
			"marker ID not configured - skipping marker application for message %s",
			msg.ID,
		)
		return
	}

	if d.cfg.DryRun {
		log.Printf(
			"[DRY RUN] would mark message %s processed with %q", msg.ID, d.cfg.MarkerID,
		)
		return
	}

	if err := d.provider.ApplyMarker(
		ctx, msg.ID, msg.FolderRef, model.MarkerID(d.cfg.MarkerID),
	); err != nil {
		log.Printf("applying marker to message %s: %v", msg.ID, err)
		return
	}

	log.Printf("marked message %s processed", msg.ID)
}
