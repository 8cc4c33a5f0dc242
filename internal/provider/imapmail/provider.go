// Package imapmail implements the mail provider over plain IMAP/SMTP.
// The processed marker maps to an IMAP keyword flag, mark-read to
// \Seen, and replies go out through SMTP with threading headers.
package imapmail

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
)

const providerName = "imap"

// Provider implements provider.Provider over IMAP/SMTP.
type Provider struct {
	imapClient *IMAPClient
	smtpConfig SMTPConfig
	mailbox    string
}

// New creates an IMAP provider from its configuration and the resolved
// account password.
func New(cfg model.IMAPConfig, password string) *Provider {
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}

	return &Provider{
		imapClient: NewIMAPClient(
			cfg.Host, cfg.Port, cfg.Username, password, mailbox, cfg.TLS,
		),
		smtpConfig: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS,
		},
		mailbox: mailbox,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// FetchUnread returns up to limit unseen messages from the configured
// mailbox. Keyword flags come back in the label set, so the caller can
// filter on the processed marker.
func (p *Provider) FetchUnread(
	ctx context.Context, limit int,
) ([]model.Message, error) {
	unread, err := p.imapClient.FetchUnread(ctx, limit)
	if err != nil {
		return nil, p.opErr("listing unread messages", err)
	}

	messages := make([]model.Message, 0, len(unread))
	for _, u := range unread {
		messages = append(messages, model.Message{
			ID:          strconv.FormatUint(uint64(u.UID), 10),
			FolderRef:   p.mailbox,
			FromAddress: u.From,
			Subject:     u.Subject,
			Labels:      u.Flags,
		})
	}

	return messages, nil
}

// FetchBody fetches the message body, preferring the text/plain part.
func (p *Provider) FetchBody(
	ctx context.Context, messageID, _ string,
) (string, error) {
	uid, err := parseUID(messageID)
	if err != nil {
		return "", p.opErr("fetching body", err)
	}

	fetched, err := p.imapClient.FetchMessage(ctx, uid)
	if err != nil {
		return "", p.opErr("fetching body", err)
	}

	if fetched.TextBody != "" {
		return fetched.TextBody, nil
	}
	return fetched.HTMLBody, nil
}

// SendReply composes a threaded reply and sends it via SMTP, then sets
// \Answered on the original message.
func (p *Provider) SendReply(
	ctx context.Context, messageID, toAddress, subject, body string,
) error {
	if toAddress == "" {
		return p.opErr("sending reply", fmt.Errorf(
			"missing recipient for message %q", messageID,
		))
	}

	uid, err := parseUID(messageID)
	if err != nil {
		return p.opErr("sending reply", err)
	}

	// The original message supplies the threading headers.
	original, err := p.imapClient.FetchMessage(ctx, uid)
	if err != nil {
		return p.opErr("fetching message for reply", err)
	}

	replySubject := subject
	if !strings.HasPrefix(strings.ToLower(replySubject), "re:") {
		replySubject = "Re: " + replySubject
	}

	raw := composeReply(
		p.smtpConfig.Username, toAddress, replySubject,
		original.MessageID, body,
	)

	if err := sendSMTP(p.smtpConfig, toAddress, raw); err != nil {
		return p.opErr("sending reply", err)
	}

	if err := p.imapClient.SetFlags(
		ctx, uid, []imap.Flag{imap.FlagAnswered}, true,
	); err != nil {
		// The reply went out; a missing \Answered flag is cosmetic.
		return nil
	}

	return nil
}

// MarkRead sets \Seen on the message.
func (p *Provider) MarkRead(ctx context.Context, messageID string) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return p.opErr("marking read", err)
	}

	if err := p.imapClient.SetFlags(
		ctx, uid, []imap.Flag{imap.FlagSeen}, true,
	); err != nil {
		return p.opErr("marking read", err)
	}

	return nil
}

// ApplyMarker sets the marker as a keyword flag on the message.
func (p *Provider) ApplyMarker(
	ctx context.Context, messageID, _ string, marker model.MarkerID,
) error {
	if marker == "" {
		return p.opErr("applying marker", fmt.Errorf("empty marker ID"))
	}

	uid, err := parseUID(messageID)
	if err != nil {
		return p.opErr("applying marker", err)
	}

	if err := p.imapClient.SetFlags(
		ctx, uid, []imap.Flag{imap.Flag(marker)}, true,
	); err != nil {
		return p.opErr("applying marker", err)
	}

	return nil
}

// parseUID converts a string message ID to an IMAP UID.
func parseUID(messageID string) (imap.UID, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", messageID, err)
	}
	return imap.UID(uid), nil
}

func (p *Provider) opErr(op string, err error) error {
	return &provider.OpError{Provider: providerName, Op: op, Err: err}
}
