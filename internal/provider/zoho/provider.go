// Package zoho implements the mail provider against Zoho Mail, reached
// through an MCP JSON-RPC gateway exposing the ZohoMail_* tools.
package zoho

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/provider"
)

const providerName = "zoho"

// readStatus is the only listing filter the triage engine needs.
const readStatus = "unread"

// Provider implements provider.Provider for Zoho Mail.
type Provider struct {
	client    *Client
	accountID string
	replyFrom string
}

// New creates a Zoho provider from its configuration.
func New(cfg model.ZohoConfig) *Provider {
	return &Provider{
		client:    NewClient(cfg.GatewayURL),
		accountID: cfg.AccountID,
		replyFrom: cfg.ReplyFrom,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// FetchUnread lists up to limit unread messages.
func (p *Provider) FetchUnread(
	ctx context.Context, limit int,
) ([]model.Message, error) {
	result, err := p.client.Call(ctx, "ZohoMail_listEmails", map[string]any{
		"path_variables": map[string]any{
			"accountId": p.accountID,
		},
		"query_params": map[string]any{
			"status": readStatus,
			"limit":  limit,
		},
	})
	if err != nil {
		return nil, p.opErr("listing unread emails", err)
	}

	var envelope listEnvelope
	if err := decodeInner(result, &envelope); err != nil {
		return nil, p.opErr("decoding unread listing", err)
	}

	messages := make([]model.Message, 0, len(envelope.Data))
	for _, e := range envelope.Data {
		messages = append(messages, model.Message{
			ID:          e.MessageID,
			FolderRef:   e.FolderID,
			FromAddress: e.FromAddress,
			Subject:     e.Subject,
			Labels:      e.LabelID,
		})
	}

	return messages, nil
}

// FetchBody retrieves the full message content.
func (p *Provider) FetchBody(
	ctx context.Context, messageID, folderRef string,
) (string, error) {
	if messageID == "" || folderRef == "" {
		return "", p.opErr("fetching content", fmt.Errorf(
			"missing required parameter (messageID=%q, folderRef=%q)",
			messageID, folderRef,
		))
	}

	result, err := p.client.Call(ctx, "ZohoMail_getMessageContent", map[string]any{
		"path_variables": map[string]any{
			"accountId": p.accountID,
			"folderId":  folderRef,
			"messageId": messageID,
		},
		"query_params": map[string]any{
			"includeBlockContent": false,
		},
	})
	if err != nil {
		return "", p.opErr("fetching content", err)
	}

	var envelope contentEnvelope
	if err := decodeInner(result, &envelope); err != nil {
		return "", p.opErr("decoding content", err)
	}

	return envelope.Data.Content, nil
}

// SendReply replies to the given message from the configured address,
// prefixing the subject and sending plain text.
func (p *Provider) SendReply(
	ctx context.Context, messageID, toAddress, subject, body string,
) error {
	if messageID == "" || toAddress == "" {
		return p.opErr("sending reply", fmt.Errorf(
			"missing required parameter (messageID=%q, toAddress=%q)",
			messageID, toAddress,
		))
	}

	_, err := p.client.Call(ctx, "ZohoMail_sendReplyEmail", map[string]any{
		"path_variables": map[string]any{
			"accountId": p.accountID,
			"messageId": messageID,
		},
		"body": map[string]any{
			"action":      "reply",
			"fromAddress": p.replyFrom,
			"toAddress":   toAddress,
			"subject":     "Re: " + subject,
			"content":     body,
			"mailFormat":  "plaintext",
		},
	})
	if err != nil {
		return p.opErr("sending reply", err)
	}

	return nil
}

// MarkRead marks the message as read. Zoho expects numeric message IDs
// in bulk flag operations.
func (p *Provider) MarkRead(ctx context.Context, messageID string) error {
	id, err := numericID(messageID)
	if err != nil {
		return p.opErr("marking read", err)
	}

	_, err = p.client.Call(ctx, "ZohoMail_readMessages", map[string]any{
		"path_variables": map[string]any{
			"accountIdToRead": p.accountID,
		},
		"body": map[string]any{
			"mode":      "markAsRead",
			"messageId": []int64{id},
		},
	})
	if err != nil {
		return p.opErr("marking read", err)
	}

	return nil
}

// ApplyMarker attaches a label to the message within its folder.
func (p *Provider) ApplyMarker(
	ctx context.Context, messageID, folderRef string, marker model.MarkerID,
) error {
	if messageID == "" || folderRef == "" || marker == "" {
		return p.opErr("applying label", fmt.Errorf(
			"missing required parameter (messageID=%q, folderRef=%q, marker=%q)",
			messageID, folderRef, marker,
		))
	}

	id, err := numericID(messageID)
	if err != nil {
		return p.opErr("applying label", err)
	}

	result, err := p.client.Call(ctx, "ZohoMail_applyLabelToMessages", map[string]any{
		"path_variables": map[string]any{
			"accountIdToApplyLabel": p.accountID,
		},
		"body": map[string]any{
			"mode":             "applyLabel",
			"labelId":          []string{string(marker)},
			"messageId":        []int64{id},
			"isFolderSpecific": true,
			"folderId":         folderRef,
		},
	})
	if err != nil {
		return p.opErr("applying label", err)
	}

	// Label application reports tool-level failures via isError rather
	// than a JSON-RPC error.
	if result.IsError {
		return p.opErr("applying label", fmt.Errorf(
			"gateway reported failure for message %s", messageID,
		))
	}

	return nil
}

// numericID converts Zoho's string message ID to the numeric form the
// bulk endpoints require.
func numericID(messageID string) (int64, error) {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message ID %q: %w", messageID, err)
	}
	return id, nil
}

func (p *Provider) opErr(op string, err error) error {
	return &provider.OpError{Provider: providerName, Op: op, Err: err}
}
