// Package provider defines the mail-provider capability consumed by the
// triage engine, along with its typed errors. Implementations live in
// subpackages (zoho, imapmail).
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// Provider is the mail capability the triage engine consumes. Every
// call is attempted once per message per run; retry policy, if any,
// belongs to the caller.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// FetchUnread returns up to limit unread messages. The returned
	// messages carry their current label sets; filtering on a
	// processed marker is the caller's responsibility.
	FetchUnread(ctx context.Context, limit int) ([]model.Message, error)

	// FetchBody returns the message body (plain text or HTML).
	FetchBody(ctx context.Context, messageID, folderRef string) (string, error)

	// SendReply sends a reply to the given message.
	SendReply(ctx context.Context, messageID, toAddress, subject, body string) error

	// MarkRead marks the message as read.
	MarkRead(ctx context.Context, messageID string) error

	// ApplyMarker attaches a label/keyword to the message.
	ApplyMarker(ctx context.Context, messageID, folderRef string, marker model.MarkerID) error
}

// AuthError indicates that authentication has failed or expired for a
// provider.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// OpError wraps a failed provider operation with the provider and
// operation names.
type OpError struct {
	Provider string
	Op       string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
