package model

// MarkerID identifies a provider-side label or keyword used to tag
// messages that have already been processed.
type MarkerID string

// Message is one fetched email. It is immutable once ingested: provider
// side effects (mark-read, marker application) are tracked only as
// external state and never written back into the struct.
type Message struct {
	// ID is the provider's unique message identifier.
	ID string

	// FolderRef identifies the folder/mailbox holding the message.
	FolderRef string

	// FromAddress is the sender address used for replies.
	FromAddress string

	// Subject is the message subject line.
	Subject string

	// Labels holds the opaque marker IDs already attached to the
	// message at fetch time.
	Labels []string
}

// HasLabel reports whether the message already carries the given marker.
func (m Message) HasLabel(id MarkerID) bool {
	for _, l := range m.Labels {
		if l == string(id) {
			return true
		}
	}
	return false
}
