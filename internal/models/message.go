package models

import (
	"errors"
	"time"
)

// Attachment references a document stored by the object-storage
// collaborator. PreviewKey is set only for images that got a client-side
// rendition.
type Attachment struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
	PreviewKey string `json:"preview_key,omitempty"`
}

// Message is immutable once confirmed; the only permitted transitions are
// identity promotion (provisional to real) and removal via an explicit
// delete event.
type Message struct {
	ID               Identity    `json:"id"`
	ConversationID   string      `json:"conversation_id"`
	SenderID         string      `json:"sender_id"`
	SenderRole       Role        `json:"sender_role"`
	Content          string      `json:"content,omitempty"`
	Attachment       *Attachment `json:"attached_document,omitempty"`
	RecipientPartyID string      `json:"recipient_party_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

var ErrEmptyMessage = errors.New("message needs content or an attached document")

// Validate enforces the content/attachment invariant: at least one of the
// two must be present.
func (m *Message) Validate() error {
	if m.Content == "" && m.Attachment == nil {
		return ErrEmptyMessage
	}
	return nil
}

// Broadcast reports whether the message has no explicit recipient and
// falls back to the role-based default.
func (m *Message) Broadcast() bool { return m.RecipientPartyID == "" }
