package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestCompleted RequestStatus = "COMPLETED"
)

// RequestDocument is one fulfillment attachment appended to a request.
type RequestDocument struct {
	Attachment
	UploadedByID string    `json:"uploaded_by_id"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// DocumentRequest is mutated in place over its lifetime: status flips and
// documents are appended, but the record is never deleted.
type DocumentRequest struct {
	ID                 string            `json:"id"`
	ConversationID     string            `json:"conversation_id"`
	CreatedByID        string            `json:"created_by_id"`
	CreatedByRole      Role              `json:"created_by_role"`
	Title              string            `json:"title"`
	Content            string            `json:"content,omitempty"`
	Status             RequestStatus     `json:"status"`
	TargetProprietaire bool              `json:"target_proprietaire"`
	TargetLocataire    bool              `json:"target_locataire"`
	TargetPartyIDs     []string          `json:"target_party_ids,omitempty"`
	Documents          []RequestDocument `json:"documents,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Targeted reports whether the explicit allow-list is in effect. A
// non-empty list overrides the role-broadcast flags.
func (r *DocumentRequest) Targeted() bool { return len(r.TargetPartyIDs) > 0 }
