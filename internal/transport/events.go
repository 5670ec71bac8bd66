package transport

import (
	"encoding/json"
	"fmt"

	"github.com/dany2315/BailNotarie-sub000/internal/models"
)

// Event is the sealed union of everything the channel can push. Consumers
// switch exhaustively on the concrete type; there are no dynamic payload
// maps.
type Event interface{ isEvent() }

type MemberJoined struct {
	ID string `json:"id"`
}

type MemberLeft struct {
	ID string `json:"id"`
}

type Typing struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type NewMessage struct {
	Message models.Message `json:"message"`
}

type MessageDeleted struct {
	MessageID string `json:"message_id"`
}

type NewRequest struct {
	Request models.DocumentRequest `json:"request"`
}

// RequestUpdated carries the updated record, or nil when the publisher
// omitted the payload and the consumer should do a full reload.
type RequestUpdated struct {
	Request *models.DocumentRequest `json:"request,omitempty"`
}

type SubscriptionError struct {
	Err error
}

func (MemberJoined) isEvent()      {}
func (MemberLeft) isEvent()        {}
func (Typing) isEvent()            {}
func (NewMessage) isEvent()        {}
func (MessageDeleted) isEvent()    {}
func (NewRequest) isEvent()        {}
func (RequestUpdated) isEvent()    {}
func (SubscriptionError) isEvent() {}

// Wire event names, shared by encode and decode.
const (
	NameMemberJoined   = "member-joined"
	NameMemberLeft     = "member-left"
	NameTyping         = "typing"
	NameNewMessage     = "new-message"
	NameMessageDeleted = "message-deleted"
	NameNewRequest     = "new-request"
	NameRequestUpdated = "request-updated"
)

// Envelope is the JSON frame carried on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode turns a wire envelope into its typed event.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Event {
	case NameMemberJoined:
		var ev MemberJoined
		return ev, json.Unmarshal(env.Data, &ev)
	case NameMemberLeft:
		var ev MemberLeft
		return ev, json.Unmarshal(env.Data, &ev)
	case NameTyping:
		var ev Typing
		return ev, json.Unmarshal(env.Data, &ev)
	case NameNewMessage:
		var ev NewMessage
		return ev, json.Unmarshal(env.Data, &ev)
	case NameMessageDeleted:
		var ev MessageDeleted
		return ev, json.Unmarshal(env.Data, &ev)
	case NameNewRequest:
		var ev NewRequest
		return ev, json.Unmarshal(env.Data, &ev)
	case NameRequestUpdated:
		if len(env.Data) == 0 {
			return RequestUpdated{}, nil
		}
		var ev RequestUpdated
		return ev, json.Unmarshal(env.Data, &ev)
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

// Encode wraps a typed payload into a wire envelope.
func Encode(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}
