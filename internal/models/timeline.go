package models

import "time"

type ItemKind string

const (
	KindMessage ItemKind = "message"
	KindRequest ItemKind = "request"
)

// Delivery is the send lifecycle shown on a timeline item. Requests and
// remote messages are always confirmed.
type Delivery string

const (
	DeliverySending   Delivery = "sending"
	DeliverySent      Delivery = "sent"
	DeliveryConfirmed Delivery = "confirmed"
)

// TimelineItem is the rendered union of the two entity types. Exactly one
// of Message/Request is non-nil, matching Kind.
type TimelineItem struct {
	Kind     ItemKind
	Message  *Message
	Request  *DocumentRequest
	Delivery Delivery
}

func MessageItem(m *Message, d Delivery) TimelineItem {
	return TimelineItem{Kind: KindMessage, Message: m, Delivery: d}
}

func RequestItem(r *DocumentRequest) TimelineItem {
	return TimelineItem{Kind: KindRequest, Request: r, Delivery: DeliveryConfirmed}
}

func (it TimelineItem) ID() string {
	if it.Kind == KindMessage {
		return it.Message.ID.String()
	}
	return it.Request.ID
}

func (it TimelineItem) CreatedAt() time.Time {
	if it.Kind == KindMessage {
		return it.Message.CreatedAt
	}
	return it.Request.CreatedAt
}
