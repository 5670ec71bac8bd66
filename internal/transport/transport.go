// Package transport abstracts the push channel a conversation subscribes
// to. The engine consumes typed events; the wire protocol lives in the
// implementations.
package transport

import "context"

// Subscription is one member's live attachment to a conversation channel.
type Subscription interface {
	// Events delivers decoded channel events. The channel closes after
	// Close, or is preceded by a SubscriptionError when the underlying
	// stream breaks.
	Events() <-chan Event
	// Members returns the channel's authoritative member snapshot, used
	// to re-derive presence after a reconnect.
	Members(ctx context.Context) ([]string, error)
	// SendTyping publishes the only client-emitted event.
	SendTyping(ctx context.Context, userID string, isTyping bool) error
	// Close unsubscribes and announces the member's departure.
	Close(ctx context.Context) error
}

// Transport creates subscriptions. One subscription serves exactly one
// open conversation and is never shared.
type Transport interface {
	Subscribe(ctx context.Context, conversationID, memberID string) (Subscription, error)
}
