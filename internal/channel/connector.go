// Package channel owns the lifecycle of one conversation's push
// subscription: connect, authorize, pump events, retry on failure with a
// fixed delay, and unwind everything on teardown.
package channel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/transport"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateAuthorized
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateAuthorized:
		return "authorized"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handlers receive channel activity. They are attached only once the
// subscription is authorized; nothing is delivered before that, and
// nothing after Close. Both callbacks run on the connector's pump
// goroutine with the event's data passed in, never read from shared cells.
type Handlers struct {
	// OnAuthorized fires after each successful (re)subscription with the
	// channel's authoritative member snapshot.
	OnAuthorized func(members []string)
	OnEvent      func(ev transport.Event)
}

// Connector is bound to exactly one conversation identity for its whole
// life; a new conversation gets a new connector.
type Connector struct {
	conversationID string
	memberID       string
	tr             transport.Transport
	retryDelay     time.Duration
	log            *zap.SugaredLogger

	mu         sync.Mutex
	state      State
	handlers   Handlers
	sub        transport.Subscription
	retryTimer *time.Timer
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewConnector(conversationID, memberID string, tr transport.Transport, retryDelay time.Duration, log *zap.SugaredLogger) *Connector {
	return &Connector{
		conversationID: conversationID,
		memberID:       memberID,
		tr:             tr,
		retryDelay:     retryDelay,
		log:            log,
		state:          StateDisconnected,
	}
}

// Start begins the connecting path. Subscription failures are retried
// forever at the fixed delay; conversations are short-lived UI sessions,
// so there is no backoff growth and no attempt ceiling.
func (c *Connector) Start(ctx context.Context, handlers Handlers) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.handlers = handlers
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	go c.connect()
}

func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) connect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	ctx := c.ctx
	c.mu.Unlock()

	sub, err := c.tr.Subscribe(ctx, c.conversationID, c.memberID)
	if err != nil {
		c.log.Warnw("channel subscribe failed", "conversation", c.conversationID, "err", err)
		c.fail()
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = sub.Close(context.Background())
		return
	}
	c.sub = sub
	c.state = StateSubscribed
	c.mu.Unlock()

	// the member snapshot doubles as the authorization round-trip: until
	// it succeeds we do not consider the subscription live
	members, err := sub.Members(ctx)
	if err != nil {
		c.log.Warnw("channel authorize failed", "conversation", c.conversationID, "err", err)
		_ = sub.Close(context.Background())
		c.fail()
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = sub.Close(context.Background())
		return
	}
	c.state = StateAuthorized
	handlers := c.handlers
	c.mu.Unlock()

	c.log.Infow("channel authorized", "conversation", c.conversationID, "members", len(members))
	if handlers.OnAuthorized != nil {
		handlers.OnAuthorized(members)
	}
	c.pump(sub)
}

// pump forwards events until the stream breaks or the connector closes.
// Bindings exist only here, after authorization.
func (c *Connector) pump(sub transport.Subscription) {
	for ev := range sub.Events() {
		if se, ok := ev.(transport.SubscriptionError); ok {
			c.log.Warnw("subscription error", "conversation", c.conversationID, "err", se.Err)
			c.mu.Lock()
			closed := c.state == StateClosed
			c.sub = nil
			c.mu.Unlock()
			_ = sub.Close(context.Background())
			if !closed {
				c.fail()
			}
			return
		}
		c.mu.Lock()
		closed := c.state == StateClosed
		handlers := c.handlers
		c.mu.Unlock()
		if closed {
			return
		}
		if handlers.OnEvent != nil {
			handlers.OnEvent(ev)
		}
	}
}

// fail moves to errored and schedules one resubscription after the fixed
// delay. A retry already pending means another failure arrived while
// waiting; it is not scheduled twice.
func (c *Connector) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = StateErrored
	if c.retryTimer != nil {
		return
	}
	c.retryTimer = time.AfterFunc(c.retryDelay, func() {
		c.mu.Lock()
		c.retryTimer = nil
		closed := c.state == StateClosed
		c.mu.Unlock()
		if !closed {
			c.connect()
		}
	})
}

// Close unbinds the handlers, cancels any pending retry and unsubscribes.
// The connector is not reusable afterwards.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.handlers = Handlers{}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	sub := c.sub
	c.sub = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		return sub.Close(ctx)
	}
	return nil
}

// SendTyping publishes the typing signal when the channel is live; during
// a retry window the signal is dropped, matching an indicator that is
// best-effort by nature.
func (c *Connector) SendTyping(ctx context.Context, isTyping bool) error {
	c.mu.Lock()
	sub := c.sub
	ok := c.state == StateAuthorized
	c.mu.Unlock()
	if !ok || sub == nil {
		return nil
	}
	return sub.SendTyping(ctx, c.memberID, isTyping)
}
