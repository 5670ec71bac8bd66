// Package typing debounces the local typing broadcast and decays the
// remote indicator when the counterpart's stop signal is lost.
package typing

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Broadcaster publishes a typing signal to the channel.
type Broadcaster func(isTyping bool)

// Coordinator announces typing once on the first keystroke after a quiet
// period, clears it either when the quiet window elapses or when the
// message is sent, and mirrors the remote flag with a decay timer so a
// dropped stop signal cannot pin the indicator on.
type Coordinator struct {
	quiet time.Duration
	decay time.Duration
	emit  Broadcaster
	// channel providers cap client-event throughput; the limiter keeps a
	// keystroke storm from breaching that quota
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	mu         sync.Mutex
	announced  bool
	quietTimer *time.Timer
	remote     bool
	decayTimer *time.Timer
	stopped    bool
}

func NewCoordinator(quiet, decay time.Duration, emit Broadcaster, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		quiet:   quiet,
		decay:   decay,
		emit:    emit,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		log:     log,
	}
}

// OnLocalKeystroke broadcasts typing=true on the first keystroke of a
// burst and extends the quiet window on every further one.
func (c *Coordinator) OnLocalKeystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if !c.announced {
		c.announced = true
		c.broadcast(true)
	}
	if c.quietTimer != nil {
		c.quietTimer.Stop()
	}
	c.quietTimer = time.AfterFunc(c.quiet, c.quietElapsed)
}

func (c *Coordinator) quietElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.announced {
		return
	}
	c.announced = false
	c.quietTimer = nil
	c.broadcast(false)
}

// OnMessageSent clears the indicator immediately and cancels the pending
// quiet timer.
func (c *Coordinator) OnMessageSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quietTimer != nil {
		c.quietTimer.Stop()
		c.quietTimer = nil
	}
	if c.announced {
		c.announced = false
		c.broadcast(false)
	}
}

// OnRemoteSignal mirrors the counterpart's flag. A true signal arms the
// decay timer; each refresh re-arms it.
func (c *Coordinator) OnRemoteSignal(isTyping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.remote = isTyping
	if c.decayTimer != nil {
		c.decayTimer.Stop()
		c.decayTimer = nil
	}
	if isTyping {
		c.decayTimer = time.AfterFunc(c.decay, c.decayElapsed)
	}
}

func (c *Coordinator) decayElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = false
	c.decayTimer = nil
}

// RemoteTyping reports the decayed remote flag.
func (c *Coordinator) RemoteTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Stop cancels both timers; the coordinator ignores signals afterwards.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.quietTimer != nil {
		c.quietTimer.Stop()
		c.quietTimer = nil
	}
	if c.decayTimer != nil {
		c.decayTimer.Stop()
		c.decayTimer = nil
	}
}

// broadcast is called with c.mu held.
func (c *Coordinator) broadcast(isTyping bool) {
	if !c.limiter.Allow() {
		c.log.Debugw("typing signal throttled", "is_typing", isTyping)
		return
	}
	c.emit(isTyping)
}
