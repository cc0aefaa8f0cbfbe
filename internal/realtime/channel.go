// Package realtime keeps board and per-user SSE channels open, dispatching
// typed events and reconnecting with capped exponential backoff.
package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/metrics"
	"github.com/OhSeongHyeon/mocktalkfront/internal/renewal"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

// State is the lifecycle position of a channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateError
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errStreamEnded = errors.New("realtime: stream ended")

// Handlers maps event names to callbacks. Missing entries are ignored.
type Handlers map[EventType]func(Envelope)

// Subscription is what a caller supplies when opening a channel.
type Subscription struct {
	Handlers Handlers
	OnError  func(error)
}

// Renewer is satisfied by *renewal.Renewer.
type Renewer interface {
	Renew(ctx context.Context) (session.Credential, error)
}

// Terminator raises the session-ended signal.
type Terminator interface {
	Raise(ctx context.Context)
}

// channelConfig describes one scope. Built by NewBoardChannel and
// NewNotificationChannel.
type channelConfig struct {
	kind              string
	scope             string
	url               func(token string) string
	events            []EventType
	requireCredential bool
	renewOnError      bool

	store      *session.State
	renewer    Renewer
	terminator Terminator
	dialer     Dialer
	clock      clock.Clock
	jitter     func() time.Duration
	sub        Subscription
}

// Channel is one long-lived push subscription. Close is terminal.
type Channel struct {
	cfg    channelConfig
	events map[EventType]struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	attempt  int
	conn     *connection
	timer    clock.Timer
	timerGen uint64
}

type connection struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	body   io.Closer
	closed bool
}

func (c *connection) attach(body io.Closer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.body = body
	return true
}

func (c *connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	body := c.body
	c.mu.Unlock()
	c.cancel()
	if body != nil {
		body.Close()
	}
}

func newChannel(cfg channelConfig) *Channel {
	if cfg.clock == nil {
		cfg.clock = clock.Real()
	}
	if cfg.jitter == nil {
		cfg.jitter = randomJitter
	}
	ctx, cancel := context.WithCancel(context.Background())
	events := make(map[EventType]struct{}, len(cfg.events))
	for _, e := range cfg.events {
		events[e] = struct{}{}
	}
	return &Channel{cfg: cfg, events: events, ctx: ctx, cancel: cancel}
}

// Scope names the channel in logs, e.g. "board:12".
func (c *Channel) Scope() string {
	return c.cfg.scope
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempt reports consecutive failed connection attempts.
func (c *Channel) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Connect opens the channel. Only the first call from Idle has an effect.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.connectLocked()
}

// Close tears the channel down. No reconnect or handler runs afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	c.cancel()
	logutil.Debug("realtime channel closed", map[string]interface{}{"scope": c.cfg.scope})
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.state == StateClosed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.connectLocked()
}

// connectLocked runs with c.mu held and releases it.
func (c *Channel) connectLocked() {
	if prev := c.conn; prev != nil {
		c.conn = nil
		defer prev.close()
	}

	var token string
	if c.cfg.store != nil {
		token, _ = c.cfg.store.Get()
	}
	if c.cfg.requireCredential && token == "" {
		c.state = StateReconnecting
		delay := c.nextBackoffLocked()
		c.scheduleLocked(delay)
		c.mu.Unlock()
		logutil.Debug("realtime channel waiting for credential", map[string]interface{}{
			"scope":    c.cfg.scope,
			"delay_ms": delay.Milliseconds(),
		})
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	conn := &connection{cancel: cancel}
	c.conn = conn
	c.state = StateConnecting
	target := c.cfg.url(token)
	c.mu.Unlock()

	go c.run(ctx, conn, target)
}

func (c *Channel) run(ctx context.Context, conn *connection, target string) {
	stream, err := c.cfg.dialer.Dial(ctx, target)
	if err != nil {
		c.fail(conn, err)
		return
	}
	if !c.opened(conn, stream) {
		stream.Close()
		return
	}
	logutil.Debug("realtime channel open", map[string]interface{}{"scope": c.cfg.scope})

	err = readFrames(stream, func(f frame) bool {
		return c.handleFrame(conn, f)
	})
	if err == nil || errors.Is(err, io.EOF) {
		err = errStreamEnded
	}
	c.fail(conn, err)
}

func (c *Channel) opened(conn *connection, stream io.Closer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn || c.state == StateClosed {
		return false
	}
	if !conn.attach(stream) {
		return false
	}
	c.state = StateOpen
	return true
}

func (c *Channel) handleFrame(conn *connection, f frame) bool {
	name := EventType(f.Event)
	if _, ok := c.events[name]; !ok {
		return true
	}
	env, err := parseEnvelope(f.Data)
	if err != nil {
		metrics.ObserveEvent(c.cfg.kind, f.Event, true)
		logutil.Debug("realtime event dropped", map[string]interface{}{
			"scope": c.cfg.scope,
			"event": f.Event,
			"error": err.Error(),
		})
		return true
	}

	c.mu.Lock()
	if c.conn != conn || c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.attempt = 0
	handler := c.cfg.sub.Handlers[name]
	c.mu.Unlock()

	metrics.ObserveEvent(c.cfg.kind, f.Event, false)
	if handler != nil {
		handler(env)
	}
	return true
}

// fail handles an error on the current connection. Errors from superseded
// connections are ignored.
func (c *Channel) fail(conn *connection, err error) {
	c.mu.Lock()
	if c.conn != conn || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateError
	c.mu.Unlock()
	conn.close()

	logutil.Warn("realtime channel error", err, map[string]interface{}{"scope": c.cfg.scope})
	if c.cfg.sub.OnError != nil {
		c.cfg.sub.OnError(err)
	}

	if c.cfg.renewOnError && c.cfg.renewer != nil {
		if c.renewAfterError() {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = StateReconnecting
	c.scheduleLocked(c.nextBackoffLocked())
}

// renewAfterError reports whether a quick reconnect was scheduled.
func (c *Channel) renewAfterError() bool {
	_, err := c.cfg.renewer.Renew(c.ctx)
	if err == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateClosed {
			return true
		}
		c.attempt = 0
		c.state = StateReconnecting
		c.scheduleLocked(renewedReconnectGap)
		return true
	}
	if c.ctx.Err() != nil {
		return true
	}
	logutil.Warn("realtime channel renewal failed", err, map[string]interface{}{"scope": c.cfg.scope})
	if errors.Is(err, renewal.ErrRejected) {
		if c.cfg.store != nil {
			c.cfg.store.Clear()
		}
		if c.cfg.terminator != nil {
			c.cfg.terminator.Raise(c.ctx)
		}
	}
	return false
}

func (c *Channel) nextBackoffLocked() time.Duration {
	delay := ReconnectDelay(c.attempt, c.cfg.jitter())
	c.attempt++
	return delay
}

func (c *Channel) scheduleLocked(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.cfg.clock.AfterFunc(delay, func() { c.reconnect(gen) })
	metrics.ObserveReconnect(c.cfg.kind)
}
