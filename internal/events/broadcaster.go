package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/metrics"
)

// SessionEnded is the signal name published when a session terminates.
const SessionEnded = "auth:logout"

// Signal is the message exchanged between processes sharing a session.
type Signal struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster delivers the payload-less session-ended signal to local
// listeners and, when a Redis client is configured, to other processes.
type Broadcaster struct {
	client redis.UniversalClient
	ch     string
	origin string

	mu        sync.Mutex
	nextID    uint64
	listeners []listener

	stop chan struct{}
	once sync.Once
}

type listener struct {
	id uint64
	fn func()
}

// Options configure the broadcaster.
type Options struct {
	Client  redis.UniversalClient
	Channel string
}

// NewBroadcaster creates a broadcaster. Without a client it is process-local.
func NewBroadcaster(opts Options) *Broadcaster {
	channel := opts.Channel
	if channel == "" {
		channel = "mocktalk-session-events"
	}
	b := &Broadcaster{
		client: opts.Client,
		ch:     channel,
		origin: uuid.NewString(),
		stop:   make(chan struct{}),
	}
	if b.client != nil {
		go b.observeRedis()
	}
	return b
}

// Subscribe registers fn and returns a cancel func. Listeners are called in
// registration order and must tolerate repeated signals.
func (b *Broadcaster) Subscribe(fn func()) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listener{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Raise notifies every local listener synchronously, then publishes the
// signal to Redis when configured. Publish failures are logged, not returned.
func (b *Broadcaster) Raise(ctx context.Context) {
	metrics.ObserveTermination()
	logutil.Info("session terminated", map[string]interface{}{"origin": b.origin})
	b.notify()

	if b.client == nil {
		return
	}
	payload, err := json.Marshal(Signal{
		ID:        uuid.NewString(),
		Type:      SessionEnded,
		Origin:    b.origin,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logutil.Error("events: marshal signal", err, nil)
		return
	}
	if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
		logutil.Warn("events: redis publish failed", fmt.Errorf("redis publish: %w", err), map[string]interface{}{"channel": b.ch})
	}
}

// Close stops the Redis observer.
func (b *Broadcaster) Close() {
	b.once.Do(func() {
		close(b.stop)
	})
}

func (b *Broadcaster) notify() {
	b.mu.Lock()
	snapshot := append([]listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range snapshot {
		l.fn()
	}
}

// handleRemote applies a signal received from another process. Own signals
// are ignored so a raise is never echoed back to its origin.
func (b *Broadcaster) handleRemote(payload string) {
	var sig Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		logutil.Warn("events: invalid payload", err, nil)
		return
	}
	if sig.Type != SessionEnded || sig.Origin == b.origin {
		return
	}
	logutil.Info("session terminated by peer", map[string]interface{}{"origin": sig.Origin})
	b.notify()
}

func (b *Broadcaster) observeRedis() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.stop
		cancel()
	}()

	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logutil.Warn("events: redis subscriber error", err, nil)
			select {
			case <-b.stop:
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		b.handleRemote(msg.Payload)
	}
}
