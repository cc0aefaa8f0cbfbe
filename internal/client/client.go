// Package client wires the session core into one owned object: credential
// store, renewal, gateway, realtime channels and the session-ended signal.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/publicsuffix"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/events"
	"github.com/OhSeongHyeon/mocktalkfront/internal/forum"
	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/realtime"
	"github.com/OhSeongHyeon/mocktalkfront/internal/renewal"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

// Options configure a Client.
type Options struct {
	BaseURL        string
	FileBaseURL    string
	RenewalLead    time.Duration
	RequestTimeout time.Duration

	// Redis, when set, shares the session-ended signal across processes.
	Redis        redis.UniversalClient
	RedisChannel string

	Clock     clock.Clock
	Transport http.RoundTripper
	Dialer    realtime.Dialer
}

// Client owns one signed-in session and everything that depends on it.
type Client struct {
	Store     *session.State
	Events    *events.Broadcaster
	Renewer   *renewal.Renewer
	Scheduler *renewal.Scheduler
	Gateway   *gateway.Gateway
	API       *forum.Client

	channelOpts realtime.Options

	mu            sync.Mutex
	closed        bool
	boards        []*realtime.Channel
	notifications *realtime.Channel
	unsubscribe   func()
}

// New builds and starts a client. Close releases it.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}
	// Both clients share the jar holding the refresh-session cookie. Streams
	// must not carry a total timeout.
	restClient := &http.Client{Jar: jar, Timeout: opts.RequestTimeout, Transport: opts.Transport}
	streamClient := &http.Client{Jar: jar, Transport: opts.Transport}

	store := session.New(clk)
	bus := events.NewBroadcaster(events.Options{Client: opts.Redis, Channel: opts.RedisChannel})
	renewer := renewal.NewRenewer(&renewal.HTTPExchanger{BaseURL: opts.BaseURL, Client: restClient}, store, clk)
	scheduler := renewal.NewScheduler(renewal.SchedulerOptions{
		Store:      store,
		Renewer:    renewer,
		Terminator: bus,
		Clock:      clk,
		Lead:       opts.RenewalLead,
	})
	gw := gateway.New(gateway.Options{
		BaseURL:    opts.BaseURL,
		Client:     restClient,
		Store:      store,
		Renewer:    renewer,
		Terminator: bus,
	})

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &realtime.SSEDialer{Client: streamClient}
	}

	c := &Client{
		Store:     store,
		Events:    bus,
		Renewer:   renewer,
		Scheduler: scheduler,
		Gateway:   gw,
		API:       forum.New(gw, forum.Options{Store: store, Terminator: bus, FileBaseURL: opts.FileBaseURL}),
		channelOpts: realtime.Options{
			BaseURL:    opts.BaseURL,
			Store:      store,
			Renewer:    renewer,
			Terminator: bus,
			Dialer:     dialer,
			Clock:      clk,
		},
	}
	// A signal from another process carries no credential change of its own.
	c.unsubscribe = bus.Subscribe(store.Clear)
	scheduler.Start()
	return c, nil
}

// OnSessionEnded registers fn for the session-ended signal.
func (c *Client) OnSessionEnded(fn func()) (cancel func()) {
	return c.Events.Subscribe(fn)
}

// BoardChannel creates a channel for one board. The caller connects it;
// Close on the client closes it too.
func (c *Client) BoardChannel(boardID int64, sub realtime.Subscription) (*realtime.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("client: closed")
	}
	ch := realtime.NewBoardChannel(c.channelOpts, boardID, sub)
	c.boards = append(c.boards, ch)
	return ch, nil
}

// NotificationChannel returns the client's single user channel, creating
// it on first use or after the previous one was closed. sub only applies
// when a new channel is created.
func (c *Client) NotificationChannel(sub realtime.Subscription) (*realtime.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("client: closed")
	}
	if c.notifications != nil && c.notifications.State() != realtime.StateClosed {
		return c.notifications, nil
	}
	c.notifications = realtime.NewNotificationChannel(c.channelOpts, sub)
	return c.notifications, nil
}

// Logout ends the session on the server and locally.
func (c *Client) Logout(ctx context.Context) error {
	return c.API.Logout(ctx)
}

// Close stops renewal, closes every channel and detaches from Redis.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	channels := append([]*realtime.Channel(nil), c.boards...)
	if c.notifications != nil {
		channels = append(channels, c.notifications)
	}
	c.boards = nil
	c.notifications = nil
	c.mu.Unlock()

	c.Scheduler.Stop()
	for _, ch := range channels {
		ch.Close()
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.Events.Close()
	logutil.Debug("client closed", map[string]interface{}{"channels": len(channels)})
}

// Channels lists the channels the client currently tracks.
func (c *Client) Channels() []*realtime.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]*realtime.Channel(nil), c.boards...)
	if c.notifications != nil {
		out = append(out, c.notifications)
	}
	return out
}
