package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/renewal"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func noJitter() time.Duration { return 0 }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeStream struct {
	url string
	w   *io.PipeWriter
}

func (s *fakeStream) send(t *testing.T, event, data string) {
	t.Helper()
	if _, err := io.WriteString(s.w, "event: "+event+"\ndata: "+data+"\n\n"); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	streams []*fakeStream
	err     error
}

func (d *fakeDialer) Dial(_ context.Context, target string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, target)
	if d.err != nil {
		return nil, d.err
	}
	r, w := io.Pipe()
	d.streams = append(d.streams, &fakeStream{url: target, w: w})
	return r, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

func (d *fakeDialer) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

type fakeRenewer struct {
	store *session.State
	err   error
	calls atomic.Int32
}

func (f *fakeRenewer) Renew(context.Context) (session.Credential, error) {
	f.calls.Add(1)
	if f.err != nil {
		return session.Credential{}, f.err
	}
	if err := f.store.Set("fresh", 900); err != nil {
		return session.Credential{}, err
	}
	return f.store.Credential(), nil
}

type countingTerminator struct{ raised atomic.Int32 }

func (c *countingTerminator) Raise(context.Context) { c.raised.Add(1) }

type fixture struct {
	clock  *clock.FakeClock
	store  *session.State
	dialer *fakeDialer
	opts   Options
}

func newFixture() *fixture {
	c := clock.Fake(epoch)
	store := session.New(c)
	dialer := &fakeDialer{}
	return &fixture{
		clock:  c,
		store:  store,
		dialer: dialer,
		opts: Options{
			BaseURL: "http://api.test/api/",
			Store:   store,
			Dialer:  dialer,
			Clock:   c,
			Jitter:  noJitter,
		},
	}
}

func (f *fixture) expectDeadline(t *testing.T, d time.Duration) {
	t.Helper()
	next, ok := f.clock.NextDeadline()
	if !ok {
		t.Fatalf("expected a pending reconnect")
	}
	if want := f.clock.Now().Add(d); !next.Equal(want) {
		t.Fatalf("reconnect at %s, want %s", next.Sub(f.clock.Now()), d)
	}
}

func envelopeJSON(id, eventType, data string) string {
	return fmt.Sprintf(`{"eventId":%q,"scopeId":12,"type":%q,"occurredAt":"2026-03-01T09:00:00","data":%s}`, id, eventType, data)
}

func TestBoardChannelDispatchesEvents(t *testing.T) {
	t.Parallel()

	f := newFixture()
	received := make(chan Envelope, 4)
	ch := NewBoardChannel(f.opts, 12, Subscription{Handlers: Handlers{
		EventCommentChanged: func(e Envelope) { received <- e },
	}})
	t.Cleanup(ch.Close)

	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	if got := f.dialer.url(0); got != "http://api.test/api/realtime/boards/12/stream" {
		t.Fatalf("unexpected stream url %q", got)
	}

	s := f.dialer.stream(0)
	s.send(t, "comment_changed", "not json")
	s.send(t, "reaction_changed", envelopeJSON("r1", "reaction_changed", `{}`))
	s.send(t, "unread_count_changed", envelopeJSON("u1", "unread_count_changed", `{}`))
	s.send(t, "comment_changed", envelopeJSON("c1", "comment_changed", `{"articleId":7}`))

	select {
	case e := <-received:
		if e.EventID != "c1" || e.ScopeID != 12 {
			t.Fatalf("unexpected envelope %+v", e)
		}
		var data struct {
			ArticleID int64 `json:"articleId"`
		}
		if err := e.Decode(&data); err != nil || data.ArticleID != 7 {
			t.Fatalf("decode data: %v (%+v)", err, data)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("comment_changed was not dispatched")
	}
	if len(received) != 0 {
		t.Fatalf("unexpected extra dispatch")
	}
	if ch.State() != StateOpen {
		t.Fatalf("malformed event must not break the connection, state %s", ch.State())
	}
}

func TestChannelBackoffAndAttemptReset(t *testing.T) {
	t.Parallel()

	f := newFixture()
	var errCount atomic.Int32
	ch := NewBoardChannel(f.opts, 3, Subscription{OnError: func(error) { errCount.Add(1) }})
	t.Cleanup(ch.Close)

	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })

	f.dialer.stream(0).w.CloseWithError(errors.New("connection reset"))
	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if ch.Attempt() != 1 {
		t.Fatalf("attempt = %d, want 1", ch.Attempt())
	}
	f.expectDeadline(t, time.Second)

	f.clock.Advance(999 * time.Millisecond)
	if f.dialer.count() != 1 {
		t.Fatalf("reconnected before backoff elapsed")
	}
	f.clock.Advance(time.Millisecond)
	waitFor(t, func() bool { return ch.State() == StateOpen })

	f.dialer.stream(1).w.Close()
	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if ch.Attempt() != 2 {
		t.Fatalf("attempt = %d, want 2", ch.Attempt())
	}
	f.expectDeadline(t, 2*time.Second)

	f.clock.Advance(2 * time.Second)
	waitFor(t, func() bool { return ch.State() == StateOpen })
	f.dialer.stream(2).send(t, "heartbeat", envelopeJSON("h1", "heartbeat", `{}`))
	waitFor(t, func() bool { return ch.Attempt() == 0 })

	if errCount.Load() != 2 {
		t.Fatalf("OnError called %d times, want 2", errCount.Load())
	}
}

func TestCloseDuringBackoffStopsReconnecting(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.dialer.err = errors.New("refused")
	ch := NewBoardChannel(f.opts, 1, Subscription{})

	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateReconnecting })

	ch.Close()
	if f.clock.Pending() != 0 {
		t.Fatalf("close must cancel the pending reconnect")
	}
	f.clock.Advance(time.Minute)
	if f.dialer.count() != 1 {
		t.Fatalf("dialed after close: %d", f.dialer.count())
	}

	ch.Connect()
	if ch.State() != StateClosed || f.dialer.count() != 1 {
		t.Fatalf("closed channel must stay closed")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture()
	var dispatched atomic.Int32
	ch := NewBoardChannel(f.opts, 5, Subscription{Handlers: Handlers{
		EventCommentChanged: func(Envelope) { dispatched.Add(1) },
	}})

	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	ch.Close()

	_, err := io.WriteString(f.dialer.stream(0).w, "event: comment_changed\ndata: "+envelopeJSON("c1", "comment_changed", `{}`)+"\n\n")
	if err == nil {
		t.Fatalf("expected the stream to be closed")
	}
	if dispatched.Load() != 0 {
		t.Fatalf("handler ran after close")
	}
	if f.clock.Pending() != 0 {
		t.Fatalf("close must not schedule a reconnect")
	}
}

func TestNotificationChannelDefersWithoutCredential(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ch := NewNotificationChannel(f.opts, Subscription{})
	t.Cleanup(ch.Close)

	ch.Connect()
	if f.dialer.count() != 0 {
		t.Fatalf("dialed without a credential")
	}
	if ch.State() != StateReconnecting || ch.Attempt() != 1 {
		t.Fatalf("state %s attempt %d", ch.State(), ch.Attempt())
	}
	f.expectDeadline(t, time.Second)

	if err := f.store.Set("tok+1", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}
	f.clock.Advance(time.Second)
	waitFor(t, func() bool { return f.dialer.count() == 1 })
	if got := f.dialer.url(0); got != "http://api.test/api/realtime/notifications/stream?accessToken=tok%2B1" {
		t.Fatalf("unexpected stream url %q", got)
	}
}

func TestNotificationChannelRenewsThenReconnectsQuickly(t *testing.T) {
	t.Parallel()

	f := newFixture()
	renewer := &fakeRenewer{store: f.store}
	term := &countingTerminator{}
	f.opts.Renewer = renewer
	f.opts.Terminator = term
	if err := f.store.Set("stale", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	received := make(chan Envelope, 1)
	ch := NewNotificationChannel(f.opts, Subscription{Handlers: Handlers{
		EventUnreadCountChanged: func(e Envelope) { received <- e },
	}})
	t.Cleanup(ch.Close)

	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	f.dialer.stream(0).w.CloseWithError(errors.New("401 on stream"))

	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if renewer.calls.Load() != 1 {
		t.Fatalf("renew calls = %d, want 1", renewer.calls.Load())
	}
	if ch.Attempt() != 0 {
		t.Fatalf("attempt = %d, want reset to 0", ch.Attempt())
	}
	f.expectDeadline(t, 300*time.Millisecond)

	f.clock.Advance(300 * time.Millisecond)
	waitFor(t, func() bool { return ch.State() == StateOpen })
	if got := f.dialer.url(1); !strings.HasSuffix(got, "?accessToken=fresh") {
		t.Fatalf("reconnect must use the renewed token, got %q", got)
	}
	if term.raised.Load() != 0 {
		t.Fatalf("unexpected termination")
	}

	f.dialer.stream(1).send(t, "unread_count_changed",
		`{"eventId":"n1","userId":42,"type":"unread_count_changed","occurredAt":"2026-03-01T09:00:01Z","data":{"unreadCount":3}}`)
	select {
	case e := <-received:
		var data UnreadCount
		if err := e.Decode(&data); err != nil || data.UnreadCount == nil || *data.UnreadCount != 3 {
			t.Fatalf("decode unread count: %v", err)
		}
		if e.ScopeID != 42 {
			t.Fatalf("scope id = %d, want 42", e.ScopeID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("unread_count_changed was not dispatched")
	}
}

func TestNotificationChannelRejectedRenewalTerminates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	renewer := &fakeRenewer{store: f.store, err: fmt.Errorf("%w: 401 Unauthorized", renewal.ErrRejected)}
	term := &countingTerminator{}
	f.opts.Renewer = renewer
	f.opts.Terminator = term
	if err := f.store.Set("stale", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ch := NewNotificationChannel(f.opts, Subscription{})
	t.Cleanup(ch.Close)
	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	f.dialer.stream(0).w.CloseWithError(errors.New("401 on stream"))

	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if term.raised.Load() != 1 {
		t.Fatalf("rejected renewal must end the session")
	}
	if f.store.Authenticated() {
		t.Fatalf("credential must be cleared")
	}
	f.expectDeadline(t, time.Second)

	// Without a credential the next attempt defers again.
	f.clock.Advance(time.Second)
	if f.dialer.count() != 1 || ch.Attempt() != 2 {
		t.Fatalf("dials %d attempt %d", f.dialer.count(), ch.Attempt())
	}
	f.expectDeadline(t, 2*time.Second)
}

func TestNotificationChannelTransportRenewalFailureBacksOff(t *testing.T) {
	t.Parallel()

	f := newFixture()
	renewer := &fakeRenewer{store: f.store, err: errors.New("renewal: dial tcp: connection refused")}
	term := &countingTerminator{}
	f.opts.Renewer = renewer
	f.opts.Terminator = term
	if err := f.store.Set("stale", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ch := NewNotificationChannel(f.opts, Subscription{})
	t.Cleanup(ch.Close)
	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	f.dialer.stream(0).w.CloseWithError(errors.New("network down"))

	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if term.raised.Load() != 0 || !f.store.Authenticated() {
		t.Fatalf("transport failure must not end the session")
	}
	f.expectDeadline(t, time.Second)
}

func TestNotificationChannelSurvivesRefreshOutage(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		http.Error(w, "upstream restarting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture()
	term := &countingTerminator{}
	f.opts.Renewer = renewal.NewRenewer(&renewal.HTTPExchanger{BaseURL: srv.URL, Client: srv.Client()}, f.store, f.clock)
	f.opts.Terminator = term
	if err := f.store.Set("stale", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ch := NewNotificationChannel(f.opts, Subscription{})
	t.Cleanup(ch.Close)
	ch.Connect()
	waitFor(t, func() bool { return ch.State() == StateOpen })
	f.dialer.stream(0).w.CloseWithError(errors.New("server restarting"))

	waitFor(t, func() bool { return ch.State() == StateReconnecting })
	if refreshes.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", refreshes.Load())
	}
	if term.raised.Load() != 0 {
		t.Fatalf("a 503 from the refresh endpoint must not end the session")
	}
	if token, ok := f.store.Get(); !ok || token != "stale" {
		t.Fatalf("credential must survive the outage, got %q", token)
	}
	f.expectDeadline(t, time.Second)

	f.clock.Advance(time.Second)
	waitFor(t, func() bool { return f.dialer.count() == 2 })
	if got := f.dialer.url(1); !strings.HasSuffix(got, "?accessToken=stale") {
		t.Fatalf("reconnect should reuse the stored token, got %q", got)
	}
}

func TestReconnectDelay(t *testing.T) {
	t.Parallel()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, expected := range want {
		if got := ReconnectDelay(attempt, 0); got != expected {
			t.Fatalf("attempt %d: got %s want %s", attempt, got, expected)
		}
	}
	if got := ReconnectDelay(0, 499*time.Millisecond); got != 1499*time.Millisecond {
		t.Fatalf("jitter not applied: %s", got)
	}
	if got := ReconnectDelay(4, 499*time.Millisecond); got != 16499*time.Millisecond {
		t.Fatalf("jitter not applied: %s", got)
	}
	if got := ReconnectDelay(-3, 0); got != time.Second {
		t.Fatalf("negative attempt: %s", got)
	}
	for i := 0; i < 100; i++ {
		if j := randomJitter(); j < 0 || j >= maxReconnectJitter {
			t.Fatalf("jitter out of range: %s", j)
		}
	}
}
