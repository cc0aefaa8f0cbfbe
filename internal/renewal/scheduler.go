package renewal

import (
	"context"
	"sync"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

// DefaultLead is how long before expiry the scheduler renews.
const DefaultLead = 60 * time.Second

// Terminator raises the session-ended signal.
type Terminator interface {
	Raise(ctx context.Context)
}

// CredentialRenewer is satisfied by *Renewer.
type CredentialRenewer interface {
	Renew(ctx context.Context) (session.Credential, error)
}

// SchedulerOptions configure proactive renewal.
type SchedulerOptions struct {
	Store      *session.State
	Renewer    CredentialRenewer
	Terminator Terminator
	Clock      clock.Clock
	Lead       time.Duration
}

// Scheduler arms one timer per stored expiry. Every write to the expiry
// cancels the previous timer before arming a new one.
type Scheduler struct {
	store      *session.State
	renewer    CredentialRenewer
	terminator Terminator
	clock      clock.Clock
	lead       time.Duration

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64
	started bool
	detach  func()
}

// NewScheduler constructs a scheduler; call Start to begin watching.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	lead := opts.Lead
	if lead <= 0 {
		lead = DefaultLead
	}
	return &Scheduler{
		store:      opts.Store,
		renewer:    opts.Renewer,
		terminator: opts.Terminator,
		clock:      c,
		lead:       lead,
	}
}

// Start subscribes to expiry changes and arms a timer for the current
// credential, if any.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	detach := s.store.OnExpiryChange(s.reschedule)
	s.mu.Lock()
	s.detach = detach
	s.mu.Unlock()

	if expiresAt, ok := s.store.Expiry(); ok {
		s.reschedule(expiresAt)
	}
}

// Stop cancels the pending timer and stops watching the store.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

// Armed reports whether a renewal timer is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) reschedule(expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	if !s.started || expiresAt.IsZero() {
		return
	}
	delay := expiresAt.Sub(s.clock.Now()) - s.lead
	if delay < 0 {
		delay = 0
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	logutil.Debug("proactive renewal armed", map[string]interface{}{"delay": delay.String()})
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.started {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx := context.Background()
	if _, err := s.renewer.Renew(ctx); err != nil {
		s.mu.Lock()
		// A login that landed while the exchange was in flight wins.
		superseded := gen != s.gen
		s.mu.Unlock()
		if superseded {
			return
		}
		logutil.Error("proactive renewal failed", err, nil)
		s.store.Clear()
		if s.terminator != nil {
			s.terminator.Raise(ctx)
		}
	}
}
