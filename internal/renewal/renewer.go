// Package renewal keeps the access token fresh. Renewer collapses concurrent
// renewal requests into one network exchange; Scheduler renews ahead of
// expiry.
package renewal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/metrics"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

const renewKey = "session"

// Renewer performs single-flight credential renewal: while an exchange is
// in flight every caller awaits that same exchange and observes the same
// outcome. The next call after it settles starts a new exchange.
type Renewer struct {
	exchanger Exchanger
	store     *session.State
	clock     clock.Clock

	group   singleflight.Group
	waiting atomic.Int32
}

// NewRenewer wires a renewer to the credential store it refreshes.
func NewRenewer(exchanger Exchanger, store *session.State, c clock.Clock) *Renewer {
	if c == nil {
		c = clock.Real()
	}
	return &Renewer{exchanger: exchanger, store: store, clock: c}
}

// Waiting reports how many callers are awaiting an exchange.
func (r *Renewer) Waiting() int {
	return int(r.waiting.Load())
}

// Renew returns the renewed credential. The exchange itself is detached from
// ctx so one caller giving up does not fail the others; ctx only bounds how
// long this caller waits.
func (r *Renewer) Renew(ctx context.Context) (session.Credential, error) {
	ch := r.group.DoChan(renewKey, func() (interface{}, error) {
		return r.exchange(context.WithoutCancel(ctx))
	})
	r.waiting.Add(1)
	defer r.waiting.Add(-1)

	select {
	case res := <-ch:
		if res.Shared {
			metrics.ObserveRenewalJoined()
		}
		if res.Err != nil {
			return session.Credential{}, res.Err
		}
		return res.Val.(session.Credential), nil
	case <-ctx.Done():
		return session.Credential{}, ctx.Err()
	}
}

func (r *Renewer) exchange(ctx context.Context) (session.Credential, error) {
	start := r.clock.Now()
	token, err := r.exchanger.Exchange(ctx)
	if err == nil {
		err = token.Validate()
	}
	if err == nil {
		if setErr := r.store.SetTyped(token.AccessToken, token.TokenType, *token.ExpiresInSec); setErr != nil {
			err = fmt.Errorf("%w: %v", ErrRejected, setErr)
		}
	}
	metrics.ObserveRenewal(r.clock.Now().Sub(start), err == nil)
	if err != nil {
		logutil.Warn("credential renewal failed", err, nil)
		return session.Credential{}, err
	}
	cred := r.store.Credential()
	logutil.Debug("credential renewed", map[string]interface{}{
		"expiresAt": cred.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return cred, nil
}
