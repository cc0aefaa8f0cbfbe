package realtime

import (
	"math/rand"
	"time"
)

const (
	baseReconnectDelay  = time.Second
	maxReconnectStep    = 5
	maxReconnectDelay   = 30 * time.Second
	maxReconnectJitter  = 500 * time.Millisecond
	renewedReconnectGap = 300 * time.Millisecond
)

// ReconnectDelay returns min(1s·2^min(attempt,5) + jitter, 30s).
func ReconnectDelay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxReconnectStep {
		attempt = maxReconnectStep
	}
	delay := baseReconnectDelay<<attempt + jitter
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxReconnectJitter)))
}
