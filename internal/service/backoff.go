package service

import (
	"math/rand"
	"time"
)

const (
	backoffBase = time.Minute
	backoffCap  = time.Hour
)

// retryBackoff returns the delay before the next delivery attempt:
// exponential from one minute, capped at an hour, with up to 20% jitter
// so requeued jobs don't all come due on the same tick.
func retryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := backoffBase << (attempts - 1)
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}
