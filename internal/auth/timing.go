package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// ResponseFloor pads a response so it never completes sooner than Min plus
// a random jitter. Used where a fast path would reveal whether an account
// exists.
type ResponseFloor struct {
	Min    time.Duration
	Jitter time.Duration
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}

// Target returns the padded duration for one response.
func (f ResponseFloor) Target() time.Duration {
	return f.Min + cryptoRandDuration(f.Jitter)
}

// WaitFrom sleeps until at least Target() has elapsed since start, or until
// ctx is done.
func (f ResponseFloor) WaitFrom(ctx context.Context, start time.Time) {
	remaining := f.Target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
