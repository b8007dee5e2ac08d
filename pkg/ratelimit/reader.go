// Package ratelimit throttles reads with a token bucket shared across readers.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// minBucket keeps small limits from stalling on one buffer-sized read
const minBucket = 64 * 1024

// Limiter caps the combined throughput of every reader it wraps
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastUpdate time.Time
}

// NewLimiter returns a limiter for bytesPerSecond, or nil (no limit) when it is not positive
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	bucket := max(bytesPerSecond, minBucket)
	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucket,
		tokens:         bucket,
		lastUpdate:     time.Now(),
	}
}

// ParseRate parses a byte rate such as "10M", "512KiB" or "1048576".
// An empty string means no limit.
func ParseRate(s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return int64(n), nil
}

// Rate returns the configured bytes per second
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// wait blocks until n tokens are available and takes them
func (l *Limiter) wait(ctx context.Context, n int64) error {
	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}
		deficit := n - l.tokens
		l.mu.Unlock()

		delay := max(time.Duration(float64(deficit)/float64(l.bytesPerSecond)*float64(time.Second)), time.Millisecond)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds tokens for the time elapsed since the last update; l.mu must be held
func (l *Limiter) refill(now time.Time) {
	added := int64(now.Sub(l.lastUpdate).Seconds() * float64(l.bytesPerSecond))
	if added <= 0 {
		return
	}
	l.tokens = min(l.tokens+added, l.bucketSize)
	l.lastUpdate = now
}

// giveBack returns tokens reserved for bytes that were not read
func (l *Limiter) giveBack(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	l.tokens = min(l.tokens+n, l.bucketSize)
	l.mu.Unlock()
}

type readCloser struct {
	ctx     context.Context
	rc      io.ReadCloser
	limiter *Limiter
}

// NewReadCloser wraps rc so that its reads draw from limiter. A nil limiter returns rc.
func NewReadCloser(ctx context.Context, rc io.ReadCloser, limiter *Limiter) io.ReadCloser {
	if limiter == nil {
		return rc
	}
	return &readCloser{ctx: ctx, rc: rc, limiter: limiter}
}

func (r *readCloser) Read(p []byte) (int, error) {
	want := min(int64(len(p)), r.limiter.bucketSize)
	if want == 0 {
		return r.rc.Read(p)
	}
	if err := r.limiter.wait(r.ctx, want); err != nil {
		return 0, err
	}
	n, err := r.rc.Read(p[:want])
	r.limiter.giveBack(want - int64(n))
	return n, err
}

func (r *readCloser) Close() error {
	return r.rc.Close()
}
