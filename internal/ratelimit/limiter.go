// Package ratelimit throttles outbound calls to a recommendation provider with a
// sliding request window and an optional UTC-day cap.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/voyager/internal/metrics"
)

// ErrDailyCapExceeded is returned without waiting when the per-day budget is spent.
var ErrDailyCapExceeded = errors.New("daily request cap exceeded")

// Config describes one provider's quota.
type Config struct {
	Name        string
	MaxRequests int           // requests allowed per Window
	Window      time.Duration // sliding window length
	MaxPerDay   int           // 0 disables the daily cap
}

// Limiter is a per-provider sliding-window throttle shared by all callers of that provider.
// The zero value is not usable; construct with New.
type Limiter struct {
	name        string
	maxRequests int
	window      time.Duration
	maxPerDay   int

	// sem is a one-slot semaphore guarding the fields below. A channel is used
	// instead of a sync.Mutex so that waiting for the section honours ctx.
	sem        chan struct{}
	timestamps []time.Time
	day        time.Time
	dailyCount int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter. MaxRequests below 1 is treated as 1.
func New(cfg Config) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		name:        cfg.Name,
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		maxPerDay:   cfg.MaxPerDay,
		sem:         make(chan struct{}, 1),
		now:         time.Now,
		sleep:       SleepContext,
	}
}

// Name returns the provider key this limiter throttles.
func (l *Limiter) Name() string {
	return l.name
}

// Acquire blocks until a slot in the window is free and records the request.
// It fails immediately with ErrDailyCapExceeded when the day's budget is used up,
// and with ctx.Err() if the context ends while queued or waiting.
//
// The wait for a free slot happens inside the critical section, so callers are
// admitted one at a time. FIFO order is not guaranteed.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	now := l.now()
	l.rollover(now)

	if l.maxPerDay > 0 && l.dailyCount >= l.maxPerDay {
		metrics.RateLimitRejections.WithLabelValues(l.name).Inc()
		slog.Warn("daily cap reached",
			"component", "ratelimit",
			"provider", l.name,
			"max_per_day", l.maxPerDay,
		)
		return fmt.Errorf("%s: %w (%d per day)", l.name, ErrDailyCapExceeded, l.maxPerDay)
	}

	l.evict(now)

	if len(l.timestamps) >= l.maxRequests {
		wait := l.window - now.Sub(l.timestamps[0])
		if wait > 0 {
			slog.Info("rate limit hit, waiting",
				"component", "ratelimit",
				"provider", l.name,
				"wait_ms", wait.Milliseconds(),
			)
			metrics.RateLimitWaitSeconds.WithLabelValues(l.name).Observe(wait.Seconds())
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}

		now = l.now()
		l.evict(now)
		if len(l.timestamps) >= l.maxRequests {
			// The oldest entry has aged out by the time the wait ended.
			l.timestamps = l.timestamps[1:]
		}
		l.rollover(now)
	}

	l.timestamps = append(l.timestamps, now)
	l.dailyCount++
	return nil
}

// InWindow returns how many recorded requests fall inside the current window.
func (l *Limiter) InWindow(ctx context.Context) (int, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-l.sem }()

	l.evict(l.now())
	return len(l.timestamps), nil
}

// evict drops timestamps that are a full window old or older. Caller holds sem.
func (l *Limiter) evict(now time.Time) {
	i := 0
	for i < len(l.timestamps) && now.Sub(l.timestamps[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// rollover resets the daily counter when the UTC date changes. Caller holds sem.
func (l *Limiter) rollover(now time.Time) {
	u := now.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(l.day) {
		l.day = day
		l.dailyCount = 0
	}
}

// SleepContext pauses for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
