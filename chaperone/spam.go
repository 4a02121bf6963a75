package chaperone

import (
	"log/slog"
	"sync"
	"time"
)

// SpamVerdict is the result of evaluating one activity event against a
// user's sliding window.
type SpamVerdict struct {
	// Suspend is true when the window exceeded the threshold
	Suspend bool

	// SuspendFor is the timeout to apply when Suspend is true
	SuspendFor time.Duration

	// Count is the window size at evaluation time, after pruning
	Count int
}

// SpamDetector maintains a per-user sliding window of activity
// timestamps. When the pruned window exceeds the threshold, the user is
// flagged for suspension and the window is cleared entirely so residual
// entries can't immediately retrigger.
//
// Windows are process-local and best-effort: nothing is persisted, and
// a restart simply starts counting fresh.
type SpamDetector struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	window     time.Duration
	threshold  int
	suspendFor time.Duration
	logger     *slog.Logger
}

// NewSpamDetector creates a detector. Zero values fall back to the
// package defaults (60s window, threshold 5, 5 minute suspension).
func NewSpamDetector(
	window time.Duration,
	threshold int,
	suspendFor time.Duration,
	logger *slog.Logger,
) *SpamDetector {
	if window <= 0 {
		window = DefaultSpamWindow
	}
	if threshold <= 0 {
		threshold = DefaultSpamThreshold
	}
	if suspendFor <= 0 {
		suspendFor = DefaultSuspendDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpamDetector{
		windows:    map[string][]time.Time{},
		window:     window,
		threshold:  threshold,
		suspendFor: suspendFor,
		logger:     logger.With(loggerNameKey, "spam"),
	}
}

// Evaluate records one activity event for the user and checks the
// rate threshold. It never fails; the caller applies the verdict.
func (s *SpamDetector) Evaluate(userID string, at time.Time) SpamVerdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[userID], at)

	// prune entries that have aged out of the window, relative to the
	// event being evaluated
	kept := window[:0]
	for _, ts := range window {
		if at.Sub(ts) < s.window {
			kept = append(kept, ts)
		}
	}
	window = kept

	if len(window) > s.threshold {
		delete(s.windows, userID)
		s.logger.Info(
			"spam threshold exceeded",
			"user_id", userID,
			"count", len(window),
			"threshold", s.threshold,
		)
		return SpamVerdict{
			Suspend:    true,
			SuspendFor: s.suspendFor,
			Count:      len(window),
		}
	}

	s.windows[userID] = window
	return SpamVerdict{Count: len(window)}
}

// Reset drops the user's window, e.g. after a manual unmute.
func (s *SpamDetector) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, userID)
}

// WindowSize returns the user's current window length without pruning.
func (s *SpamDetector) WindowSize(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows[userID])
}
