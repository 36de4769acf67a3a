package logging

import (
	"sync"
	"time"
)

// RepeatSampler throttles a recurring warning. The first occurrence after a
// quiet period always logs; later ones log at most once per interval and
// report how many were suppressed in between.
type RepeatSampler struct {
	mu         sync.Mutex
	interval   time.Duration
	last       time.Time
	suppressed int
	now        func() time.Time
}

// NewRepeatSampler returns a sampler with the given interval (default 10s).
func NewRepeatSampler(interval time.Duration) *RepeatSampler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &RepeatSampler{interval: interval, now: time.Now}
}

// Allow reports whether the occurrence should be logged and, if so, how many
// occurrences were dropped since the previous logged one.
func (s *RepeatSampler) Allow() (bool, int) {
	if s == nil {
		return true, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		s.suppressed++
		return false, 0
	}
	dropped := s.suppressed
	s.suppressed = 0
	s.last = now
	return true, dropped
}

// Reset forgets the previous occurrence, e.g. after the condition clears.
func (s *RepeatSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.last = time.Time{}
	s.suppressed = 0
	s.mu.Unlock()
}
