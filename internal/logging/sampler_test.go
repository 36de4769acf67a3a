package logging

import (
	"testing"
	"time"
)

func TestRepeatSamplerThrottles(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewRepeatSampler(10 * time.Second)
	s.now = func() time.Time { return now }

	if ok, dropped := s.Allow(); !ok || dropped != 0 {
		t.Fatalf("first occurrence should log, got ok=%v dropped=%d", ok, dropped)
	}
	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		if ok, _ := s.Allow(); ok {
			t.Fatalf("occurrence %d inside interval should be suppressed", i)
		}
	}
	now = now.Add(10 * time.Second)
	ok, dropped := s.Allow()
	if !ok || dropped != 3 {
		t.Fatalf("expected log with 3 dropped, got ok=%v dropped=%d", ok, dropped)
	}

	s.Reset()
	if ok, _ := s.Allow(); !ok {
		t.Fatal("expected log after reset")
	}

	var nilSampler *RepeatSampler
	if ok, _ := nilSampler.Allow(); !ok {
		t.Fatal("nil sampler should always allow")
	}
}
