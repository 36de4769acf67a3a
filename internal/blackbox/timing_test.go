package blackbox

import (
	"testing"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/framebuffer"
)

func TestPushRateCappedByLoopInterval(t *testing.T) {
	tests := []struct {
		name string
		loop time.Duration
		fps  int
		want int
	}{
		{name: "loop slower than camera", loop: 100 * time.Millisecond, fps: 30, want: 10},
		{name: "loop faster than camera", loop: 5 * time.Millisecond, fps: 10, want: 10},
		{name: "loop slower than one second", loop: 2 * time.Second, fps: 30, want: 1},
		{name: "unset loop", loop: 0, fps: 25, want: 25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (timing{loop: tc.loop}).pushRate(tc.fps); got != tc.want {
				t.Fatalf("pushRate(%d) = %d, want %d", tc.fps, got, tc.want)
			}
		})
	}
}

func TestDefaultPreRollBufferMatchesPushRate(t *testing.T) {
	cfg := config.Default()
	rate := timingFromConfig(&cfg).pushRate(cfg.Cameras.FPS)
	if got, want := framebuffer.CapacityFor(cfg.PreRoll(), rate), 900; got != want {
		t.Fatalf("pre-roll capacity = %d, want %d (90s at 10 pushes/s)", got, want)
	}
}
