package motion

import (
	"errors"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"blackbox/internal/camera"
)

// Reference resolution the MinArea table is expressed in.
const (
	referenceWidth  = 640
	referenceHeight = 480
)

// DefaultAnalysisWidth is used when Config.AnalysisWidth is unset.
const DefaultAnalysisWidth = 320

// ErrMalformedFrame reports a frame with no usable pixels. The model is not
// touched.
var ErrMalformedFrame = errors.New("malformed frame")

// Status values reported in Decision.Status.
const (
	StatusDetected  = "detected"
	StatusNoMotion  = "no_motion"
	StatusCooldown  = "cooldown"
	StatusWarmingUp = "warming_up"
)

// Decision is the outcome of analysing one frame. Areas are in analysis
// pixels.
type Decision struct {
	Motion            bool          `json:"motion"`
	Status            string        `json:"status"`
	ComponentCount    int           `json:"component_count"`
	TotalArea         int           `json:"total_area"`
	LargestArea       int           `json:"largest_area"`
	ThresholdArea     int           `json:"threshold_area"`
	CooldownRemaining time.Duration `json:"cooldown_remaining,omitempty"`
	At                time.Time     `json:"at"`
}

// Config configures a Detector.
type Config struct {
	Sensitivity   Sensitivity
	Cooldown      time.Duration
	AnalysisWidth int
}

// Option customises Detector construction.
type Option func(*Detector)

// WithClock overrides the clock used for frames with no capture timestamp.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// Detector is a per-camera motion detector. Detect is safe for concurrent
// use, but frames are expected from one producer.
type Detector struct {
	mu sync.Mutex

	params        Params
	cooldown      time.Duration
	analysisWidth int
	now           func() time.Time

	model     *background
	srcBounds image.Rectangle
	grey      *image.Gray
	mask      []bool
	tmp       []bool
	labels    []int32
	stack     []int32
	minArea   int

	lastTrigger time.Time
	triggers    uint64
	suppressed  uint64
}

// New constructs a Detector.
func New(cfg Config, opts ...Option) *Detector {
	width := cfg.AnalysisWidth
	if width <= 0 {
		width = DefaultAnalysisWidth
	}
	d := &Detector{
		params:        cfg.Sensitivity.Params(),
		cooldown:      cfg.Cooldown,
		analysisWidth: width,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Params returns the active sensitivity parameters.
func (d *Detector) Params() Params {
	return d.params
}

// Detect analyses frame and reports whether it constitutes a new motion
// trigger. Only detected decisions start a new cooldown window.
func (d *Detector) Detect(frame camera.Frame) (Decision, error) {
	if frame.Image == nil {
		return Decision{}, ErrMalformedFrame
	}
	bounds := frame.Image.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Decision{}, ErrMalformedFrame
	}
	at := frame.Captured
	if at.IsZero() {
		at = d.now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.model == nil || bounds.Size() != d.srcBounds.Size() {
		d.reseed(bounds)
		d.scale(frame.Image, bounds)
		d.model.seed(d.grey.Pix)
		return Decision{Status: StatusWarmingUp, ThresholdArea: d.minArea, At: at}, nil
	}

	d.scale(frame.Image, bounds)
	w, h := d.model.width, d.model.height
	d.model.apply(d.grey.Pix, float32(d.params.VarThreshold), d.mask)
	openClose(d.mask, d.tmp, w, h)

	var areas []int
	areas, d.stack = components(d.mask, w, h, d.labels, d.stack)

	decision := Decision{ThresholdArea: d.minArea, At: at}
	for _, area := range areas {
		if area > decision.LargestArea {
			decision.LargestArea = area
		}
		if area > d.minArea {
			decision.ComponentCount++
			decision.TotalArea += area
		}
	}

	switch {
	case decision.ComponentCount == 0:
		decision.Status = StatusNoMotion
	case !d.lastTrigger.IsZero() && at.Sub(d.lastTrigger) < d.cooldown:
		decision.Status = StatusCooldown
		decision.CooldownRemaining = d.cooldown - at.Sub(d.lastTrigger)
		d.suppressed++
	default:
		decision.Status = StatusDetected
		decision.Motion = true
		d.lastTrigger = at
		d.triggers++
	}
	return decision, nil
}

// Stats reports trigger counters and the last trigger time.
type Stats struct {
	Triggers    uint64    `json:"triggers"`
	Suppressed  uint64    `json:"suppressed"`
	LastTrigger time.Time `json:"last_trigger,omitzero"`
}

// Stats returns a snapshot of the detector counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Triggers: d.triggers, Suppressed: d.suppressed, LastTrigger: d.lastTrigger}
}

// Reset discards the background model; the next frame re-seeds it. The
// cooldown window is kept.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.model = nil
	d.mu.Unlock()
}

func (d *Detector) reseed(bounds image.Rectangle) {
	srcW, srcH := bounds.Dx(), bounds.Dy()
	w := min(d.analysisWidth, srcW)
	h := max(1, (srcH*w+srcW/2)/srcW)
	n := w * h

	d.srcBounds = bounds
	d.model = newBackground(w, h, d.params.History)
	d.grey = image.NewGray(image.Rect(0, 0, w, h))
	d.mask = make([]bool, n)
	d.tmp = make([]bool, n)
	d.labels = make([]int32, n)
	d.stack = d.stack[:0]
	d.minArea = max(1, d.params.MinArea*n/(referenceWidth*referenceHeight))
}

func (d *Detector) scale(src image.Image, bounds image.Rectangle) {
	if gray, ok := src.(*image.Gray); ok && bounds.Size() == d.grey.Rect.Size() {
		for y := 0; y < bounds.Dy(); y++ {
			row := gray.Pix[gray.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			copy(d.grey.Pix[y*d.grey.Stride:(y+1)*d.grey.Stride], row[:bounds.Dx()])
		}
		return
	}
	draw.ApproxBiLinear.Scale(d.grey, d.grey.Rect, src, bounds, draw.Src, nil)
}
