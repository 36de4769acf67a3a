package motion

const (
	initialVariance = 15
	minVariance     = 4
	maxVariance     = 75
)

// background is a single running Gaussian per pixel.
type background struct {
	width, height int
	mean          []float32
	variance      []float32
	alpha         float32
}

func newBackground(width, height, history int) *background {
	if history < 1 {
		history = 1
	}
	n := width * height
	return &background{
		width:    width,
		height:   height,
		mean:     make([]float32, n),
		variance: make([]float32, n),
		alpha:    1 / float32(history),
	}
}

func (b *background) seed(pix []uint8) {
	for i, p := range pix {
		b.mean[i] = float32(p)
		b.variance[i] = initialVariance
	}
}

// apply writes the foreground mask for pix and then adapts the model.
// A pixel is foreground when its squared distance from the mean exceeds
// varThreshold times the pixel variance.
func (b *background) apply(pix []uint8, varThreshold float32, mask []bool) {
	for i, p := range pix {
		d := float32(p) - b.mean[i]
		d2 := d * d
		mask[i] = d2 > varThreshold*b.variance[i]

		b.mean[i] += b.alpha * d
		v := b.variance[i] + b.alpha*(d2-b.variance[i])
		b.variance[i] = min(max(v, minVariance), maxVariance)
	}
}
