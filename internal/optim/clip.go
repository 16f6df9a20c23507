package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/nn"
)

// ClipGradNorm rescales the gradients of params so their joint 2-norm
// does not exceed maxNorm, and returns the norm before clipping.
// A maxNorm <= 0 performs no work at all. Parameters without gradients
// are skipped.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	if maxNorm <= 0 {
		return 0
	}
	total := 0.0
	for _, p := range params {
		if g := p.Grad(); g != nil {
			total += g.SquaredSum()
		}
	}
	norm := math.Sqrt(total)
	if norm > maxNorm && norm > 0 {
		scale := maxNorm / norm
		for _, p := range params {
			if g := p.Grad(); g != nil {
				g.Scale(float32(scale))
			}
		}
	}
	return norm
}
