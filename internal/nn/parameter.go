// Package nn holds trainable parameters and the model surface the
// optimizer builder partitions: named parameter trees shaped like a
// transformer encoder/decoder with an output generator. Forward
// computation belongs to the compute engine, not this package.
package nn

import (
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that require gradient computation during
// training. The gradient is nil until a backward pass populates it.
type Parameter struct {
	name         string
	value        *tensor.Tensor
	grad         *tensor.Tensor
	requiresGrad bool
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, value *tensor.Tensor) *Parameter {
	return &Parameter{name: name, value: value, requiresGrad: true}
}

// Name returns the parameter name (e.g. "weight", "bias").
func (p *Parameter) Name() string { return p.name }

// Value returns the parameter tensor.
func (p *Parameter) Value() *tensor.Tensor { return p.value }

// Grad returns the gradient tensor, or nil if none has been computed.
func (p *Parameter) Grad() *tensor.Tensor { return p.grad }

// SetGrad sets the gradient tensor. Called by the autodiff engine or,
// in tests, directly.
func (p *Parameter) SetGrad(grad *tensor.Tensor) { p.grad = grad }

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() { p.grad = nil }

// RequiresGrad reports whether the parameter is trainable.
func (p *Parameter) RequiresGrad() bool { return p.requiresGrad }

// SetRequiresGrad freezes or unfreezes the parameter.
func (p *Parameter) SetRequiresGrad(v bool) { p.requiresGrad = v }

// NumElements returns the element count of the value tensor.
func (p *Parameter) NumElements() int { return p.value.NumElements() }

// Shape returns the shape of the value tensor.
func (p *Parameter) Shape() tensor.Shape { return p.value.Shape() }
