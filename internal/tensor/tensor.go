package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense row-major float32 tensor, or — when created through
// SparseRows — a row-list sparse gradient as produced by an embedding
// lookup's backward pass.
//
// The training subsystem mutates tensors in place; views and
// broadcasting belong to the compute engine, not here.
type Tensor struct {
	shape  Shape
	dtype  DataType
	device Device
	data   []float32

	// rowIndex is non-nil for row-sparse gradients: data holds
	// len(rowIndex) rows of shape[1:] elements each.
	rowIndex []int
}

// Zeros creates a dense tensor filled with zeros.
func Zeros(shape Shape, device Device) *Tensor {
	return &Tensor{
		shape:  shape.Clone(),
		dtype:  Float32,
		device: device,
		data:   make([]float32, shape.NumElements()),
	}
}

// Full creates a dense tensor filled with value.
func Full(shape Shape, value float32, device Device) *Tensor {
	t := Zeros(shape, device)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice creates a dense tensor from a Go slice. The slice is used
// directly, not copied.
func FromSlice(data []float32, shape Shape, device Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{shape: shape.Clone(), dtype: Float32, device: device, data: data}, nil
}

// SparseRows creates a row-sparse gradient for a parameter of the given
// shape. rows holds the touched row indices; data holds len(rows)
// contiguous rows of values.
func SparseRows(shape Shape, rows []int, data []float32, device Device) (*Tensor, error) {
	if shape.Rank() < 2 {
		return nil, fmt.Errorf("row-sparse tensor needs rank >= 2, got shape %v", shape)
	}
	rowSize := shape.NumElements() / shape[0]
	if len(data) != len(rows)*rowSize {
		return nil, fmt.Errorf("sparse data length %d does not match %d rows of %d elements",
			len(data), len(rows), rowSize)
	}
	return &Tensor{
		shape:    shape.Clone(),
		dtype:    Float32,
		device:   device,
		data:     data,
		rowIndex: append([]int(nil), rows...),
	}, nil
}

// Shape returns the tensor's logical shape.
func (t *Tensor) Shape() Shape { return t.shape }

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType { return t.dtype }

// Device returns the tensor's compute device.
func (t *Tensor) Device() Device { return t.device }

// NumElements returns the number of logical elements.
func (t *Tensor) NumElements() int { return t.shape.NumElements() }

// Data returns the flat value storage. For sparse tensors this is the
// packed row data, not the logical dense layout.
func (t *Tensor) Data() []float32 { return t.data }

// IsSparse reports whether the tensor is a row-sparse gradient.
func (t *Tensor) IsSparse() bool { return t.rowIndex != nil }

// RowIndex returns the touched row indices of a sparse gradient, or nil
// for dense tensors.
func (t *Tensor) RowIndex() []int { return t.rowIndex }

// RowSize returns the number of elements per row (rank >= 1).
func (t *Tensor) RowSize() int {
	if len(t.shape) == 0 {
		return 1
	}
	return t.shape.NumElements() / t.shape[0]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{shape: t.shape.Clone(), dtype: t.dtype, device: t.device}
	c.data = append([]float32(nil), t.data...)
	if t.rowIndex != nil {
		c.rowIndex = append([]int(nil), t.rowIndex...)
	}
	return c
}

// CopyFrom copies src's values into t. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// RMS returns sqrt(mean(x^2)) over all stored elements.
func (t *Tensor) RMS() float64 {
	if len(t.data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range t.data {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(t.data)))
}

// SquaredSum returns the sum of squared elements.
func (t *Tensor) SquaredSum() float64 {
	sum := 0.0
	for _, v := range t.data {
		sum += float64(v) * float64(v)
	}
	return sum
}

// Scale multiplies every element by s in place.
func (t *Tensor) Scale(s float32) {
	for i := range t.data {
		t.data[i] *= s
	}
}

// AllFinite reports whether every element is finite (no Inf/NaN).
func (t *Tensor) AllFinite() bool {
	for _, v := range t.data {
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return false
		}
	}
	return true
}

// Loss is the seam to the autodiff engine. The engine's loss node
// implements it; calling Backward populates parameter gradients.
//
// scale multiplies the loss before differentiation. Plain training
// passes 1; the mixed-precision wrapper passes its loss scale so small
// gradients survive the half-precision backward pass.
type Loss interface {
	Backward(scale float64) error
}
