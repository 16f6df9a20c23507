// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/gradientlab-ml/gradient/internal/tensor"

// DataType identifies a tensor's element type.
type DataType = tensor.DataType

const (
	Float32 = tensor.Float32
	Float16 = tensor.Float16
)

// Device identifies where a tensor's data lives.
type Device = tensor.Device

const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	WebGPU = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Tensor is a dense or row-sparse float32 tensor.
type Tensor = tensor.Tensor

// Loss is a differentiable scalar produced by the compute engine.
type Loss = tensor.Loss

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, device Device) *Tensor {
	return tensor.Zeros(shape, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32, device Device) *Tensor {
	return tensor.Full(shape, value, device)
}

// FromSlice creates a tensor backed by data, which must match the
// shape's element count.
func FromSlice(data []float32, shape Shape, device Device) (*Tensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// SparseRows creates a row-sparse tensor: data holds one dense row per
// entry of rows, in order.
func SparseRows(shape Shape, rows []int, data []float32, device Device) (*Tensor, error) {
	return tensor.SparseRows(shape, rows, data, device)
}
