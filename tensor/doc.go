// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the flat float32 tensor type the optimizer
// subsystem operates on: dense and row-sparse values, shapes, data
// types and devices.
//
// Example:
//
//	import "github.com/gradientlab-ml/gradient/tensor"
//
//	w := tensor.Zeros(tensor.Shape{512, 512}, tensor.CPU)
//	g, err := tensor.SparseRows(tensor.Shape{30000, 512}, []int{3, 17}, rowData, tensor.CPU)
package tensor
