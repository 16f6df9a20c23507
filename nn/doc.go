// Copyright 2026 Gradient Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the parameter tree of a sequence-to-sequence
// transformer: named trainable parameters organized into layers, an
// optional encoder, a decoder stack and the output generator. The
// optimizer subsystem consumes these trees; the forward computation
// lives in the compute engine.
//
// Example:
//
//	import "github.com/gradientlab-ml/gradient/nn"
//
//	model := nn.NewModel(nn.ModelConfig{
//	    VocabSize: 30000,
//	    ModelDim:  512,
//	    DecLayers: 6,
//	})
//	for _, np := range model.NamedParameters() {
//	    fmt.Println(np.Name, np.Param.Shape())
//	}
package nn
