// Package tensor provides the minimal tensor surface the training
// subsystem needs: shapes, dtypes, devices, flat float32 storage and a
// row-sparse gradient form. The full compute engine (kernels, autodiff
// graph) lives behind the Loss seam and is not part of this module.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// Device represents the compute device backing a tensor.
type Device int

// Supported compute devices. Only CPU is executed in-process; the other
// values exist so optimizer state can record where a parameter lives.
const (
	CPU Device = iota
	CUDA
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}
