// Package tensor provides the tensor container, shape laws and the Handler
// operation contract shared by every backend.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors. Values are always Float32; Int32 is
// reserved for index outputs such as pooling argmax.
const (
	Float32 DataType = iota
	Int32
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}
