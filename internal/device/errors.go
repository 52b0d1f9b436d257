package device

import (
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// ShapeMismatchError reports operand shapes that are incompatible for
// broadcast.
type ShapeMismatchError struct {
	Op   string
	A, B tile.Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: operand shapes %s and %s are not broadcast compatible", e.Op, e.A, e.B)
}

// UnsupportedDataTypeError reports a dtype the requested kernel cannot
// compute correctly. The fused softmax path rejects BFP8 outright rather
// than producing silently wrong output.
type UnsupportedDataTypeError struct {
	Op    string
	DType tile.DType
}

func (e *UnsupportedDataTypeError) Error() string {
	return fmt.Sprintf("%s: dtype %s is not supported on this path", e.Op, e.DType)
}
