package tile

import "fmt"

const (
	// Dim is the edge length of a device tile in elements.
	Dim = 32
	// Elems is the number of elements in one tile.
	Elems = Dim * Dim
	// BFP8BlockElems is the number of elements sharing one exponent in BFP8.
	BFP8BlockElems = 16
)

// Layout describes how a tensor's elements are ordered in storage.
type Layout uint8

const (
	RowMajor Layout = iota
	Tiled
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "ROW_MAJOR"
	case Tiled:
		return "TILE"
	default:
		return "unknown"
	}
}

// DType is the element data type of a device tensor.
type DType uint8

const (
	Float32 DType = iota
	BFloat16
	BFP8
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "FLOAT32"
	case BFloat16:
		return "BFLOAT16"
	case BFP8:
		return "BFP8_B"
	default:
		return "unknown"
	}
}

// Footprint returns the storage size in bytes for n elements of dtype d.
// BFP8 carries one shared exponent byte per 16-element block.
func (d DType) Footprint(n int) int {
	switch d {
	case Float32:
		return 4 * n
	case BFloat16:
		return 2 * n
	case BFP8:
		blocks := (n + BFP8BlockElems - 1) / BFP8BlockElems
		return n + blocks
	default:
		return 4 * n
	}
}

// Shape is the logical [N, C, H, W] extent of a tensor.
type Shape struct {
	N, C, H, W int
}

func (s Shape) NumElements() int {
	return s.N * s.C * s.H * s.W
}

// NumTiles returns the total tile count in Tiled layout.
func (s Shape) NumTiles() int {
	return s.N * s.C * (s.H / Dim) * (s.W / Dim)
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", s.N, s.C, s.H, s.W)
}

// Validate checks basic positivity; CheckTiled additionally enforces the
// 32-divisibility the tiled layout requires.
func (s Shape) Validate() error {
	if s.N <= 0 || s.C <= 0 || s.H <= 0 || s.W <= 0 {
		return &ShapeError{Shape: s, Reason: "all dimensions must be positive"}
	}
	return nil
}

func (s Shape) CheckTiled() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.H%Dim != 0 {
		return &ShapeError{Shape: s, Reason: fmt.Sprintf("H=%d is not a multiple of %d", s.H, Dim)}
	}
	if s.W%Dim != 0 {
		return &ShapeError{Shape: s, Reason: fmt.Sprintf("W=%d is not a multiple of %d", s.W, Dim)}
	}
	return nil
}

// ShapeError reports a shape that violates tiling constraints.
type ShapeError struct {
	Shape  Shape
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid shape %s: %s", e.Shape, e.Reason)
}
