package tile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ByteOffset returns the storage byte offset of element index elem. For
// BFP8 the index must sit on a block boundary; rowwise kernel access always
// does, since tile rows are 32 elements and blocks are 16.
func (d DType) ByteOffset(elem int) int {
	switch d {
	case Float32:
		return 4 * elem
	case BFloat16:
		return 2 * elem
	case BFP8:
		return (elem / BFP8BlockElems) * (1 + BFP8BlockElems)
	default:
		return 4 * elem
	}
}

// QuantizeInto encodes src into dtype d's storage representation, writing
// d.Footprint(len(src)) bytes into dst. For BFP8 the element count must be
// a multiple of the block size.
func QuantizeInto(d DType, dst []byte, src []float32) error {
	n := len(src)
	if len(dst) < d.Footprint(n) {
		return fmt.Errorf("short destination for %s: have %d bytes, need %d", d, len(dst), d.Footprint(n))
	}
	switch d {
	case Float32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	case BFloat16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[2*i:], Float32ToBF16(v))
		}
	case BFP8:
		if n%BFP8BlockElems != 0 {
			return fmt.Errorf("BFP8 requires element count divisible by %d, got %d", BFP8BlockElems, n)
		}
		stride := 1 + BFP8BlockElems
		for b := 0; b < n/BFP8BlockElems; b++ {
			quantizeBFP8Block(dst[b*stride:(b+1)*stride], src[b*BFP8BlockElems:(b+1)*BFP8BlockElems])
		}
	default:
		return fmt.Errorf("unknown dtype %d", d)
	}
	return nil
}

// DequantizeInto decodes len(dst) elements of dtype d from src.
func DequantizeInto(d DType, dst []float32, src []byte) error {
	n := len(dst)
	if len(src) < d.Footprint(n) {
		return fmt.Errorf("short source for %s: have %d bytes, need %d", d, len(src), d.Footprint(n))
	}
	switch d {
	case Float32:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case BFloat16:
		for i := range dst {
			dst[i] = BF16ToFloat32(binary.LittleEndian.Uint16(src[2*i:]))
		}
	case BFP8:
		if n%BFP8BlockElems != 0 {
			return fmt.Errorf("BFP8 requires element count divisible by %d, got %d", BFP8BlockElems, n)
		}
		stride := 1 + BFP8BlockElems
		for b := 0; b < n/BFP8BlockElems; b++ {
			dequantizeBFP8Block(dst[b*BFP8BlockElems:(b+1)*BFP8BlockElems], src[b*stride:(b+1)*stride])
		}
	default:
		return fmt.Errorf("unknown dtype %d", d)
	}
	return nil
}

// Quantize is the allocating form of QuantizeInto.
func Quantize(d DType, src []float32) ([]byte, error) {
	out := make([]byte, d.Footprint(len(src)))
	if err := QuantizeInto(d, out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// Dequantize is the allocating form of DequantizeInto.
func Dequantize(d DType, src []byte, n int) ([]float32, error) {
	out := make([]float32, n)
	if err := DequantizeInto(d, out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// RoundThrough pushes values through dtype d's storage rounding in place,
// emulating the device writing intermediates at native precision.
func RoundThrough(d DType, vals []float32) {
	switch d {
	case Float32:
	case BFloat16:
		for i, v := range vals {
			vals[i] = BF16ToFloat32(Float32ToBF16(v))
		}
	case BFP8:
		var block [1 + BFP8BlockElems]byte
		for b := 0; b+BFP8BlockElems <= len(vals); b += BFP8BlockElems {
			quantizeBFP8Block(block[:], vals[b:b+BFP8BlockElems])
			dequantizeBFP8Block(vals[b:b+BFP8BlockElems], block[:])
		}
	}
}
