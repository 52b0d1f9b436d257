package tile

import "math"

// BFP8 block format: 16 consecutive elements share one exponent byte (the
// float32 biased exponent of the largest magnitude in the block), each
// element stored as sign bit plus 7-bit magnitude in units of
// 2^(exp-127-6). Mirrors the device's block-floating-point storage closely
// enough to reproduce its rounding behavior.

const bfp8MantBits = 6

func quantizeBFP8Block(dst []byte, src []float32) {
	maxExp := uint32(0)
	for _, v := range src {
		e := (math.Float32bits(v) >> 23) & 0xff
		if e == 0xff {
			e = 0xfe // saturate NaN/Inf inputs
		}
		if e > maxExp {
			maxExp = e
		}
	}
	dst[0] = byte(maxExp)
	if maxExp == 0 {
		for i := range src {
			dst[1+i] = 0
		}
		return
	}

	scale := math.Pow(2, float64(int(maxExp))-127-bfp8MantBits)
	for i, v := range src {
		mag := math.Abs(float64(v)) / scale
		m := int(math.RoundToEven(mag))
		if m > 127 {
			m = 127
		}
		b := byte(m)
		if math.Signbit(float64(v)) {
			b |= 0x80
		}
		dst[1+i] = b
	}
}

func dequantizeBFP8Block(dst []float32, src []byte) {
	exp := int(src[0])
	if exp == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	scale := math.Pow(2, float64(exp)-127-bfp8MantBits)
	for i := range dst {
		b := src[1+i]
		v := float64(b&0x7f) * scale
		if b&0x80 != 0 {
			v = -v
		}
		dst[i] = float32(v)
	}
}
