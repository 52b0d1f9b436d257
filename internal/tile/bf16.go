package tile

import "math"

// Float32ToBF16 converts with round-to-nearest-even, matching the device's
// bfloat16 conversion. NaN payloads are squashed to a quiet NaN.
func Float32ToBF16(f float32) uint16 {
	bits := math.Float32bits(f)
	if bits&0x7fffffff > 0x7f800000 {
		return uint16(bits>>16) | 0x0040
	}
	// round to nearest even on the truncated 16 bits
	round := uint32(0x7fff + ((bits >> 16) & 1))
	return uint16((bits + round) >> 16)
}

// BF16ToFloat32 widens a bfloat16 value; exact, since bfloat16 is a prefix
// of the float32 encoding.
func BF16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}
