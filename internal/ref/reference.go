// Package ref holds the full-precision host reference computations and the
// closeness metrics the device kernels are verified against.
package ref

import (
	"math"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Softmax normalizes each W-length row of a dense [N,C,H,W] buffer in
// float64. It intentionally skips max subtraction to match the target
// kernel's reference behavior.
func Softmax(dense []float32, s tile.Shape) []float32 {
	out := make([]float32, len(dense))
	w := s.W
	for base := 0; base < len(dense); base += w {
		sum := 0.0
		row := make([]float64, w)
		for i := 0; i < w; i++ {
			row[i] = math.Exp(float64(dense[base+i]))
			sum += row[i]
		}
		for i := 0; i < w; i++ {
			out[base+i] = float32(row[i] / sum)
		}
	}
	return out
}

// ScaleMaskSoftmax computes softmax(x*scale + mask) in float64. The mask is
// [N,C,1,W] (broadcast over H) or full [N,C,H,W].
func ScaleMaskSoftmax(dense []float32, s tile.Shape, scale float32, mask []float32, maskShape tile.Shape) []float32 {
	scaled := make([]float32, len(dense))
	maskRowBcast := maskShape.H == 1
	planeSize := s.H * s.W
	for p := 0; p < s.N*s.C; p++ {
		for h := 0; h < s.H; h++ {
			for w := 0; w < s.W; w++ {
				i := p*planeSize + h*s.W + w
				var m float32
				if maskRowBcast {
					m = mask[p*s.W+w]
				} else {
					m = mask[i]
				}
				scaled[i] = float32(float64(dense[i])*float64(scale) + float64(m))
			}
		}
	}
	return Softmax(scaled, s)
}
