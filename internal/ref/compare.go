package ref

import (
	"fmt"
	"math"
)

// CloseReport summarizes an elementwise closeness check.
type CloseReport struct {
	Total      int
	Mismatches int
	MaxAbsDiff float64
	ArgMax     int
}

func (r CloseReport) Pass() bool {
	return r.Mismatches == 0
}

func (r CloseReport) String() string {
	return fmt.Sprintf("%d/%d within tolerance, max abs diff %.6f at %d",
		r.Total-r.Mismatches, r.Total, r.MaxAbsDiff, r.ArgMax)
}

// IsClose checks |got-want| <= atol + rtol*|want| elementwise, the same
// criterion the conformance suite uses (rtol = atol = 5e-2 for the fused
// softmax contract).
func IsClose(got, want []float32, rtol, atol float64) CloseReport {
	r := CloseReport{Total: len(got)}
	for i := range got {
		g, w := float64(got[i]), float64(want[i])
		diff := math.Abs(g - w)
		if diff > r.MaxAbsDiff {
			r.MaxAbsDiff = diff
			r.ArgMax = i
		}
		if math.IsNaN(g) || diff > atol+rtol*math.Abs(w) {
			r.Mismatches++
		}
	}
	return r
}

// PCC returns the Pearson correlation coefficient between the two buffers.
// Identical buffers give 1; the conformance harness treats >=0.99 as
// matching for the looser block-float paths.
func PCC(a, b []float32) float64 {
	n := float64(len(a))
	if n == 0 || len(a) != len(b) {
		return 0
	}
	var sumA, sumB float64
	for i := range a {
		sumA += float64(a[i])
		sumB += float64(b[i])
	}
	meanA, meanB := sumA/n, sumB/n
	var cov, varA, varB float64
	for i := range a {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		if varA == varB {
			return 1
		}
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
