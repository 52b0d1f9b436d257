package device

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/mem"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// The fused softmax follows the reference computation exactly: exponentiate
// without subtracting the row max, sum over the last axis, multiply by the
// reciprocal of the sum. The unstabilized form is the documented target;
// callers feeding extreme ranges get what the reference gets.
//
// Both entry points mutate the input buffer and return the same handle. No
// new allocation is made for the primary buffer; per-partition scratch is
// row sized. BFP8 inputs are rejected because the fused path produces
// incorrect output for that format.

// SoftmaxInPlace normalizes each W-length row of t so it sums to 1, within
// the tolerance of t's dtype.
func (c *Context) SoftmaxInPlace(t *Tensor) (*Tensor, error) {
	start := time.Now()
	defer func() { metrics.ObserveKernel("softmax_in_place", time.Since(start).Seconds()) }()

	if err := c.checkFusedInput("softmax_in_place", t); err != nil {
		return nil, err
	}
	c.fusedSoftmaxRows(t, 1, nil, false)
	return t, nil
}

// ScaleMaskSoftmaxInPlace computes softmax(t*scale + mask) in place. scale
// must be a [1,1,1,1] tensor; mask is either [N,C,1,W] broadcast over H or
// the full [N,C,H,W] shape, with W matching t.
func (c *Context) ScaleMaskSoftmaxInPlace(t, scale, mask *Tensor) (*Tensor, error) {
	start := time.Now()
	defer func() { metrics.ObserveKernel("scale_mask_softmax_in_place", time.Since(start).Seconds()) }()

	if err := c.checkFusedInput("scale_mask_softmax_in_place", t); err != nil {
		return nil, err
	}

	ss := scale.Shape()
	if ss.N != 1 || ss.C != 1 || ss.H != 1 || ss.W != 1 {
		metrics.ValidationErrors.WithLabelValues("scale_mask_softmax_in_place", "shape_mismatch").Inc()
		return nil, &ShapeMismatchError{Op: "scale_mask_softmax_in_place", A: t.Shape(), B: ss}
	}
	sv, err := tile.Dequantize(scale.DType(), scale.Buffer().Bytes(), 1)
	if err != nil {
		return nil, err
	}

	ts, ms := t.Shape(), mask.Shape()
	maskFull := false
	switch {
	case ms.N == ts.N && ms.C == ts.C && ms.H == 1 && ms.W == ts.W:
	case ms == ts && mask.Layout() == t.Layout():
		maskFull = true
	default:
		metrics.ValidationErrors.WithLabelValues("scale_mask_softmax_in_place", "shape_mismatch").Inc()
		return nil, &ShapeMismatchError{Op: "scale_mask_softmax_in_place", A: ts, B: ms}
	}

	c.fusedSoftmaxRows(t, sv[0], mask, maskFull)
	return t, nil
}

func (c *Context) checkFusedInput(op string, t *Tensor) error {
	if t.DType() == tile.BFP8 {
		metrics.ValidationErrors.WithLabelValues(op, "unsupported_dtype").Inc()
		return &UnsupportedDataTypeError{Op: op, DType: t.DType()}
	}
	if t.Layout() != tile.Tiled {
		metrics.ValidationErrors.WithLabelValues(op, "layout").Inc()
		return &mem.LayoutError{Layout: t.Layout(), Shape: t.Shape(), Reason: op + " requires the tiled layout"}
	}
	return nil
}

// fusedSoftmaxRows runs the scale/mask/exp/sum/recip/mul sequence over
// every row, rounding each step through the tensor's dtype to match what
// the device writes between fused stages.
func (c *Context) fusedSoftmaxRows(t *Tensor, scale float32, mask *Tensor, maskFull bool) {
	s := t.Shape()
	d := t.DType()
	var nans atomic.Int64

	// Row-broadcast masks are loaded once per plane up front; the parallel
	// partitions only read them.
	var maskRows [][]float32
	if mask != nil && !maskFull {
		maskRows = make([][]float32, s.N*s.C)
		for p := range maskRows {
			maskRows[p] = make([]float32, s.W)
			mask.loadRow(p, 0, maskRows[p])
		}
	}

	c.parallelRows(s.N*s.C, s.H, func(plane, row int) {
		v := make([]float32, s.W)
		t.loadRow(plane, row, v)

		if scale != 1 {
			for i := range v {
				v[i] *= scale
			}
			tile.RoundThrough(d, v)
		}
		if mask != nil {
			var m []float32
			if maskFull {
				m = make([]float32, s.W)
				mask.loadRow(plane, row, m)
			} else {
				m = maskRows[plane]
			}
			for i := range v {
				v[i] += m[i]
			}
			tile.RoundThrough(d, v)
		}

		for i := range v {
			v[i] = float32(math.Exp(float64(v[i])))
		}
		tile.RoundThrough(d, v)

		sum := float32(0)
		for _, e := range v {
			sum += e
		}
		r := roundScalar(d, 1/roundScalar(d, sum))
		for i := range v {
			v[i] *= r
		}
		if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
			nans.Add(1)
		}
		t.storeRow(plane, row, v)
	})

	if n := nans.Load(); n > 0 {
		metrics.NumericalInstability.WithLabelValues("fused_softmax", "row_recip").Add(float64(n))
	}
}

func roundScalar(d tile.DType, v float32) float32 {
	if d == tile.BFloat16 {
		return tile.BF16ToFloat32(tile.Float32ToBF16(v))
	}
	return v
}
