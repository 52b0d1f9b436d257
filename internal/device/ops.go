package device

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Broadcast forms accepted by the binary primitives. The second operand may
// be a global scalar [1,1,1,1], a per-plane scalar [N,C,1,1], a row
// [N,C,1,W] repeated over H, a column [N,C,H,1] repeated over W, or the
// full shape. A tiled column operand is one tile wide with the value in
// column 0, matching what SumLastAxis materializes.
type bcast uint8

const (
	bcastScalar bcast = iota
	bcastPlane
	bcastRow
	bcastCol
	bcastFull
)

func classifyBcast(op string, a, b *Tensor) (bcast, error) {
	as, bs := a.Shape(), b.Shape()
	switch {
	case bs.N == 1 && bs.C == 1 && bs.H == 1 && bs.W == 1:
		return bcastScalar, nil
	case bs.N == as.N && bs.C == as.C && bs.H == 1 && bs.W == 1:
		return bcastPlane, nil
	case bs.N == as.N && bs.C == as.C && bs.H == 1 && bs.W == as.W:
		return bcastRow, nil
	case bs == as && b.Layout() == a.Layout():
		return bcastFull, nil
	case bs.N == as.N && bs.C == as.C && bs.H == as.H && (bs.W == 1 || (b.Layout() == tile.Tiled && bs.W == tile.Dim)):
		return bcastCol, nil
	default:
		metrics.ValidationErrors.WithLabelValues(op, "shape_mismatch").Inc()
		return 0, &ShapeMismatchError{Op: op, A: as, B: bs}
	}
}

// parallelRows runs fn over every (plane, row) pair, sharding across the
// context's thread count. Blocks until all partitions complete.
func (c *Context) parallelRows(planes, rows int, fn func(plane, row int)) {
	total := planes * rows
	workers := c.numThreads
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		for i := 0; i < total; i++ {
			fn(i/rows, i%rows)
		}
		return
	}

	const chunk = 64
	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				start := int(next.Add(chunk)) - chunk
				if start >= total {
					return
				}
				end := start + chunk
				if end > total {
					end = total
				}
				for i := start; i < end; i++ {
					fn(i/rows, i%rows)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Context) unaryOp(name string, t *Tensor, fn func(float32) float32) (*Tensor, error) {
	start := time.Now()
	defer func() { metrics.ObserveKernel(name, time.Since(start).Seconds()) }()

	out, err := c.NewTensor(t.name+"_"+name, t.Shape(), t.DType(), t.Layout(), t.Region(), t.Placement())
	if err != nil {
		return nil, err
	}
	s := t.Shape()
	c.parallelRows(s.N*s.C, s.H, func(plane, row int) {
		scratch := make([]float32, s.W)
		t.loadRow(plane, row, scratch)
		for i, v := range scratch {
			scratch[i] = fn(v)
		}
		out.storeRow(plane, row, scratch)
	})
	return out, nil
}

// Exp computes elementwise e^x into a new tensor.
func (c *Context) Exp(t *Tensor) (*Tensor, error) {
	return c.unaryOp("exp", t, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

// Sqrt computes the elementwise square root into a new tensor.
func (c *Context) Sqrt(t *Tensor) (*Tensor, error) {
	return c.unaryOp("sqrt", t, func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// Recip computes the elementwise reciprocal into a new tensor.
func (c *Context) Recip(t *Tensor) (*Tensor, error) {
	return c.unaryOp("recip", t, func(v float32) float32 {
		return 1 / v
	})
}

func (c *Context) binaryOp(name string, a, b *Tensor, fn func(x, y float32) float32) (*Tensor, error) {
	start := time.Now()
	defer func() { metrics.ObserveKernel(name, time.Since(start).Seconds()) }()

	kind, err := classifyBcast(name, a, b)
	if err != nil {
		return nil, err
	}
	out, err := c.NewTensor(a.name+"_"+name, a.Shape(), a.DType(), a.Layout(), a.Region(), a.Placement())
	if err != nil {
		return nil, err
	}

	s := a.Shape()
	var scalars []float32
	if kind == bcastScalar || kind == bcastPlane {
		scalars, err = tile.Dequantize(b.DType(), b.Buffer().Bytes(), b.Shape().NumElements())
		if err != nil {
			out.Free()
			return nil, err
		}
	}

	c.parallelRows(s.N*s.C, s.H, func(plane, row int) {
		ra := make([]float32, s.W)
		a.loadRow(plane, row, ra)
		switch kind {
		case bcastScalar:
			y := scalars[0]
			for i, x := range ra {
				ra[i] = fn(x, y)
			}
		case bcastPlane:
			y := scalars[plane]
			for i, x := range ra {
				ra[i] = fn(x, y)
			}
		case bcastRow:
			rb := make([]float32, s.W)
			b.loadRow(plane, 0, rb)
			for i, x := range ra {
				ra[i] = fn(x, rb[i])
			}
		case bcastCol:
			rb := make([]float32, b.Shape().W)
			b.loadRow(plane, row, rb)
			y := rb[0]
			for i, x := range ra {
				ra[i] = fn(x, y)
			}
		case bcastFull:
			rb := make([]float32, s.W)
			b.loadRow(plane, row, rb)
			for i, x := range ra {
				ra[i] = fn(x, rb[i])
			}
		}
		out.storeRow(plane, row, ra)
	})
	return out, nil
}

// Add computes a+b into a new tensor, broadcasting b as needed.
func (c *Context) Add(a, b *Tensor) (*Tensor, error) {
	return c.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub computes a-b into a new tensor, broadcasting b as needed.
func (c *Context) Sub(a, b *Tensor) (*Tensor, error) {
	return c.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul computes a*b into a new tensor, broadcasting b as needed.
func (c *Context) Mul(a, b *Tensor) (*Tensor, error) {
	return c.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// SumLastAxis reduces over W. The result is logically [N,C,H,1],
// materialized one tile wide with each row's sum in column 0 so it can
// feed the broadcast multiply without a layout change.
func (c *Context) SumLastAxis(t *Tensor) (*Tensor, error) {
	start := time.Now()
	defer func() { metrics.ObserveKernel("sum_last_axis", time.Since(start).Seconds()) }()

	s := t.Shape()
	outShape := tile.Shape{N: s.N, C: s.C, H: s.H, W: tile.Dim}
	out, err := c.NewTensor(t.name+"_rowsum", outShape, t.DType(), t.Layout(), t.Region(), t.Placement())
	if err != nil {
		return nil, err
	}
	c.parallelRows(s.N*s.C, s.H, func(plane, row int) {
		scratch := make([]float32, s.W)
		t.loadRow(plane, row, scratch)
		sum := float32(0)
		for _, v := range scratch {
			sum += v
		}
		dst := make([]float32, tile.Dim)
		dst[0] = sum
		out.storeRow(plane, row, dst)
	})
	return out, nil
}
