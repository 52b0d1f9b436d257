package device

import (
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/mem"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Tensor is a device-resident buffer with a logical [N,C,H,W] shape, an
// element dtype and a storage layout. In-place kernels mutate the buffer
// and hand back the same handle; callers must not keep other live
// references expecting unchanged content.
type Tensor struct {
	ctx  *Context
	buf  *mem.Buffer
	name string
}

// NewTensor allocates a zeroed tensor.
func (c *Context) NewTensor(name string, shape tile.Shape, dtype tile.DType, layout tile.Layout, region mem.Region, placement mem.Placement) (*Tensor, error) {
	buf, err := c.alloc.Allocate(shape, dtype, layout, region, placement)
	if err != nil {
		metrics.ValidationErrors.WithLabelValues("allocate", fmt.Sprintf("%T", err)).Inc()
		return nil, err
	}
	return &Tensor{ctx: c, buf: buf, name: name}, nil
}

// NewTensorFromHost encodes a dense row-major host buffer onto the device,
// tilizing first when the target layout is tiled.
func (c *Context) NewTensorFromHost(name string, dense []float32, shape tile.Shape, dtype tile.DType, layout tile.Layout, region mem.Region, placement mem.Placement) (*Tensor, error) {
	if len(dense) != shape.NumElements() {
		return nil, &tile.ShapeError{Shape: shape, Reason: "host buffer length does not match shape"}
	}
	t, err := c.NewTensor(name, shape, dtype, layout, region, placement)
	if err != nil {
		return nil, err
	}

	src := dense
	if layout == tile.Tiled {
		src, err = tile.Tilize(dense, shape)
		if err != nil {
			t.Free()
			return nil, err
		}
		metrics.TilizeElementsTotal.WithLabelValues("tilize").Add(float64(len(src)))
	}
	if err := tile.QuantizeInto(dtype, t.buf.Bytes(), src); err != nil {
		t.Free()
		return nil, err
	}
	return t, nil
}

// ToHost decodes the tensor back to a dense row-major float32 buffer.
func (t *Tensor) ToHost() ([]float32, error) {
	vals, err := tile.Dequantize(t.DType(), t.buf.Bytes(), t.Shape().NumElements())
	if err != nil {
		return nil, err
	}
	if t.Layout() == tile.Tiled {
		vals, err = tile.Untilize(vals, t.Shape())
		if err != nil {
			return nil, err
		}
		metrics.TilizeElementsTotal.WithLabelValues("untilize").Add(float64(len(vals)))
	}
	return vals, nil
}

// CopyTo materializes an independent copy in another region/placement.
func (t *Tensor) CopyTo(region mem.Region, placement mem.Placement) (*Tensor, error) {
	buf, err := t.ctx.alloc.CopyTo(t.buf, region, placement)
	if err != nil {
		return nil, err
	}
	return &Tensor{ctx: t.ctx, buf: buf, name: t.name}, nil
}

func (t *Tensor) Name() string             { return t.name }
func (t *Tensor) Shape() tile.Shape        { return t.buf.Shape() }
func (t *Tensor) DType() tile.DType        { return t.buf.DType() }
func (t *Tensor) Layout() tile.Layout      { return t.buf.Layout() }
func (t *Tensor) Region() mem.Region       { return t.buf.Region() }
func (t *Tensor) Placement() mem.Placement { return t.buf.Placement() }
func (t *Tensor) Buffer() *mem.Buffer      { return t.buf }

func (t *Tensor) Free() {
	t.buf.Release()
}

// loadRow gathers one logical W-length row into dst, crossing tile
// boundaries in tiled layout. dst must have length W. The allocator only
// admits shapes whose row segments are block aligned for every dtype, so
// the per-row codec calls here cannot fail.
func (t *Tensor) loadRow(plane, row int, dst []float32) {
	s := t.Shape()
	d := t.DType()
	raw := t.buf.Bytes()
	if t.Layout() == tile.RowMajor {
		off := d.ByteOffset((plane*s.H + row) * s.W)
		tile.DequantizeInto(d, dst, raw[off:])
		return
	}
	tilesH := s.H / tile.Dim
	tilesW := s.W / tile.Dim
	th, r := row/tile.Dim, row%tile.Dim
	for tw := 0; tw < tilesW; tw++ {
		elem := ((plane*tilesH+th)*tilesW+tw)*tile.Elems + r*tile.Dim
		off := d.ByteOffset(elem)
		tile.DequantizeInto(d, dst[tw*tile.Dim:(tw+1)*tile.Dim], raw[off:])
	}
}

// storeRow writes one logical row back, quantizing through the tensor's
// dtype.
func (t *Tensor) storeRow(plane, row int, src []float32) {
	s := t.Shape()
	d := t.DType()
	raw := t.buf.Bytes()
	if t.Layout() == tile.RowMajor {
		off := d.ByteOffset((plane*s.H + row) * s.W)
		tile.QuantizeInto(d, raw[off:], src)
		return
	}
	tilesH := s.H / tile.Dim
	tilesW := s.W / tile.Dim
	th, r := row/tile.Dim, row%tile.Dim
	for tw := 0; tw < tilesW; tw++ {
		elem := ((plane*tilesH+th)*tilesW+tw)*tile.Elems + r*tile.Dim
		off := d.ByteOffset(elem)
		tile.QuantizeInto(d, raw[off:], src[tw*tile.Dim:(tw+1)*tile.Dim])
	}
}
