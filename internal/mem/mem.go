package mem

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Region identifies a physical memory pool on the device.
type Region uint8

const (
	// Bulk is the large, higher latency pool.
	Bulk Region = iota
	// Local is the small, low latency pool.
	Local
)

func (r Region) String() string {
	switch r {
	case Bulk:
		return "BULK"
	case Local:
		return "LOCAL"
	default:
		return "unknown"
	}
}

// Placement selects how a buffer's tiles map onto the region's banks.
type Placement uint8

const (
	// Interleaved stripes tiles round-robin across the region's banks.
	Interleaved Placement = iota
	// Contiguous keeps the whole buffer in a single span of one bank.
	Contiguous
)

func (p Placement) String() string {
	switch p {
	case Interleaved:
		return "INTERLEAVED"
	case Contiguous:
		return "CONTIGUOUS"
	default:
		return "unknown"
	}
}

// CapacityError reports an allocation that exceeds a region's capacity.
type CapacityError struct {
	Region    Region
	Requested int64
	Used      int64
	Capacity  int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s region capacity exceeded: requested %d bytes, %d/%d in use",
		e.Region, e.Requested, e.Used, e.Capacity)
}

// LayoutError reports an invalid layout/shape combination.
type LayoutError struct {
	Layout tile.Layout
	Shape  tile.Shape
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid %s layout for shape %s: %s", e.Layout, e.Shape, e.Reason)
}

type regionState struct {
	region   Region
	capacity int64
	banks    int
	used     atomic.Int64
}

// Allocator owns the device memory regions and hands out placed buffers.
type Allocator struct {
	pool    memory.Allocator
	regions [2]*regionState
}

// NewAllocator builds an allocator with the given per-region capacities in
// bytes and bank counts. Bank counts must be positive; interleaved
// placement stripes tiles across them.
func NewAllocator(bulkCapacity, localCapacity int64, bulkBanks, localBanks int) *Allocator {
	return &Allocator{
		pool: memory.NewGoAllocator(),
		regions: [2]*regionState{
			{region: Bulk, capacity: bulkCapacity, banks: bulkBanks},
			{region: Local, capacity: localCapacity, banks: localBanks},
		},
	}
}

// Used returns the bytes currently allocated from a region.
func (a *Allocator) Used(r Region) int64 {
	return a.regions[r].used.Load()
}

// Buffer is a placed, device-resident allocation. Placement is fixed at
// allocation time; changing it requires CopyTo.
type Buffer struct {
	alloc     *Allocator
	buf       *memory.Buffer
	shape     tile.Shape
	dtype     tile.DType
	layout    tile.Layout
	region    Region
	placement Placement
	footprint int64
	released  bool
}

// Allocate reserves storage for shape/dtype/layout in the given region with
// the given placement. Returns LayoutError for shapes that violate the
// layout's constraints and CapacityError when the region is full.
func (a *Allocator) Allocate(shape tile.Shape, dtype tile.DType, layout tile.Layout, region Region, placement Placement) (*Buffer, error) {
	if err := shape.Validate(); err != nil {
		return nil, &LayoutError{Layout: layout, Shape: shape, Reason: err.Error()}
	}
	if layout == tile.Tiled {
		if err := shape.CheckTiled(); err != nil {
			return nil, &LayoutError{Layout: layout, Shape: shape, Reason: err.Error()}
		}
	} else if placement == Interleaved {
		return nil, &LayoutError{Layout: layout, Shape: shape, Reason: "interleaved placement requires the tiled layout"}
	}
	// Kernels stream row-major tensors one W-length row at a time, so every
	// row must start and end on a block boundary for the block-float dtype.
	if dtype == tile.BFP8 && layout == tile.RowMajor && shape.W%tile.BFP8BlockElems != 0 {
		return nil, &LayoutError{Layout: layout, Shape: shape,
			Reason: fmt.Sprintf("row length %d is not a multiple of the %d-element block required by %s", shape.W, tile.BFP8BlockElems, dtype)}
	}

	footprint := int64(dtype.Footprint(shape.NumElements()))
	st := a.regions[region]
	for {
		used := st.used.Load()
		if used+footprint > st.capacity {
			return nil, &CapacityError{Region: region, Requested: footprint, Used: used, Capacity: st.capacity}
		}
		if st.used.CompareAndSwap(used, used+footprint) {
			break
		}
	}

	buf := memory.NewResizableBuffer(a.pool)
	buf.Resize(int(footprint))
	metrics.RegionAllocatedBytes.WithLabelValues(region.String()).Set(float64(st.used.Load()))

	return &Buffer{
		alloc:     a,
		buf:       buf,
		shape:     shape,
		dtype:     dtype,
		layout:    layout,
		region:    region,
		placement: placement,
		footprint: footprint,
	}, nil
}

// CopyTo produces a new buffer with identical contents in a different
// region/placement. The source is unaffected and shares no storage with
// the copy.
func (a *Allocator) CopyTo(b *Buffer, region Region, placement Placement) (*Buffer, error) {
	dst, err := a.Allocate(b.shape, b.dtype, b.layout, region, placement)
	if err != nil {
		return nil, err
	}
	copy(dst.Bytes(), b.Bytes())
	return dst, nil
}

func (b *Buffer) Bytes() []byte          { return b.buf.Bytes() }
func (b *Buffer) Shape() tile.Shape      { return b.shape }
func (b *Buffer) DType() tile.DType      { return b.dtype }
func (b *Buffer) Layout() tile.Layout    { return b.layout }
func (b *Buffer) Region() Region         { return b.region }
func (b *Buffer) Placement() Placement   { return b.placement }
func (b *Buffer) Footprint() int64       { return b.footprint }

// Bank returns the bank index holding the given tile. Contiguous buffers
// live entirely in bank 0.
func (b *Buffer) Bank(tileIndex int) int {
	if b.placement == Contiguous {
		return 0
	}
	return tileIndex % b.alloc.regions[b.region].banks
}

// Release returns the buffer's storage to its region. Safe to call once;
// further calls are no-ops.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	st := b.alloc.regions[b.region]
	st.used.Add(-b.footprint)
	metrics.RegionAllocatedBytes.WithLabelValues(b.region.String()).Set(float64(st.used.Load()))
	b.buf.Release()
}
