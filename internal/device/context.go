package device

import (
	"fmt"
	"runtime"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/mem"
)

// Options sizes a device context. Zero values fall back to defaults.
type Options struct {
	BulkCapacity  int64 // bytes, default 1 GiB
	LocalCapacity int64 // bytes, default 1 MiB
	BulkBanks     int   // default 12
	LocalBanks    int   // default 64
	NumThreads    int   // default runtime.NumCPU()
}

func (o Options) withDefaults() Options {
	if o.BulkCapacity == 0 {
		o.BulkCapacity = 1 << 30
	}
	if o.LocalCapacity == 0 {
		o.LocalCapacity = 1 << 20
	}
	if o.BulkBanks == 0 {
		o.BulkBanks = 12
	}
	if o.LocalBanks == 0 {
		o.LocalBanks = 64
	}
	if o.NumThreads == 0 {
		o.NumThreads = runtime.NumCPU()
	}
	return o
}

// Context is an open handle on one device. Every allocation and kernel
// launch goes through a context; there is no process-global device state.
type Context struct {
	id         int
	alloc      *mem.Allocator
	numThreads int
	closed     bool
}

// Open acquires device id and prepares its memory regions. The caller owns
// the returned context and must Close it.
func Open(id int, opts Options) (*Context, error) {
	if id < 0 {
		return nil, fmt.Errorf("invalid device id %d", id)
	}
	o := opts.withDefaults()
	logger.Log.Info("opening device",
		"device", id,
		"bulk_capacity", o.BulkCapacity,
		"local_capacity", o.LocalCapacity,
		"threads", o.NumThreads)
	return &Context{
		id:         id,
		alloc:      mem.NewAllocator(o.BulkCapacity, o.LocalCapacity, o.BulkBanks, o.LocalBanks),
		numThreads: o.NumThreads,
	}, nil
}

func (c *Context) Device() int {
	return c.id
}

func (c *Context) Allocator() *mem.Allocator {
	return c.alloc
}

func (c *Context) NumThreads() int {
	return c.numThreads
}

func (c *Context) SetNumThreads(n int) {
	if n > 0 {
		c.numThreads = n
	}
}

// Close releases the device. Buffers allocated from the context must not
// be used afterwards. Safe to call more than once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	logger.Log.Info("closing device",
		"device", c.id,
		"bulk_used", c.alloc.Used(mem.Bulk),
		"local_used", c.alloc.Used(mem.Local))
}
