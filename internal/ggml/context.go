package ggml

import (
	"math/bits"
	"unsafe"
)

// Layout constants of the engine's memory block.
const (
	// MemAlign is the alignment of every object and of tensor data.
	MemAlign = 16

	// ObjectOverhead is the bookkeeping header reserved in front of every
	// object in the block.
	ObjectOverhead = 32

	// TensorOverhead is the size of the tensor metadata record stored in the
	// block before the tensor's data.
	TensorOverhead = 176

	// MaxDims is the maximum tensor rank.
	MaxDims = 4
)

// InitParams configures a context.
type InitParams struct {
	// MemSize is the number of bytes the engine allocates when MemBuffer is
	// nil. Ignored otherwise.
	MemSize int

	// MemBuffer is caller-owned memory the context is drawn over. The engine
	// never frees it.
	MemBuffer []byte
}

// Context is an allocator over one contiguous memory block.
//
// Contexts are not safe for concurrent use.
type Context struct {
	mem     []byte
	owned   bool
	release func([]byte) error
	offs    int // next free byte in mem
	objects int
	freed   bool
}

// Init creates a context. It returns nil when the block cannot be obtained,
// when the block is empty, or when the caller buffer is too small to hold a
// single aligned byte.
func Init(params InitParams) *Context {
	if params.MemBuffer != nil {
		mem := alignBuffer(params.MemBuffer)
		if len(mem) == 0 {
			return nil
		}
		return &Context{mem: mem}
	}

	if params.MemSize <= 0 {
		return nil
	}

	mem, release, err := allocBlock(params.MemSize)
	if err != nil {
		return nil
	}

	return &Context{
		mem:     mem,
		owned:   true,
		release: release,
	}
}

// alignBuffer trims the head of buf so that its first byte is MemAlign
// aligned.
func alignBuffer(buf []byte) []byte {
	if len(buf) == 0 {
		return nil
	}
	//nolint:gosec // address arithmetic only, the pointer is not retained
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	pad := int((MemAlign - addr%MemAlign) % MemAlign)
	if pad >= len(buf) {
		return nil
	}
	return buf[pad:]
}

// NewTensor allocates a tensor of the given type and extents (1 to MaxDims
// axes, fastest axis first). Data is zeroed. It returns nil when the type is
// not storable, an extent is not positive, a quantized row is not a whole
// number of blocks, or the block has no room left.
func (c *Context) NewTensor(typ Type, ne ...int64) *Tensor {
	if c.freed || len(ne) == 0 || len(ne) > MaxDims || !typ.Valid() {
		return nil
	}

	trait := typ.Trait()

	t := &Tensor{
		Type: typ,
		Dims: len(ne),
		Ne:   [MaxDims]int64{1, 1, 1, 1},
	}
	for i, n := range ne {
		if n <= 0 {
			return nil
		}
		t.Ne[i] = n
	}
	if t.Ne[0]%int64(trait.BlockSize) != 0 {
		return nil
	}

	var ok bool
	t.Nb[0] = uint64(trait.TypeSize)
	if t.Nb[1], ok = mulNoOverflow(t.Nb[0], uint64(t.Ne[0]/int64(trait.BlockSize))); !ok {
		return nil
	}
	for i := 2; i < MaxDims; i++ {
		if t.Nb[i], ok = mulNoOverflow(t.Nb[i-1], uint64(t.Ne[i-1])); !ok {
			return nil
		}
	}

	size, ok := mulNoOverflow(t.Nb[MaxDims-1], uint64(t.Ne[MaxDims-1]))
	if !ok || size > uint64(len(c.mem)) {
		return nil
	}

	objStart := c.offs
	dataStart := alignUp(objStart + ObjectOverhead + TensorOverhead)
	dataEnd := dataStart + int(size)
	if dataEnd > len(c.mem) {
		return nil
	}

	t.data = c.mem[dataStart:dataEnd:dataEnd]
	t.Offset = dataStart
	clear(t.data)

	c.offs = alignUp(dataEnd)
	if c.offs > len(c.mem) {
		c.offs = len(c.mem)
	}
	c.objects++

	return t
}

// NewTensor1D allocates a one-dimensional tensor.
func (c *Context) NewTensor1D(typ Type, ne0 int64) *Tensor {
	return c.NewTensor(typ, ne0)
}

// NewTensor2D allocates a two-dimensional tensor.
func (c *Context) NewTensor2D(typ Type, ne0, ne1 int64) *Tensor {
	return c.NewTensor(typ, ne0, ne1)
}

// NewTensor3D allocates a three-dimensional tensor.
func (c *Context) NewTensor3D(typ Type, ne0, ne1, ne2 int64) *Tensor {
	return c.NewTensor(typ, ne0, ne1, ne2)
}

// NewF32 allocates a single F32 element holding x.
func (c *Context) NewF32(x float32) *Tensor {
	t := c.NewTensor(TypeF32, 1)
	if t == nil {
		return nil
	}
	t.SetF32(x)
	return t
}

// UsedMem returns the number of bytes of the block consumed by objects.
func (c *Context) UsedMem() int {
	return c.offs
}

// MemSize returns the usable size of the block.
func (c *Context) MemSize() int {
	return len(c.mem)
}

// Objects returns the number of objects allocated in the context.
func (c *Context) Objects() int {
	return c.objects
}

// Free releases the context. Engine-owned blocks are returned to the OS;
// caller buffers are left alone. Calling Free twice is a no-op.
func (c *Context) Free() error {
	if c.freed {
		return nil
	}
	c.freed = true

	mem := c.mem
	c.mem = nil
	if c.owned && c.release != nil {
		return c.release(mem)
	}
	return nil
}

func mulNoOverflow(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func alignUp(n int) int {
	return (n + MemAlign - 1) &^ (MemAlign - 1)
}
