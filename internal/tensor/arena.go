package tensor

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/ggmlio/internal/ggml"
)

// generations hands out a distinct generation to every arena. Zero is never
// issued and marks a closed arena.
var generations atomic.Uint32

// liveBuffers tracks caller buffers currently backing an arena. Claims are
// keyed by claim, since arena IDs are caller-chosen and may repeat.
var liveBuffers = struct {
	sync.Mutex
	claims map[*bufferClaim]struct{}
}{claims: make(map[*bufferClaim]struct{})}

type bufferClaim struct {
	start, end uintptr
	owner      uuid.UUID
}

// Arena is a fixed-capacity memory region plus the engine context drawn over
// it. Tensors are carved out of the arena and released all at once by Close.
//
// Every Tensor handle records the arena generation it was issued under; once
// the arena is closed its generation no longer matches and any use of the
// handle panics.
//
// An Arena is meant for single-goroutine use. Callers that share one across
// goroutines must synchronize access themselves.
type Arena struct {
	id     uuid.UUID
	ctx    *ggml.Context
	slots  []*ggml.Tensor
	gen    atomic.Uint32
	issued uint32
	buffer []byte // caller memory, nil when the engine owns the block
	claim  *bufferClaim
	log    logrus.FieldLogger
}

type arenaConfig struct {
	log logrus.FieldLogger
	id  uuid.UUID
}

// ArenaOption configures an Arena.
type ArenaOption func(*arenaConfig)

// WithArenaLogger sets the logger used for arena lifecycle events.
func WithArenaLogger(l logrus.FieldLogger) ArenaOption {
	return func(c *arenaConfig) {
		c.log = l
	}
}

// WithArenaID overrides the generated arena identifier.
func WithArenaID(id uuid.UUID) ArenaOption {
	return func(c *arenaConfig) {
		c.id = id
	}
}

// NewArena creates an arena whose block of capacity bytes is allocated and
// owned by the engine. It panics if the engine cannot provide the block.
func NewArena(capacity int, opts ...ArenaOption) *Arena {
	cfg := newArenaConfig(opts)
	ctx := ggml.Init(ggml.InitParams{MemSize: capacity})
	if ctx == nil {
		fatalf(cfg.log, logrus.Fields{"capacity": capacity}, "tensor: engine returned no context for %d bytes", capacity)
	}
	return newArena(ctx, nil, cfg)
}

// NewArenaOverBuffer creates an arena drawn over caller memory. The arena
// never frees buf; the caller must keep it alive, and must not reuse it,
// until Close returns. It panics if the engine rejects the buffer or if buf
// overlaps memory already backing a live arena.
func NewArenaOverBuffer(buf []byte, opts ...ArenaOption) *Arena {
	cfg := newArenaConfig(opts)
	var claim *bufferClaim
	if len(buf) > 0 {
		claim = claimBuffer(cfg, buf)
	}
	ctx := ggml.Init(ggml.InitParams{MemBuffer: buf})
	if ctx == nil {
		releaseBuffer(claim)
		fatalf(cfg.log, logrus.Fields{"capacity": len(buf)}, "tensor: engine returned no context over a %d byte buffer", len(buf))
	}
	a := newArena(ctx, buf, cfg)
	a.claim = claim
	return a
}

func newArenaConfig(opts []ArenaOption) *arenaConfig {
	cfg := &arenaConfig{
		log: logrus.StandardLogger(),
		id:  uuid.New(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newArena(ctx *ggml.Context, buf []byte, cfg *arenaConfig) *Arena {
	gen := generations.Add(1)
	if gen == 0 {
		gen = generations.Add(1)
	}

	a := &Arena{
		id:     cfg.id,
		ctx:    ctx,
		issued: gen,
		buffer: buf,
		log:    cfg.log.WithField("arena", cfg.id.String()),
	}
	a.gen.Store(gen)

	a.log.WithFields(logrus.Fields{
		"capacity": ctx.MemSize(),
		"external": buf != nil,
	}).Debug("arena created")

	return a
}

func claimBuffer(cfg *arenaConfig, buf []byte) *bufferClaim {
	//nolint:gosec // address arithmetic only
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	c := &bufferClaim{start: start, end: start + uintptr(len(buf)), owner: cfg.id}

	liveBuffers.Lock()
	for other := range liveBuffers.claims {
		if c.start < other.end && other.start < c.end {
			liveBuffers.Unlock()
			fatalf(cfg.log, logrus.Fields{"owner": other.owner.String()}, "tensor: buffer already backs a live arena")
		}
	}
	liveBuffers.claims[c] = struct{}{}
	liveBuffers.Unlock()
	return c
}

func releaseBuffer(c *bufferClaim) {
	if c == nil {
		return
	}
	liveBuffers.Lock()
	delete(liveBuffers.claims, c)
	liveBuffers.Unlock()
}

// ID returns the arena identifier.
func (a *Arena) ID() uuid.UUID {
	return a.id
}

// Generation returns the generation handles are issued under, or 0 once the
// arena is closed.
func (a *Arena) Generation() uint32 {
	return a.gen.Load()
}

// Live reports whether the arena has not been closed.
func (a *Arena) Live() bool {
	return a.gen.Load() != 0
}

// UsedMem returns the bytes of the block consumed by tensors and their
// metadata.
func (a *Arena) UsedMem() int {
	return a.ctx.UsedMem()
}

// Capacity returns the usable size of the block.
func (a *Arena) Capacity() int {
	if !a.Live() {
		return 0
	}
	return a.ctx.MemSize()
}

// Len returns the number of tensors allocated from the arena.
func (a *Arena) Len() int {
	return len(a.slots)
}

// External reports whether the arena is drawn over caller memory.
func (a *Arena) External() bool {
	return a.buffer != nil
}

// NewTensor allocates a tensor with one to three axes (fastest axis first).
// Data is zeroed. It panics when the arena is closed, when dt cannot hold
// data, or when the arena is out of memory.
func (a *Arena) NewTensor(dt DataType, extents ...int) *Tensor {
	if len(extents) < 1 || len(extents) > 3 {
		fatalf(a.log, nil, "tensor: %d axes requested, want 1 to 3", len(extents))
	}
	ne := make([]int64, len(extents))
	for i, e := range extents {
		ne[i] = int64(e)
	}
	return a.allocate(dt, Dimension(len(extents)), ne)
}

// NewTensor1D allocates a one-dimensional tensor.
func (a *Arena) NewTensor1D(dt DataType, ne0 int) *Tensor {
	return a.NewTensor(dt, ne0)
}

// NewTensor2D allocates a two-dimensional tensor.
func (a *Arena) NewTensor2D(dt DataType, ne0, ne1 int) *Tensor {
	return a.NewTensor(dt, ne0, ne1)
}

// NewTensor3D allocates a three-dimensional tensor.
func (a *Arena) NewTensor3D(dt DataType, ne0, ne1, ne2 int) *Tensor {
	return a.NewTensor(dt, ne0, ne1, ne2)
}

// NewScalarF32 allocates a single F32 element holding x.
func (a *Arena) NewScalarF32(x float32) *Tensor {
	t := a.allocate(F32, Scalar, []int64{1})
	t.raw().SetF32(x)
	return t
}

// Allocate allocates a tensor for a fully resolved shape. A Scalar shape
// yields a single element of dt.
func (a *Arena) Allocate(dt DataType, shape Shape) *Tensor {
	if !shape.Resolved() {
		fatalf(a.log, nil, "tensor: allocate with unresolved shape %s", shape)
	}
	if shape.Dim == Scalar {
		return a.allocate(dt, Scalar, []int64{1})
	}
	ne := make([]int64, len(shape.Extents))
	for i, e := range shape.Extents {
		ne[i] = int64(e)
	}
	return a.allocate(dt, shape.Dim, ne)
}

func (a *Arena) allocate(dt DataType, dim Dimension, ne []int64) *Tensor {
	if !a.Live() {
		fatalf(a.log, nil, "tensor: allocation from a closed arena")
	}
	if !dt.Storable() {
		fatalf(a.log, nil, "tensor: cannot allocate %s tensor", dt)
	}

	raw := a.ctx.NewTensor(dt.Native(), ne...)
	if raw == nil {
		err := errors.Errorf("tensor: engine returned no %s tensor for extents %v", dt, ne)
		if !slices.ContainsFunc(ne, func(n int64) bool { return n <= 0 }) {
			err = errors.Wrapf(ErrArenaExhausted, "tensor: no room for %s tensor %v", dt, ne)
		}
		fatal(a.log, logrus.Fields{
			"datatype": dt.String(),
			"extents":  ne,
			"used":     a.ctx.UsedMem(),
			"capacity": a.ctx.MemSize(),
		}, err)
	}

	slot := len(a.slots)
	a.slots = append(a.slots, raw)

	a.log.WithFields(logrus.Fields{
		"slot":     slot,
		"datatype": dt.String(),
		"bytes":    raw.Nbytes(),
	}).Trace("tensor allocated")

	return &Tensor{
		arena: a,
		slot:  slot,
		gen:   a.issued,
		dtype: dt,
		dim:   dim,
	}
}

// Close releases the engine context and invalidates every tensor drawn from
// the arena. Only the first call has an effect.
func (a *Arena) Close() error {
	if !a.gen.CompareAndSwap(a.issued, 0) {
		return nil
	}

	used := a.ctx.UsedMem()
	tensors := len(a.slots)
	clear(a.slots)
	a.slots = nil

	err := a.ctx.Free()
	releaseBuffer(a.claim)
	a.claim = nil

	a.log.WithFields(logrus.Fields{
		"used":    used,
		"tensors": tensors,
	}).Debug("arena closed")

	return err
}

// String returns a diagnostic summary of the arena.
func (a *Arena) String() string {
	return fmt.Sprintf("Arena{id=%s used=%d capacity=%d tensors=%d live=%t}",
		a.id, a.UsedMem(), a.Capacity(), len(a.slots), a.Live())
}
