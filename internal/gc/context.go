package gc

import (
	"sync/atomic"

	"github.com/orizon-lang/selene/internal/alloc"
)

// Phase is the collector's position in its cyclic state machine.
type Phase uint8

const (
	PhasePropagate Phase = iota
	PhaseEnterAtomic
	PhaseSweepAllObjects
	PhaseSweepFinalizable
	PhaseSweepPending
	PhaseSweepEnd
	PhaseCallFinalizers
	PhasePause
)

// String returns string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePropagate:
		return "Propagate"
	case PhaseEnterAtomic:
		return "EnterAtomic"
	case PhaseSweepAllObjects:
		return "SweepAllObjects"
	case PhaseSweepFinalizable:
		return "SweepFinalizable"
	case PhaseSweepPending:
		return "SweepPending"
	case PhaseSweepEnd:
		return "SweepEnd"
	case PhaseCallFinalizers:
		return "CallFinalizers"
	case PhasePause:
		return "Pause"
	default:
		return "Unknown"
	}
}

// sweeping reports whether p is one of the sweep phases.
func (p Phase) sweeping() bool {
	return p >= PhaseSweepAllObjects && p <= PhaseSweepEnd
}

// RootEnumerator is implemented by the embedding VM. EnumerateRoots must
// invoke mark for every object assumed live without collector proof:
// active stacks, registry slots, open upvalues and pinned metatables.
// It is called once on entering Propagate and again during the atomic
// phase.
type RootEnumerator interface {
	EnumerateRoots(mark func(Object))
}

// RootFunc adapts a function to the RootEnumerator interface.
type RootFunc func(mark func(Object))

// EnumerateRoots implements RootEnumerator.
func (f RootFunc) EnumerateRoots(mark func(Object)) { f(mark) }

// Hooks are the callbacks into the embedding VM. RunFinalizer executes
// user finalizer code for an object popped from the pending queue; it
// may allocate and may error. ReportError receives isolated finalizer
// errors; collection continues regardless.
type Hooks struct {
	Roots        RootEnumerator
	RunFinalizer func(*Context, Object) error
	ReportError  func(error)
}

// Stats is a point-in-time view of the collector's counters.
type Stats struct {
	TotalBytes   int64  `json:"totalBytes"`
	Debt         int64  `json:"debt"`
	Estimate     int64  `json:"estimate"`
	Phase        string `json:"phase"`
	Generational bool   `json:"generational"`
	Cycles       uint64 `json:"cycles"`
	MinorCycles  uint64 `json:"minorCycles"`
	ObjectsFreed uint64 `json:"objectsFreed"`
	BytesFreed   uint64 `json:"bytesFreed"`
	Finalized    uint64 `json:"finalized"`
}

// Context is the collector's entire mutable state. One Context is one
// independent heap; the runtime passes it by reference into every
// collector operation, so multiple heaps can coexist in one process.
// A Context is not safe for concurrent mutator use: the runtime model
// is a single logical thread interleaving program execution with
// bounded collector steps.
type Context struct {
	raw   alloc.Allocator
	hooks Hooks

	currentWhite uint8
	phase        Phase
	stopped      bool
	emergency    bool // inside an emergency collection: skip finalizer calls
	stepping     bool // inside a collector step: suppress reentrant pacing

	// Primary intrusive lists. An object is on exactly one of them.
	allgc   Object  // every ordinary collectable object, newest first
	finobj  Object  // objects with a registered, not-yet-run finalizer
	tobefnz Object  // unreachable objects awaiting finalization
	fixedgc Object  // permanently retained objects (interned strings)
	sweepgc *Object // sweep cursor: address of the link field to rewrite

	sweepDead uint8 // dead-white shade captured when the sweep sequence began

	// Gray-shaded work lists, linked through Header.gclist.
	gray      Object // pending traversal
	grayagain Object // re-traversed in the atomic phase (backward barriers, threads)
	weak      Object // weak-value tables found during traversal
	ephemeron Object // weak-key tables with pending white keys
	allweak   Object // weak-key-and-value tables
	touched   Object // generational mode: old objects mutated since their last scan

	registry   *Table  // always-rooted table for embedder use
	mainThread *Thread // always-rooted main coroutine
	strcache   map[string]*String

	// Pacing counters. totalBytes is live accounted bytes; debt is bytes
	// of collection work owed (positive triggers stepping).
	totalBytes int64
	debt       int64
	estimate   int64 // live bytes at the end of the previous cycle

	// Generational mode state. The all-objects list is newest first, so
	// the young region is a prefix; firstOld marks the first newly-old
	// (survivor-2) object and reallyOld the first true old one.
	generational   bool
	minorRun       bool   // a minor collection is in progress
	majorPending   bool   // last major reclaimed too little; run another
	firstOld       Object // start of the newly-old run inside allgc
	reallyOld      Object // start of the old segment inside allgc
	firstOldFin    Object // start of the newly-old run inside finobj
	reallyOldFin   Object // start of the old segment inside finobj
	oldBytes       int64    // accounted bytes of old-generation objects
	lastMajorTotal int64    // totalBytes right after the last major collection
	touchedScan    []Object // per-minor scratch for touched-list correction

	// Tunables, atomically updated by the tuning watcher (see tuning.go).
	pausePercent atomic.Int64 // pause threshold, percent of estimate
	stepMul      atomic.Int64 // collection work per byte of debt, percent
	stepSize     atomic.Int64 // debt granted back after an incremental step
	genMinorMul  atomic.Int64 // minor pacing, percent of total bytes
	genMajorMul  atomic.Int64 // old-bytes fraction forcing a major, percent

	debugChecks bool

	cycles       uint64
	minorCycles  uint64
	objectsFreed uint64
	bytesFreed   uint64
	finalized    uint64
}

// NewContext creates an independent heap bound to the given raw
// allocator and VM hooks. The registry table and main thread are created
// eagerly and are always treated as roots.
func NewContext(raw alloc.Allocator, hooks Hooks, opts ...Option) (*Context, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Context{
		raw:          raw,
		hooks:        hooks,
		currentWhite: white0Bit,
		phase:        PhasePause,
		strcache:     make(map[string]*String),
		debugChecks:  cfg.DebugChecks,
	}
	c.pausePercent.Store(cfg.PausePercent)
	c.stepMul.Store(cfg.StepMul)
	c.stepSize.Store(cfg.StepSize)
	c.genMinorMul.Store(cfg.GenMinorMul)
	c.genMajorMul.Store(cfg.GenMajorMul)

	// The permanent objects are created with pacing suppressed: a
	// collection step taken between the two allocations would enumerate
	// a root set that does not exist yet.
	c.stepping = true
	reg, err := c.NewTable()
	if err != nil {
		return nil, err
	}
	c.registry = reg
	th, err := c.NewThread()
	if err != nil {
		return nil, err
	}
	c.mainThread = th
	c.stepping = false
	// Start with a clean pacing slate so context setup does not count
	// as mutator debt.
	c.debt = -c.stepSize.Load()
	if cfg.Generational {
		c.SetGenerational(true)
	}
	return c, nil
}

// Registry returns the always-rooted registry table.
func (c *Context) Registry() *Table { return c.registry }

// MainThread returns the always-rooted main coroutine.
func (c *Context) MainThread() *Thread { return c.mainThread }

// Phase returns the collector's current phase.
func (c *Context) Phase() Phase { return c.phase }

// Generational reports whether the generational fast path is active.
func (c *Context) Generational() bool { return c.generational }

// MemoryStats returns the collector's counters.
func (c *Context) MemoryStats() Stats {
	return Stats{
		TotalBytes:   c.totalBytes,
		Debt:         c.debt,
		Estimate:     c.estimate,
		Phase:        c.phase.String(),
		Generational: c.generational,
		Cycles:       c.cycles,
		MinorCycles:  c.minorCycles,
		ObjectsFreed: c.objectsFreed,
		BytesFreed:   c.bytesFreed,
		Finalized:    c.finalized,
	}
}

// Stop disables automatic and requested collection steps. The current
// phase is left as-is; invariants hold because steps only ever pause at
// phase boundaries. Emergency collections ignore the stop flag.
func (c *Context) Stop() { c.stopped = true }

// Restart re-enables collection.
func (c *Context) Restart() { c.stopped = false }

// Running reports whether collection is enabled.
func (c *Context) Running() bool { return !c.stopped }

// register links a freshly created object into the all-objects list,
// charging its accounted size through the allocator gateway. The pacing
// check runs before the object exists so a triggered collection can
// never sweep it.
func (c *Context) register(o Object, kind Kind, size uint64) error {
	c.checkGC()
	block, err := c.allocate(size)
	if err != nil {
		return err
	}
	h := o.hdr()
	h.kind = kind
	h.marked = c.currentWhite
	h.age = AgeNew
	h.size = size
	h.block = block
	h.next = c.allgc
	c.allgc = o
	return nil
}

// fix moves the most recently created object to the permanent list.
// Fixed objects are never traversed or swept; they must only reference
// other fixed objects (interned strings reference nothing).
func (c *Context) fix(o Object) {
	if c.allgc != o {
		return
	}
	h := o.hdr()
	c.allgc = h.next
	h.next = c.fixedgc
	c.fixedgc = o
	h.marked |= fixedBit
	setGray(o)
}

// freeObject returns an object's accounted bytes to the gateway and
// releases its raw block. The caller has already unlinked it.
func (c *Context) freeObject(o Object) {
	h := o.hdr()
	c.release(h.block, h.size)
	h.block = nil
	h.next = nil
	h.gclist = nil
	c.objectsFreed++
	c.bytesFreed += h.size
	if c.generational && h.age.isOld() {
		c.oldBytes -= int64(h.size)
	}
}

// SetFinalizer registers o for finalization: it moves from the
// all-objects list to the finalizable list and will be separated into
// the pending queue when found unreachable. Registering an object whose
// finalizer already ran is a no-op (finalize at most once).
func (c *Context) SetFinalizer(o Object) {
	if o == nil || isFinalized(o) || isFixed(o) {
		return
	}
	h := o.hdr()
	for slot := &c.allgc; *slot != nil; slot = &((*slot).hdr().next) {
		if *slot != o {
			continue
		}
		// Keep the sweep cursor and the generational boundaries valid
		// if they point into the object being relocated.
		if c.sweepgc == &h.next {
			c.sweepgc = slot
		}
		if c.firstOld == o {
			c.firstOld = h.next
		}
		if c.reallyOld == o {
			c.reallyOld = h.next
		}
		*slot = h.next
		h.next = c.finobj
		c.finobj = o
		return
	}
}

// HasPendingFinalizers reports whether objects await finalization.
func (c *Context) HasPendingFinalizers() bool { return c.tobefnz != nil }
