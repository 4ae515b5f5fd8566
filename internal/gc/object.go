// Package gc implements the memory-management core of the Selene runtime:
// an incremental tri-color mark-and-sweep collector with weak tables,
// ephemerons, finalizers and an optional generational mode. The collector
// owns every heap object through intrusive singly-linked lists and paces
// its work against the allocation rate of the mutator.
package gc

import "unsafe"

// Kind discriminates the closed set of heap object kinds the collector
// manages. Traversal switches over Kind exhaustively; adding a kind
// requires touching mark, sweep and the validator.
type Kind uint8

const (
	KindString Kind = iota
	KindTable
	KindClosureGo
	KindClosureScript
	KindUserdata
	KindThread
	KindProto
	KindUpvalue
)

// String returns string representation of the object kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindTable:
		return "Table"
	case KindClosureGo:
		return "ClosureGo"
	case KindClosureScript:
		return "ClosureScript"
	case KindUserdata:
		return "Userdata"
	case KindThread:
		return "Thread"
	case KindProto:
		return "Proto"
	case KindUpvalue:
		return "Upvalue"
	default:
		return "Unknown"
	}
}

// Color and flag bits stored in Header.marked. Two white shades alternate
// between cycles; gray is the absence of both white and black bits.
const (
	white0Bit    uint8 = 1 << 0 // white shade A
	white1Bit    uint8 = 1 << 1 // white shade B
	blackBit     uint8 = 1 << 2 // fully traversed
	finalizedBit uint8 = 1 << 3 // finalizer already ran (or object popped for it)
	fixedBit     uint8 = 1 << 4 // permanently retained (interned constants)

	whiteBits = white0Bit | white1Bit
	colorBits = whiteBits | blackBit
)

// Age classifies an object for the generational controller. Along the
// all-objects list (newest first) plain ages are monotonically
// non-decreasing, which lets a minor sweep stop at the first old object.
// The classic seven-state model is collapsed to six: the transitional
// "old this cycle" state is folded into AgeSurvivor2, whose holders are
// promoted to AgeOld by the next minor sweep.
type Age uint8

const (
	AgeNew       Age = iota // allocated since the last minor collection
	AgeSurvivor1            // survived one minor collection
	AgeSurvivor2            // survived two minor collections
	AgeOld                  // skipped entirely by minor collections
	AgeTouched1             // old object mutated this cycle
	AgeTouched2             // old object mutated last cycle
)

// String returns string representation of the age.
func (a Age) String() string {
	switch a {
	case AgeNew:
		return "New"
	case AgeSurvivor1:
		return "Survivor1"
	case AgeSurvivor2:
		return "Survivor2"
	case AgeOld:
		return "Old"
	case AgeTouched1:
		return "Touched1"
	case AgeTouched2:
		return "Touched2"
	default:
		return "Unknown"
	}
}

// isOld reports whether the age places the object outside the young
// generation (minor collections treat it as unconditionally live).
func (a Age) isOld() bool {
	return a == AgeOld || a == AgeTouched1 || a == AgeTouched2
}

// isOldish additionally includes newly-old survivors, i.e. every age the
// minor sweeper no longer frees. Writes into any oldish object must go
// through the touched machinery.
func (a Age) isOldish() bool { return a >= AgeSurvivor2 }

// Header is embedded at the start of every heap object. It carries the
// collector's per-object state: kind tag, color/flag bits, age, the
// intrusive link placing the object in exactly one primary list, the
// gray-list link, the accounted size and the raw payload block.
type Header struct {
	kind   Kind
	marked uint8
	age    Age
	next   Object         // intrusive link: allObjects, finalizable, pending or fixed list
	gclist Object         // secondary link: gray, grayagain, weak, ephemeron, allweak, touched
	size   uint64         // bytes accounted against the allocator gateway
	block  unsafe.Pointer // raw block obtained from the pluggable allocator
}

func (h *Header) hdr() *Header { return h }

// Kind returns the object's kind tag.
func (h *Header) Kind() Kind { return h.kind }

// Age returns the object's generational age.
func (h *Header) Age() Age { return h.age }

// Size returns the bytes accounted for this object.
func (h *Header) Size() uint64 { return h.size }

// Object is the uniform view of a heap-managed value. All concrete types
// embed Header; the interface exists so intrusive links can be typed
// without a C-style union.
type Object interface {
	hdr() *Header
	Kind() Kind
}

func isWhite(o Object) bool { return o.hdr().marked&whiteBits != 0 }
func isBlack(o Object) bool { return o.hdr().marked&blackBit != 0 }
func isGray(o Object) bool  { return o.hdr().marked&colorBits == 0 }
func isFixed(o Object) bool { return o.hdr().marked&fixedBit != 0 }

func isFinalized(o Object) bool { return o.hdr().marked&finalizedBit != 0 }

// otherWhite returns the white shade that is not w.
func otherWhite(w uint8) uint8 { return whiteBits &^ w }

// isDeadWhite reports whether the object carries the given dead shade.
func isDeadWhite(o Object, dead uint8) bool {
	return o.hdr().marked&dead&whiteBits != 0
}

func setGray(o Object) {
	h := o.hdr()
	h.marked &^= colorBits
}

func setBlack(o Object) {
	h := o.hdr()
	h.marked = (h.marked &^ whiteBits) | blackBit
}

// makeWhite resets the object to the collector's current white shade,
// preserving the finalized and fixed flags.
func (c *Context) makeWhite(o Object) {
	h := o.hdr()
	h.marked = (h.marked &^ colorBits) | c.currentWhite
}
