package gc

// WeakMode selects which table slots keep their referents reachable.
type WeakMode uint8

const (
	WeakNone   WeakMode = iota
	WeakValues          // values do not keep referents alive
	WeakKeys            // ephemeron: value is live only while its key is
	WeakBoth            // both key and value must be independently reachable
)

// String returns string representation of the weak mode.
func (m WeakMode) String() string {
	switch m {
	case WeakNone:
		return "None"
	case WeakValues:
		return "Values"
	case WeakKeys:
		return "Keys"
	case WeakBoth:
		return "Both"
	default:
		return "Unknown"
	}
}

// Table is the associative container of the runtime: a dense array part
// for integer keys 1..n plus a hash part for everything else. Keys
// compare by Value equality (objects by identity).
type Table struct {
	Header
	arr  []Value
	hash map[Value]Value
	meta *Table
	weak WeakMode
}

// arrayIndex maps v to a 1-based dense index, or 0 if v is not an
// integral number in [1, len+1].
func (t *Table) arrayIndex(v Value) int {
	if v.kind != ValNumber {
		return 0
	}
	i := int(v.n)
	if float64(i) != v.n || i < 1 || i > len(t.arr)+1 {
		return 0
	}
	return i
}

// Get returns the value stored under k, or nil.
func (t *Table) Get(k Value) Value {
	if i := t.arrayIndex(k); i != 0 && i <= len(t.arr) {
		return t.arr[i-1]
	}
	return t.hash[k]
}

// Set stores v under k, applying the backward write barrier when a
// collectable value lands in a black (or old) table. Storing nil
// removes the entry.
func (t *Table) Set(c *Context, k, v Value) {
	if k.IsNil() {
		return
	}
	if i := t.arrayIndex(k); i != 0 {
		if i == len(t.arr)+1 {
			if v.IsNil() {
				return
			}
			t.arr = append(t.arr, v)
		} else if v.IsNil() && i == len(t.arr) {
			t.arr = t.arr[:i-1]
			return
		} else {
			t.arr[i-1] = v
		}
	} else if v.IsNil() {
		delete(t.hash, k)
		return
	} else {
		t.hash[k] = v
	}
	if v.IsCollectable() || k.IsCollectable() {
		c.BarrierBack(t)
	}
}

// Len returns the length of the dense array part.
func (t *Table) Len() int { return len(t.arr) }

// HashLen returns the number of entries in the hash part.
func (t *Table) HashLen() int { return len(t.hash) }

// Meta returns the table's metatable, or nil.
func (t *Table) Meta() *Table { return t.meta }

// SetMeta installs a metatable, applying the forward barrier.
func (t *Table) SetMeta(c *Context, m *Table) {
	t.meta = m
	if m != nil {
		c.BarrierForward(t, m)
	}
}

// Weak returns the table's weak mode.
func (t *Table) Weak() WeakMode { return t.weak }

// SetWeak changes the table's weak mode. Like the runtime it serves,
// the collector honors the mode as of the cycle's atomic phase; setting
// it mid-cycle re-grays the table so traversal reclassifies it.
func (t *Table) SetWeak(c *Context, m WeakMode) {
	t.weak = m
	if isBlack(t) {
		c.BarrierBack(t)
	}
}

// Range calls fn for every entry until fn returns false. Mutating the
// table during Range is undefined except for deleting the current key.
func (t *Table) Range(fn func(k, v Value) bool) {
	for i, v := range t.arr {
		if v.IsNil() {
			continue
		}
		if !fn(Number(float64(i+1)), v) {
			return
		}
	}
	for k, v := range t.hash {
		if !fn(k, v) {
			return
		}
	}
}
