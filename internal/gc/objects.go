package gc

import "unsafe"

// Concrete heap object kinds. Every type embeds Header; the payloads are
// ordinary Go values while lifetime is decided solely by the collector.

// String is an immutable byte string. Interned strings (Context.Intern)
// are fixed and never collected.
type String struct {
	Header
	Str string
}

// Upvalue boxes a single value captured by script closures. Open
// upvalues are owned by their thread's open list; closed ones float
// freely in the heap.
type Upvalue struct {
	Header
	Val  Value
	Open bool
}

// Proto is the immutable prototype of a script function: constants,
// nested prototypes and the source name.
type Proto struct {
	Header
	Consts []Value
	Protos []*Proto
	Source *String
}

// ClosureGo is a closure over a native Go function. The function itself
// is opaque to the collector; only the upvalue slots are traversed.
type ClosureGo struct {
	Header
	Fn     func(*Thread) error
	Upvals []Value
}

// ClosureScript is a closure over a script prototype with shared
// upvalue boxes.
type ClosureScript struct {
	Header
	Proto  *Proto
	Upvals []*Upvalue
}

// Userdata carries an opaque payload block (allocated through the
// pluggable allocator, reachable via Header.block), an optional
// metatable and one user value slot.
type Userdata struct {
	Header
	Meta      *Table
	UserValue Value
}

// Payload returns the raw block backing the userdata. It is valid until
// the collector frees the object.
func (u *Userdata) Payload() unsafe.Pointer { return u.block }

// Thread is a coroutine: a value stack plus the list of upvalues still
// open over it. Threads are kept gray during propagation and re-scanned
// in the atomic phase, so stack writes need no barrier.
type Thread struct {
	Header
	Stack      []Value
	OpenUpvals []*Upvalue
}

// Push appends a value to the thread's stack.
func (t *Thread) Push(v Value) { t.Stack = append(t.Stack, v) }

// Pop removes and returns the top of the stack.
func (t *Thread) Pop() Value {
	n := len(t.Stack)
	if n == 0 {
		return Nil()
	}
	v := t.Stack[n-1]
	t.Stack[n-1] = Nil()
	t.Stack = t.Stack[:n-1]
	return v
}

// Set stores v in the upvalue, applying the forward write barrier.
func (u *Upvalue) Set(c *Context, v Value) {
	u.Val = v
	if v.IsCollectable() {
		c.BarrierForward(u, v.o)
	}
}

// SetUpval stores v in slot i, applying the forward write barrier.
func (cl *ClosureGo) SetUpval(c *Context, i int, v Value) {
	cl.Upvals[i] = v
	if v.IsCollectable() {
		c.BarrierForward(cl, v.o)
	}
}

// SetUpval installs the upvalue box in slot i, applying the forward
// write barrier.
func (cl *ClosureScript) SetUpval(c *Context, i int, uv *Upvalue) {
	cl.Upvals[i] = uv
	if uv != nil {
		c.BarrierForward(cl, uv)
	}
}

// SetUserValue stores the user value slot, applying the forward write
// barrier.
func (u *Userdata) SetUserValue(c *Context, v Value) {
	u.UserValue = v
	if v.IsCollectable() {
		c.BarrierForward(u, v.o)
	}
}

// SetMeta installs a metatable on the userdata, applying the forward
// write barrier.
func (u *Userdata) SetMeta(c *Context, m *Table) {
	u.Meta = m
	if m != nil {
		c.BarrierForward(u, m)
	}
}

// Baseline accounted sizes per kind. Sizes feed the pacing debt, not any
// real memory layout; they approximate header plus typical payload.
const (
	sizeString        = 40
	sizeTable         = 96
	sizeClosure       = 64
	sizeUserdataBase  = 48
	sizeThread        = 160
	sizeProto         = 80
	sizeUpvalue       = 48
	sizePerStringByte = 1
)

// NewString allocates a collectable string.
func (c *Context) NewString(s string) (*String, error) {
	size := uint64(sizeString + sizePerStringByte*len(s))
	o := &String{Str: s}
	if err := c.register(o, KindString, size); err != nil {
		return nil, err
	}
	return o, nil
}

// Intern returns the canonical fixed string for s, creating it on first
// use. Interned strings live on the fixed list and are never swept.
func (c *Context) Intern(s string) (*String, error) {
	if o, ok := c.strcache[s]; ok {
		return o, nil
	}
	o, err := c.NewString(s)
	if err != nil {
		return nil, err
	}
	c.fix(o)
	c.strcache[s] = o
	return o, nil
}

// NewTable allocates an empty table.
func (c *Context) NewTable() (*Table, error) {
	t := &Table{hash: make(map[Value]Value)}
	if err := c.register(t, KindTable, sizeTable); err != nil {
		return nil, err
	}
	return t, nil
}

// NewUserdata allocates a userdata with a raw payload of the given size.
func (c *Context) NewUserdata(payload uint64) (*Userdata, error) {
	u := &Userdata{}
	if err := c.register(u, KindUserdata, sizeUserdataBase+payload); err != nil {
		return nil, err
	}
	return u, nil
}

// NewThread allocates a coroutine object.
func (c *Context) NewThread() (*Thread, error) {
	t := &Thread{}
	if err := c.register(t, KindThread, sizeThread); err != nil {
		return nil, err
	}
	return t, nil
}

// NewProto allocates a function prototype.
func (c *Context) NewProto() (*Proto, error) {
	p := &Proto{}
	if err := c.register(p, KindProto, sizeProto); err != nil {
		return nil, err
	}
	return p, nil
}

// NewUpvalue allocates a closed upvalue holding v.
func (c *Context) NewUpvalue(v Value) (*Upvalue, error) {
	u := &Upvalue{Val: v}
	if err := c.register(u, KindUpvalue, sizeUpvalue); err != nil {
		return nil, err
	}
	return u, nil
}

// NewClosureGo allocates a native closure with n upvalue slots.
func (c *Context) NewClosureGo(fn func(*Thread) error, n int) (*ClosureGo, error) {
	cl := &ClosureGo{Fn: fn, Upvals: make([]Value, n)}
	if err := c.register(cl, KindClosureGo, sizeClosure+uint64(16*n)); err != nil {
		return nil, err
	}
	return cl, nil
}

// NewClosureScript allocates a script closure over p with n upvalue slots.
func (c *Context) NewClosureScript(p *Proto, n int) (*ClosureScript, error) {
	cl := &ClosureScript{Proto: p, Upvals: make([]*Upvalue, n)}
	if err := c.register(cl, KindClosureScript, sizeClosure+uint64(8*n)); err != nil {
		return nil, err
	}
	return cl, nil
}
