package gc

// Marking and propagation. Objects with no outgoing references are
// blackened on first contact; everything else turns gray and waits on
// the gray list for a propagation step to traverse its children.

// linkList pushes o onto an intrusive gclist-chained list.
func linkList(head *Object, o Object) {
	o.hdr().gclist = *head
	*head = o
}

// markObject shades a white object. During a minor collection old
// objects are unconditionally live and are never entered, whatever
// their (possibly stale) white bits say.
func (c *Context) markObject(o Object) {
	if o == nil {
		return
	}
	if c.minorRun && o.hdr().age.isOld() {
		return
	}
	if !isWhite(o) {
		return
	}
	switch o.Kind() {
	case KindString:
		setBlack(o)
	case KindUpvalue:
		uv := o.(*Upvalue)
		setBlack(uv)
		c.markValue(uv.Val)
	default:
		setGray(o)
		linkList(&c.gray, o)
	}
}

// markValue shades the object behind a collectable value.
func (c *Context) markValue(v Value) {
	if v.IsCollectable() {
		c.markObject(v.o)
	}
}

// markRoots enumerates the root set: the registry, the main thread, the
// embedder's declared roots and every object already queued for
// finalization (their finalizers will run, so they are live).
func (c *Context) markRoots() {
	// The typed-pointer checks matter: a nil *Table boxed into the
	// Object interface is not a nil interface.
	if c.registry != nil {
		c.markObject(c.registry)
	}
	if c.mainThread != nil {
		c.markObject(c.mainThread)
	}
	if c.hooks.Roots != nil {
		c.hooks.Roots.EnumerateRoots(c.markObject)
	}
	c.markBeingFinalized()
}

// markBeingFinalized marks every object on the pending-finalization
// queue; such objects (and what they reference) must stay alive until
// their finalizer has run.
func (c *Context) markBeingFinalized() {
	for o := c.tobefnz; o != nil; o = o.hdr().next {
		if c.minorRun && o.hdr().age.isOld() {
			continue
		}
		c.markObject(o)
	}
}

// restartCollection begins a new cycle: all traversal lists are reset
// and the roots are marked.
func (c *Context) restartCollection() {
	c.gray, c.grayagain = nil, nil
	c.weak, c.ephemeron, c.allweak = nil, nil, nil
	c.markRoots()
}

// propagateMark traverses one gray object, blackening it and shading
// its children. It returns the traversal work in accounted bytes.
func (c *Context) propagateMark() int64 {
	o := c.gray
	h := o.hdr()
	c.gray = h.gclist
	h.gclist = nil
	setBlack(o)
	switch o.Kind() {
	case KindTable:
		c.traverseTable(o.(*Table))
	case KindProto:
		p := o.(*Proto)
		for _, v := range p.Consts {
			c.markValue(v)
		}
		for _, sub := range p.Protos {
			if sub != nil {
				c.markObject(sub)
			}
		}
		if p.Source != nil {
			c.markObject(p.Source)
		}
	case KindClosureGo:
		cl := o.(*ClosureGo)
		for _, v := range cl.Upvals {
			c.markValue(v)
		}
	case KindClosureScript:
		cl := o.(*ClosureScript)
		if cl.Proto != nil {
			c.markObject(cl.Proto)
		}
		for _, uv := range cl.Upvals {
			if uv != nil {
				c.markObject(uv)
			}
		}
	case KindThread:
		c.traverseThread(o.(*Thread))
	case KindUserdata:
		u := o.(*Userdata)
		if u.Meta != nil {
			c.markObject(u.Meta)
		}
		c.markValue(u.UserValue)
	}
	return int64(h.size)
}

// propagateAll drains the gray list without yielding.
func (c *Context) propagateAll() int64 {
	var work int64
	for c.gray != nil {
		work += c.propagateMark()
	}
	return work
}

// traverseTable shades a table's contents. Weak tables are deferred to
// the resolver: they are parked on the matching list and their weak
// slots are left unmarked until the atomic phase clears them.
func (c *Context) traverseTable(t *Table) {
	if t.meta != nil {
		c.markObject(t.meta)
	}
	switch t.weak {
	case WeakNone:
		for _, v := range t.arr {
			c.markValue(v)
		}
		for k, v := range t.hash {
			c.markValue(k)
			c.markValue(v)
		}
	case WeakValues:
		// Keys are strong; values wait for the clearing pass.
		for k := range t.hash {
			c.markValue(k)
		}
		linkList(&c.weak, t)
	case WeakKeys:
		c.traverseEphemeron(t)
		linkList(&c.ephemeron, t)
	case WeakBoth:
		linkList(&c.allweak, t)
	}
}

// traverseThread shades a thread's stack and open upvalues. During
// Propagate the thread is immediately re-grayed onto grayagain so the
// atomic phase rescans its stack; this is what lets stack writes skip
// the write barrier.
func (c *Context) traverseThread(t *Thread) {
	for _, v := range t.Stack {
		c.markValue(v)
	}
	for _, uv := range t.OpenUpvals {
		if uv != nil {
			c.markObject(uv)
		}
	}
	if c.phase == PhasePropagate {
		setGray(t)
		linkList(&c.grayagain, t)
	}
}

// forEachChild invokes fn for every object directly referenced by o,
// ignoring weak semantics. Used by the debug validator and the census.
func forEachChild(o Object, fn func(Object)) {
	val := func(v Value) {
		if v.IsCollectable() {
			fn(v.o)
		}
	}
	switch o.Kind() {
	case KindTable:
		t := o.(*Table)
		if t.meta != nil {
			fn(t.meta)
		}
		for _, v := range t.arr {
			val(v)
		}
		for k, v := range t.hash {
			val(k)
			val(v)
		}
	case KindProto:
		p := o.(*Proto)
		for _, v := range p.Consts {
			val(v)
		}
		for _, sub := range p.Protos {
			if sub != nil {
				fn(sub)
			}
		}
		if p.Source != nil {
			fn(p.Source)
		}
	case KindClosureGo:
		for _, v := range o.(*ClosureGo).Upvals {
			val(v)
		}
	case KindClosureScript:
		cl := o.(*ClosureScript)
		if cl.Proto != nil {
			fn(cl.Proto)
		}
		for _, uv := range cl.Upvals {
			if uv != nil {
				fn(uv)
			}
		}
	case KindThread:
		t := o.(*Thread)
		for _, v := range t.Stack {
			val(v)
		}
		for _, uv := range t.OpenUpvals {
			if uv != nil {
				fn(uv)
			}
		}
	case KindUserdata:
		u := o.(*Userdata)
		if u.Meta != nil {
			fn(u.Meta)
		}
		val(u.UserValue)
	case KindUpvalue:
		val(o.(*Upvalue).Val)
	}
}
