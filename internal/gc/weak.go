package gc

// Weak-table and ephemeron resolution. Weak tables are parked on their
// mode's list during traversal; the atomic phase clears slots whose weak
// referent was never reached. Strings behave as plain values here: a
// string key or value is marked live instead of cleared, matching the
// semantics of scalar keys.

// clearedValue reports whether a weak value slot must be dropped.
func (c *Context) clearedValue(v Value) bool {
	if !v.IsCollectable() {
		return false
	}
	if v.o.Kind() == KindString {
		c.markObject(v.o)
		return false
	}
	return isWhite(v.o)
}

// clearedKey reports whether a weak key is unreachable.
func (c *Context) clearedKey(k Value) bool {
	if !k.IsCollectable() {
		return false
	}
	if k.o.Kind() == KindString {
		c.markObject(k.o)
		return false
	}
	return isWhite(k.o)
}

// traverseEphemeron marks the values of every entry whose key is
// already reachable and reports whether it marked anything new. The
// array part has integer keys, which are always reachable, so its
// values are strong.
func (c *Context) traverseEphemeron(t *Table) bool {
	marked := false
	for _, v := range t.arr {
		if v.IsCollectable() && isWhite(v.o) {
			marked = true
			c.markObject(v.o)
		}
	}
	for k, v := range t.hash {
		if c.clearedKey(k) {
			continue // key still unreached: value stays pending
		}
		if v.IsCollectable() && isWhite(v.o) {
			marked = true
			c.markObject(v.o)
		}
	}
	return marked
}

// convergeEphemerons runs the ephemeron fixpoint: one ephemeron's value
// may be another's key, so the set is re-swept until a pass marks
// nothing new. Tables stay on the ephemeron list for the clearing pass.
func (c *Context) convergeEphemerons() {
	for changed := true; changed; {
		changed = false
		list := c.ephemeron
		c.ephemeron = nil
		for list != nil {
			t := list.(*Table)
			list = t.gclist
			t.gclist = nil
			if c.traverseEphemeron(t) {
				c.propagateAll()
				changed = true
			}
			linkList(&c.ephemeron, t)
		}
	}
}

// clearByValues drops entries with unreachable values from every table
// on list, stopping at stop (exclusive). Array slots are tombstoned
// with nil; hash entries are removed outright. The table structure
// itself is never freed here.
func (c *Context) clearByValues(list, stop Object) {
	for o := list; o != stop; o = o.hdr().gclist {
		t := o.(*Table)
		for i, v := range t.arr {
			if c.clearedValue(v) {
				t.arr[i] = Nil()
			}
		}
		for k, v := range t.hash {
			if c.clearedValue(v) {
				delete(t.hash, k)
			}
		}
	}
}

// clearByKeys drops entries with unreachable keys from every table on
// list. Only the hash part can hold collectable keys.
func (c *Context) clearByKeys(list Object) {
	for o := list; o != nil; o = o.hdr().gclist {
		t := o.(*Table)
		for k := range t.hash {
			if c.clearedKey(k) {
				delete(t.hash, k)
			}
		}
	}
}
