package gc

// Write barriers. The mutator must call BarrierForward whenever it
// stores a white object into a black one through a field the collector
// will not revisit, and BarrierBack (the re-graying barrier) for
// container objects that are cheaper to rescan wholesale. Table.Set,
// Table.SetMeta, Upvalue/closure setters and Userdata setters apply
// these internally; external VMs mutating object fields directly carry
// the same obligation. A missed barrier is a use-after-free of a live
// object; the debug validator (Validate) exists to catch it.

// BarrierForward keeps the invariant by marching the collector forward:
// the white target is marked immediately. Outside the marking phases the
// invariant is not in force and the black holder is simply re-whitened
// so the in-progress sweep treats it uniformly. In generational mode a
// store into an old holder degrades to the backward barrier so the
// holder is rescanned by the next minor collection.
func (c *Context) BarrierForward(o, v Object) {
	if o == nil || v == nil || !isBlack(o) || !isWhite(v) {
		return
	}
	switch {
	case c.phase == PhasePropagate || c.phase == PhaseEnterAtomic:
		c.markObject(v)
	case c.generational && o.hdr().age.isOldish():
		c.touchOld(o)
	default:
		c.makeWhite(o)
	}
}

// BarrierBack re-grays a black holder so its contents are traversed
// again: during an incremental cycle it joins the grayagain list drained
// by the atomic phase; between generational cycles an old holder becomes
// "touched" and is rescanned by minor collections until it settles.
func (c *Context) BarrierBack(o Object) {
	if o == nil || !isBlack(o) {
		return
	}
	if c.generational && o.hdr().age.isOldish() {
		c.touchOld(o)
		return
	}
	setGray(o)
	linkList(&c.grayagain, o)
}

// touchOld resets an old object's touch clock: it returns to AgeTouched1
// and (re)joins the touched list so minor collections rescan it. Writes
// to an already-touched object restart the clock.
func (c *Context) touchOld(o Object) {
	h := o.hdr()
	wasListed := h.age == AgeTouched1 || h.age == AgeTouched2
	h.age = AgeTouched1
	if !wasListed {
		linkList(&c.touched, o)
	}
}
