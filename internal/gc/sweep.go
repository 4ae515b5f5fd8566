package gc

// Incremental sweeping. Each list is walked through a pointer-to-pointer
// cursor (the address of the link field to rewrite), so freeing the list
// head needs no special case and the cursor survives concurrent
// insertions at the head: new objects carry the fresh white and simply
// pass through.

// sweepBatch is the number of list nodes visited per sweep step.
const sweepBatch = 100

// enterSweep captures the dead shade for the sweep sequence that is
// about to start and points the cursor at the all-objects list. The
// shade stays fixed for the whole sequence even though the current
// white has already flipped (invariant: a list is swept against the
// shade captured when its sweep began).
func (c *Context) enterSweep() {
	c.sweepDead = otherWhite(c.currentWhite)
	c.sweepgc = &c.allgc
}

// sweepList advances the cursor by at most limit nodes, freeing objects
// that carry the captured dead shade and re-whitening survivors. It
// returns the advanced cursor (nil when the list is exhausted) and the
// accounted bytes it released.
func (c *Context) sweepList(slot *Object, limit int) (*Object, int64) {
	var freed int64
	dead := c.sweepDead
	for n := 0; *slot != nil && n < limit; n++ {
		o := *slot
		h := o.hdr()
		if isDeadWhite(o, dead) {
			*slot = h.next
			freed += int64(h.size)
			c.freeObject(o)
			continue
		}
		c.makeWhite(o)
		slot = &h.next
	}
	if *slot == nil {
		return nil, freed
	}
	return slot, freed
}

// sweepStep runs one bounded unit of the current sweep phase and
// reports whether the phase's list is exhausted.
func (c *Context) sweepStep() (done bool, work int64) {
	if c.sweepgc == nil {
		return true, 0
	}
	next, freed := c.sweepList(c.sweepgc, sweepBatch)
	c.sweepgc = next
	// Sweep work is proportional to nodes visited; count freed bytes
	// plus a per-node charge so empty stretches still make progress.
	return next == nil, freed + sweepBatch
}
