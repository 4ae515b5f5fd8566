package gc

// Finalizer queue management: separation of unreachable finalizable
// objects during the atomic phase, resurrection, and the one-at-a-time
// finalizer calls of the CallFinalizers phase.
//
// Ordering: SetFinalizer pushes onto the head of the finalizable list
// and separation appends to the tail of the pending queue, so within
// one cycle finalizers run in reverse registration order. This order is
// stable and documented; user code may rely on it.

// separateToBeFnz moves finalizable objects that were not reached (or
// every one, when all is set) to the tail of the pending-finalization
// queue. Runs inside the atomic phase, before resurrection marking.
func (c *Context) separateToBeFnz(all bool) {
	tail := &c.tobefnz
	for *tail != nil {
		tail = &((*tail).hdr().next)
	}
	slot := &c.finobj
	for *slot != nil {
		o := *slot
		h := o.hdr()
		if !(all || isWhite(o)) {
			slot = &h.next
			continue
		}
		if c.sweepgc == &h.next {
			c.sweepgc = slot
		}
		if c.firstOldFin == o {
			c.firstOldFin = h.next
		}
		if c.reallyOldFin == o {
			c.reallyOldFin = h.next
		}
		*slot = h.next
		h.next = nil
		*tail = o
		tail = &h.next
	}
}

// finStepCount bounds finalizer calls per CallFinalizers step so a long
// queue cannot stall the mutator.
const finStepCount = 4

// runFinalizers pops up to max objects off the pending queue, revives
// each into the all-objects list and invokes the user finalizer through
// the VM hook. A hook error is reported through Hooks.ReportError and
// never aborts the remaining queue. The finalized flag guarantees the
// finalizer runs at most once even if the object is resurrected.
func (c *Context) runFinalizers(max int) int {
	n := 0
	for c.tobefnz != nil && n < max {
		o := c.tobefnz
		h := o.hdr()
		c.tobefnz = h.next
		h.next = c.allgc
		c.allgc = o
		h.marked |= finalizedBit
		n++
		c.finalized++
		if c.hooks.RunFinalizer == nil {
			continue
		}
		if err := c.hooks.RunFinalizer(c, o); err != nil {
			ferr := &CollectError{
				Code:    ErrFinalizer,
				Message: "finalizer for " + o.Kind().String() + " object failed",
				Wrapped: err,
			}
			if c.hooks.ReportError != nil {
				c.hooks.ReportError(ferr)
			}
		}
	}
	return n
}
