package gc

// The atomic phase: the one non-interruptible convergence step. It runs
// after the gray list first empties and must complete without yielding
// to the mutator; every ordering constraint below exists because weak
// clearing and finalizer separation are only sound against a fully
// converged marking.

// runAtomic drives marking to convergence, resolves weak structures,
// separates unreachable finalizable objects and flips the current
// white. Returns the traversal work performed.
func (c *Context) runAtomic() int64 {
	var work int64

	// Roots may have changed since the cycle started; re-mark them.
	if c.registry != nil {
		c.markObject(c.registry)
	}
	if c.mainThread != nil {
		c.markObject(c.mainThread)
	}
	if c.hooks.Roots != nil {
		c.hooks.Roots.EnumerateRoots(c.markObject)
	}
	work += c.propagateAll()

	// Objects re-grayed by backward barriers, plus threads, which are
	// deliberately kept gray so their stacks are rescanned here.
	c.gray = c.grayagain
	c.grayagain = nil
	work += c.propagateAll()

	c.convergeEphemerons()
	// All strongly reachable objects are now marked. Clear weak values
	// before finalizer separation so resurrection cannot revive slots
	// that were already condemned.
	c.clearByValues(c.weak, nil)
	c.clearByValues(c.allweak, nil)
	origWeak, origAll := c.weak, c.allweak

	c.separateToBeFnz(false)
	c.markBeingFinalized()
	work += c.propagateAll()
	c.convergeEphemerons()

	// Remove entries whose keys stayed unreachable, then re-clear the
	// values of any weak table reached only through resurrection.
	c.clearByKeys(c.ephemeron)
	c.clearByKeys(c.allweak)
	c.clearByValues(c.weak, origWeak)
	c.clearByValues(c.allweak, origAll)

	// From here on, newly allocated objects get the other white so the
	// sweeper can tell this cycle's garbage from fresh allocations.
	c.currentWhite = otherWhite(c.currentWhite)

	if c.debugChecks {
		if err := c.Validate(); err != nil {
			panic(err)
		}
	}
	return work
}
