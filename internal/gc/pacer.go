package gc

import "unsafe"

// Debt-based pacing and the allocator gateway. Every allocation raises
// the debt; once positive, allocation entry points fund collection work
// proportional to the step multiplier. The pacing counters are adjusted
// only here, never inside the raw allocator callback.

// workStateTransition is the accounted cost of a phase transition, so
// zero-work phases still drain budget and terminate step loops.
const workStateTransition = 64

// allocate obtains a raw block of the given size and charges the pacing
// counters. On failure it runs an emergency full collection and retries
// exactly once before surfacing an out-of-memory error.
func (c *Context) allocate(size uint64) (unsafe.Pointer, error) {
	p := c.raw.Realloc(nil, 0, uintptr(size))
	if p == nil && size > 0 {
		c.emergencyCollection()
		p = c.raw.Realloc(nil, 0, uintptr(size))
		if p == nil {
			return nil, oomError(size)
		}
	}
	c.totalBytes += int64(size)
	c.debt += int64(size)
	return p, nil
}

// release returns a block to the raw allocator and credits the pacing
// counters. A zero-size request must always succeed, per the allocator
// contract.
func (c *Context) release(p unsafe.Pointer, size uint64) {
	c.raw.Realloc(p, uintptr(size), 0)
	c.totalBytes -= int64(size)
	c.debt -= int64(size)
}

// checkGC is called on every allocation entry point: when the debt is
// positive it funds collection work. Reentrant invocations (allocations
// made by finalizers or by the collector itself) are suppressed.
func (c *Context) checkGC() {
	if c.stopped || c.stepping || c.debt <= 0 {
		return
	}
	c.stepping = true
	defer func() { c.stepping = false }()
	if c.generational {
		c.stepGen()
		return
	}
	c.stepIncremental()
}

// stepIncremental converts the outstanding debt into traversal work at
// the step-multiplier rate and runs bounded phase steps until the work
// is paid or the cycle completes.
func (c *Context) stepIncremental() {
	work := c.debt * c.stepMul.Load() / 100
	for work > 0 {
		work -= c.singleStep()
		if c.phase == PhasePause {
			c.setPause()
			return
		}
	}
	// Cycle still in progress: grant the mutator one step size of
	// allocation before the next round.
	c.debt = -c.stepSize.Load()
}

// singleStep performs one bounded unit of work for the current phase
// and advances the state machine when the phase's work is exhausted.
// It returns the work performed in accounted bytes.
func (c *Context) singleStep() int64 {
	switch c.phase {
	case PhasePause:
		c.restartCollection()
		c.phase = PhasePropagate
		return workStateTransition
	case PhasePropagate:
		if c.gray == nil {
			c.phase = PhaseEnterAtomic
			return workStateTransition
		}
		return c.propagateMark()
	case PhaseEnterAtomic:
		work := c.runAtomic()
		c.enterSweep()
		c.phase = PhaseSweepAllObjects
		return work + workStateTransition
	case PhaseSweepAllObjects:
		done, work := c.sweepStep()
		if done {
			c.sweepgc = &c.finobj
			c.phase = PhaseSweepFinalizable
		}
		return work
	case PhaseSweepFinalizable:
		done, work := c.sweepStep()
		if done {
			c.sweepgc = &c.tobefnz
			c.phase = PhaseSweepPending
		}
		return work
	case PhaseSweepPending:
		done, work := c.sweepStep()
		if done {
			c.sweepgc = nil
			c.phase = PhaseSweepEnd
		}
		return work
	case PhaseSweepEnd:
		c.estimate = c.totalBytes
		c.phase = PhaseCallFinalizers
		return workStateTransition
	case PhaseCallFinalizers:
		if c.tobefnz != nil && !c.emergency {
			n := c.runFinalizers(finStepCount)
			return int64(n) * workStateTransition
		}
		c.phase = PhasePause
		c.cycles++
		return workStateTransition
	default:
		return workStateTransition
	}
}

// setPause parks the collector until the debt crosses the pause
// threshold: a percentage of the bytes live after the previous cycle.
func (c *Context) setPause() {
	threshold := c.estimate * c.pausePercent.Load() / 100
	c.debt = c.totalBytes - threshold
}

// Step runs bounded collection work on behalf of the embedder. A zero
// or negative budget performs no work and never advances the phase
// machine. In generational mode a positive budget runs one minor
// collection (escalating per policy).
func (c *Context) Step(budget int64) {
	if c.stopped || budget <= 0 || c.stepping {
		return
	}
	c.stepping = true
	defer func() { c.stepping = false }()
	if c.generational {
		c.stepGen()
		return
	}
	for budget > 0 {
		budget -= c.singleStep()
		if c.phase == PhasePause {
			c.setPause()
			return
		}
	}
}

// FullCollection finishes any cycle in progress and then runs a whole
// fresh cycle to completion, ignoring incremental budgets. In
// generational mode this is a major collection.
func (c *Context) FullCollection() {
	if c.stepping {
		return
	}
	c.stepping = true
	defer func() { c.stepping = false }()
	if c.generational {
		c.majorCollection()
		return
	}
	c.finishCycle()
	c.runCycle()
	c.setPause()
}

// finishCycle drives the state machine to Pause. Partial sweeps keep
// their captured dead shade, so finishing mid-sweep is safe.
func (c *Context) finishCycle() {
	for c.phase != PhasePause {
		c.singleStep()
	}
}

// runCycle runs one complete collection cycle from Pause to Pause.
func (c *Context) runCycle() {
	c.singleStep() // Pause -> Propagate (roots marked)
	c.finishCycle()
}

// emergencyCollection reclaims memory synchronously when the raw
// allocator fails. It ignores the stop flag and suppresses finalizer
// execution; separated objects stay queued and run on later steps.
func (c *Context) emergencyCollection() {
	if c.stepping {
		// Allocation from inside the collector (a finalizer, typically)
		// cannot recurse into a collection; the retry simply fails and
		// the failure unwinds as an out-of-memory error.
		return
	}
	prevEmergency := c.emergency
	c.emergency, c.stepping = true, true
	defer func() { c.emergency, c.stepping = prevEmergency, false }()
	if c.generational {
		c.majorCollection()
		return
	}
	c.finishCycle()
	c.runCycle()
	c.setPause()
}
