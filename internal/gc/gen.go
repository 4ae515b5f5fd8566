package gc

// Generational controller. Minor collections trace and sweep only the
// young prefix of the all-objects list; old objects are black and are
// trusted to stay consistent through the touched machinery:
//
//   - a newly-old object (AgeSurvivor2) is traced once more by the next
//     minor collection before settling as AgeOld, so children it picked
//     up late in its youth get marked and start aging themselves;
//   - writes into any oldish object reset it to AgeTouched1; touched
//     objects are retraced every minor and only graduate to AgeOld once
//     all their direct children are oldish;
//   - threads (whose stacks are written without barriers) and weak
//     tables (whose slots need clearing every cycle) never graduate.

// neverOld reports whether an object must stay on the touched list
// instead of settling as plain old.
func neverOld(o Object) bool {
	if o.Kind() == KindThread {
		return true
	}
	t, ok := o.(*Table)
	return ok && t.weak != WeakNone
}

// SetGenerational switches between the generational and incremental
// modes. Entering generational mode runs a full collection and ages the
// surviving heap old; leaving it re-whitens the heap so the incremental
// invariants start from a clean slate.
func (c *Context) SetGenerational(on bool) {
	if on == c.generational {
		return
	}
	if on {
		prev := c.stepping
		c.stepping = true
		c.finishCycle()
		c.runCycle()
		c.stepping = prev
		c.touched = nil
		c.generational = true
		c.ageHeapOld()
		c.firstOld, c.reallyOld = c.allgc, c.allgc
		c.firstOldFin, c.reallyOldFin = c.finobj, c.finobj
		c.oldBytes = c.totalBytes
		c.lastMajorTotal = c.totalBytes
		c.setMinorDebt()
		return
	}
	c.generational = false
	for _, list := range []Object{c.allgc, c.finobj, c.tobefnz} {
		for o := list; o != nil; o = o.hdr().next {
			c.makeWhite(o)
			o.hdr().age = AgeNew
		}
	}
	c.firstOld, c.reallyOld, c.touched = nil, nil, nil
	c.firstOldFin, c.reallyOldFin = nil, nil
	c.oldBytes = 0
	c.majorPending = false
	c.phase = PhasePause
	c.setPause()
}

// ageHeapOld blackens every live object and marks it old; threads and
// weak tables go to the touched list instead.
func (c *Context) ageHeapOld() {
	for _, list := range []Object{c.allgc, c.finobj, c.tobefnz} {
		for o := list; o != nil; o = o.hdr().next {
			h := o.hdr()
			setBlack(o)
			if neverOld(o) {
				h.age = AgeTouched2
				linkList(&c.touched, o)
			} else {
				h.age = AgeOld
			}
		}
	}
}

// stepGen is the generational pacing entry: run a minor collection, or
// escalate to a major one when the old generation has grown past the
// configured fraction of the heap.
func (c *Context) stepGen() {
	if c.majorPending || c.needMajor() {
		c.majorCollection()
		return
	}
	c.youngCollection()
	c.setMinorDebt()
}

// needMajor applies the escalation policy: the old generation exceeds
// its configured share of total bytes and the heap has grown enough
// since the last major to make another one worthwhile.
func (c *Context) needMajor() bool {
	grown := c.totalBytes > c.lastMajorTotal+c.lastMajorTotal*c.genMinorMul.Load()/100
	oldHeavy := c.oldBytes*100 > c.totalBytes*c.genMajorMul.Load()
	return grown && oldHeavy
}

// setMinorDebt paces minor collections against heap growth: the mutator
// may allocate the configured fraction of the current heap before the
// next minor runs.
func (c *Context) setMinorDebt() {
	d := c.totalBytes * c.genMinorMul.Load() / 100
	if d < c.stepSize.Load() {
		d = c.stepSize.Load()
	}
	c.debt = -d
}

// youngCollection runs one complete minor collection: trace the young
// region (plus newly-old and touched objects), resolve weak structures
// in the atomic step, then sweep and age the young prefix.
func (c *Context) youngCollection() {
	c.minorRun = true
	defer func() { c.minorRun = false }()

	// Backward barriers taken since the last cycle are queued on
	// grayagain; the restart must not drop them or their children are
	// swept while still reachable.
	barriered := c.grayagain
	c.phase = PhasePause
	c.restartCollection()
	c.grayagain = barriered
	c.phase = PhasePropagate
	c.markOldRun()
	c.propagateAll()
	c.phase = PhaseEnterAtomic
	c.runAtomic()
	c.promoteOldRun()
	c.correctTouched()
	c.sweepGenAll()
	c.estimate = c.totalBytes
	c.minorCycles++
	c.phase = PhasePause

	// Run finalizers separated by this minor (plus any left over from
	// an emergency major).
	if !c.emergency {
		for c.tobefnz != nil {
			c.runFinalizers(finStepCount)
		}
	}
}

// markOldRun queues the old sub-sets that a minor collection must still
// trace: the newly-old runs (one per primary list) getting their one
// extra traversal, and the touched list.
func (c *Context) markOldRun() {
	markRun := func(first, limit Object) {
		for o := first; o != nil && o != limit; o = o.hdr().next {
			if o.hdr().age == AgeSurvivor2 {
				setGray(o)
				linkList(&c.gray, o)
			}
		}
	}
	markRun(c.firstOld, c.reallyOld)
	markRun(c.firstOldFin, c.reallyOldFin)
	harvest := c.touched
	c.touched = nil
	c.touchedScan = c.touchedScan[:0]
	for harvest != nil {
		o := harvest
		h := o.hdr()
		harvest = h.gclist
		h.gclist = nil
		c.touchedScan = append(c.touchedScan, o)
		setGray(o)
		linkList(&c.gray, o)
	}
}

// promoteOldRun settles the newly-old runs as plain old (they have now
// had their extra traversal) and retires the boundaries.
func (c *Context) promoteOldRun() {
	promote := func(first, limit Object) {
		for o := first; o != nil && o != limit; o = o.hdr().next {
			h := o.hdr()
			if h.age != AgeSurvivor2 {
				continue
			}
			if neverOld(o) {
				h.age = AgeTouched2
				linkList(&c.touched, o)
			} else {
				h.age = AgeOld
			}
		}
	}
	promote(c.firstOld, c.reallyOld)
	promote(c.firstOldFin, c.reallyOldFin)
	c.reallyOld = c.firstOld
	c.reallyOldFin = c.firstOldFin
}

// correctTouched advances the touch clocks after a minor's trace:
// Touched1 objects get one more traced cycle; Touched2 objects graduate
// to plain old only when every direct child is itself oldish, otherwise
// they stay under watch.
func (c *Context) correctTouched() {
	for _, o := range c.touchedScan {
		h := o.hdr()
		switch h.age {
		case AgeTouched1:
			h.age = AgeTouched2
			linkList(&c.touched, o)
		case AgeTouched2:
			if c.canGraduate(o) {
				h.age = AgeOld
			} else {
				linkList(&c.touched, o)
			}
		}
	}
	c.touchedScan = c.touchedScan[:0]
}

func (c *Context) canGraduate(o Object) bool {
	if neverOld(o) {
		return false
	}
	ok := true
	forEachChild(o, func(ch Object) {
		if !isFixed(ch) && !ch.hdr().age.isOldish() {
			ok = false
		}
	})
	return ok
}

// sweepGenList sweeps the young prefix of one primary list, up to limit
// (exclusive): dead young objects are freed, survivors age one step and
// are re-whitened so the next minor retraces them, and second-time
// survivors turn black and join the old generation. Returns the first
// newly-old object, if any.
func (c *Context) sweepGenList(head *Object, limit Object) Object {
	dead := otherWhite(c.currentWhite) // pre-flip shade of this minor
	var newlyOld Object
	slot := head
	for *slot != nil && *slot != limit {
		o := *slot
		h := o.hdr()
		if isDeadWhite(o, dead) {
			*slot = h.next
			c.freeObject(o)
			continue
		}
		switch h.age {
		case AgeNew:
			h.age = AgeSurvivor1
			c.makeWhite(o)
		case AgeSurvivor1:
			setBlack(o)
			c.oldBytes += int64(h.size)
			if neverOld(o) {
				h.age = AgeTouched2
				linkList(&c.touched, o)
			} else {
				h.age = AgeSurvivor2
			}
			if newlyOld == nil {
				newlyOld = o
			}
		default:
			// Old object resurrected to the head of the list, or a
			// touched straggler: leave age and color alone.
		}
		slot = &h.next
	}
	return newlyOld
}

// sweepGenAll sweeps the young prefixes of every primary list. The
// finalizable list must age like the main one: a young finalizable
// object left black forever would never be retraced, and stores into it
// would be swept while still reachable. Pending finalization objects
// are all marked, so their sweep only ages.
func (c *Context) sweepGenAll() {
	if first := c.sweepGenList(&c.allgc, c.firstOld); first != nil {
		c.firstOld = first
	}
	if first := c.sweepGenList(&c.finobj, c.firstOldFin); first != nil {
		c.firstOldFin = first
	}
	c.sweepGenList(&c.tobefnz, nil)
}

// majorCollection re-whitens the whole heap, runs one full trace and
// re-ages the survivors old. A major that reclaims too small a fraction
// of the heap is flagged bad and the controller keeps running majors
// until one pays off, approximating a fallback to incremental mode.
func (c *Context) majorCollection() {
	for _, list := range []Object{c.allgc, c.finobj, c.tobefnz} {
		for o := list; o != nil; o = o.hdr().next {
			c.makeWhite(o)
		}
	}
	c.touched = nil
	c.firstOld, c.reallyOld = nil, nil
	c.firstOldFin, c.reallyOldFin = nil, nil
	c.oldBytes = 0
	before := c.totalBytes

	c.phase = PhasePause
	c.runCycle()

	c.ageHeapOld()
	c.firstOld, c.reallyOld = c.allgc, c.allgc
	c.firstOldFin, c.reallyOldFin = c.finobj, c.finobj
	c.oldBytes = c.totalBytes
	c.lastMajorTotal = c.totalBytes
	freed := before - c.totalBytes
	c.majorPending = before > 0 && freed*100 < before*c.genMinorMul.Load()
	c.setMinorDebt()
}
