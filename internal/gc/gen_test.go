package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/selene/internal/alloc"
)

func newGenContextWithFinalizer(roots *rootSet, runs *int) (*Context, error) {
	return NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(*Context, Object) error {
			*runs++
			return nil
		},
	}, WithGenerational())
}

// forceMinor runs one generational step pinned to the minor path: the
// growth baseline is refreshed first so the escalation policy cannot
// fire.
func forceMinor(c *Context) {
	c.lastMajorTotal = c.totalBytes
	c.Step(1)
}

func TestGenerationalAgeLadder(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())
	require.True(t, c.Generational())

	tb := mustTable(t, c)
	roots.add(tb)
	require.Equal(t, AgeNew, tb.Age())

	forceMinor(c)
	require.Equal(t, AgeSurvivor1, tb.Age())
	forceMinor(c)
	require.Equal(t, AgeSurvivor2, tb.Age())
	require.True(t, isBlack(tb))
	forceMinor(c)
	require.Equal(t, AgeOld, tb.Age())

	st := c.MemoryStats()
	require.Equal(t, uint64(3), st.MinorCycles)
}

func TestMinorCollectionFreesYoungGarbage(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	keep := mustTable(t, c)
	roots.add(keep)
	garbage := make([]Object, 0, 50)
	for i := 0; i < 50; i++ {
		garbage = append(garbage, mustTable(t, c))
	}

	forceMinor(c)
	for _, o := range garbage {
		if heapContains(c, o) {
			t.Fatal("young garbage survived a minor collection")
		}
	}
	require.True(t, heapContains(c, keep))
	require.Equal(t, AgeSurvivor1, keep.Age())
}

func TestMinorCollectionSkipsOldGarbage(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	old := mustTable(t, c)
	roots.add(old)
	for i := 0; i < 3; i++ {
		forceMinor(c)
	}
	require.Equal(t, AgeOld, old.Age())

	// Unrooted old garbage is invisible to minors and reclaimed only by
	// the next major collection.
	roots.remove(old)
	forceMinor(c)
	forceMinor(c)
	require.True(t, heapContains(c, old), "minor collection freed an old object")

	c.FullCollection()
	require.False(t, heapContains(c, old))
}

func TestOldToYoungStoreTracked(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	old := mustTable(t, c)
	roots.add(old)
	for i := 0; i < 3; i++ {
		forceMinor(c)
	}
	require.Equal(t, AgeOld, old.Age())

	// A store into an old table must keep the young value alive across
	// minors even though the table itself is never traced from the roots
	// young-first.
	young := mustTable(t, c)
	old.Set(c, Number(1), Obj(young))
	require.Equal(t, AgeTouched1, old.Age())

	forceMinor(c)
	require.True(t, heapContains(c, young), "young object behind an old table lost")
	require.Equal(t, AgeTouched2, old.Age())
	require.Equal(t, AgeSurvivor1, young.Age())

	// The touched table stays under watch until its child is oldish,
	// then both settle.
	forceMinor(c)
	require.Equal(t, AgeTouched2, old.Age())
	require.Equal(t, AgeSurvivor2, young.Age())
	forceMinor(c)
	require.Equal(t, AgeOld, old.Age())
	require.Equal(t, AgeOld, young.Age())
}

func TestThreadsNeverGraduate(t *testing.T) {
	c, _ := newTestContext(t, WithGenerational())

	for i := 0; i < 5; i++ {
		forceMinor(c)
	}
	// Thread stacks are written without barriers, so the main thread
	// must stay on the touched list forever.
	require.Equal(t, AgeTouched2, c.MainThread().Age())

	stacked := mustTable(t, c)
	c.MainThread().Push(Obj(stacked))
	forceMinor(c)
	require.True(t, heapContains(c, stacked), "barrier-less stack write lost by a minor")
	c.MainThread().Pop()
}

func TestWeakTablesClearedEveryMinor(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	w := mustTable(t, c)
	w.SetWeak(c, WeakValues)
	roots.add(w)
	for i := 0; i < 3; i++ {
		forceMinor(c)
	}
	// Weak tables never settle as plain old.
	require.Equal(t, AgeTouched2, w.Age())

	w.Set(c, Number(1), Obj(mustTable(t, c)))
	forceMinor(c)
	require.True(t, w.Get(Number(1)).IsNil(), "dead weak value survived a minor collection")
}

func TestMajorEscalation(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational(), WithGenMajorMul(50))

	// Grow a mostly-old heap: rooted objects promoted by repeated minors
	// push the old-bytes share over the escalation threshold.
	for i := 0; i < 200; i++ {
		roots.add(mustTable(t, c))
	}
	for i := 0; i < 4; i++ {
		forceMinor(c)
	}
	roots.clear()

	before := c.MemoryStats().Cycles
	// Unpinned steps against real growth: the controller must notice the
	// old-heavy grown heap and escalate on its own.
	for i := 0; i < 100 && c.MemoryStats().Cycles == before; i++ {
		for j := 0; j < 20; j++ {
			roots.add(mustTable(t, c))
		}
		c.Step(1)
	}
	require.Greater(t, c.MemoryStats().Cycles, before, "old-heavy heap never escalated to a major collection")
	// The 200 unrooted old tables are gone; only the fresh rooted ones
	// and the permanent objects remain.
	require.Less(t, c.ObjectCount(), 150, "major collection left old garbage behind")
}

func TestSwitchingGenerationalModeOff(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	tb := mustTable(t, c)
	roots.add(tb)
	for i := 0; i < 3; i++ {
		forceMinor(c)
	}
	require.Equal(t, AgeOld, tb.Age())

	c.SetGenerational(false)
	require.False(t, c.Generational())
	require.Equal(t, AgeNew, tb.Age())
	require.True(t, isWhite(tb))

	// Incremental mode functions normally afterwards.
	garbage := mustTable(t, c)
	c.FullCollection()
	require.True(t, heapContains(c, tb))
	require.False(t, heapContains(c, garbage))
}

func TestSwitchingGenerationalModeOn(t *testing.T) {
	c, roots := newTestContext(t)

	tb := mustTable(t, c)
	roots.add(tb)
	garbage := mustTable(t, c)

	c.SetGenerational(true)
	// Entry runs a full collection and ages the survivors old.
	require.False(t, heapContains(c, garbage))
	require.Equal(t, AgeOld, tb.Age())
	require.True(t, isBlack(tb))
}

func TestGenerationalFinalizers(t *testing.T) {
	roots := &rootSet{}
	runs := 0
	c, err := newGenContextWithFinalizer(roots, &runs)
	require.NoError(t, err)

	// Young finalizable garbage is separated and finalized by the very
	// next minor collection.
	young := mustTable(t, c)
	c.SetFinalizer(young)
	forceMinor(c)
	require.Equal(t, 1, runs)
	require.True(t, isFinalized(young))

	// Old finalizable objects stay black through minors; only a major
	// separates them.
	old := mustTable(t, c)
	roots.add(old)
	c.SetFinalizer(old)
	for i := 0; i < 3; i++ {
		forceMinor(c)
	}
	require.Equal(t, AgeOld, old.Age())
	roots.remove(old)
	forceMinor(c)
	forceMinor(c)
	require.Equal(t, 1, runs, "minor collection finalized an old object")
	c.FullCollection()
	require.Equal(t, 2, runs)
	require.True(t, isFinalized(old))
}

func TestFinalizableTableKeepsYoungStores(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	holder := mustTable(t, c)
	roots.add(holder)
	c.SetFinalizer(holder)

	// The holder survives a minor on the finalizable list; a store made
	// afterwards must survive the following minors even though the
	// holder is not on the ordinary all-objects list.
	forceMinor(c)
	child := mustTable(t, c)
	holder.Set(c, Number(1), Obj(child))

	forceMinor(c)
	require.True(t, heapContains(c, child), "store into a live finalizable table lost")
	require.Equal(t, Obj(child), holder.Get(Number(1)))

	// And again as the holder ages through survivor-2 into old.
	forceMinor(c)
	forceMinor(c)
	require.True(t, heapContains(c, child))
	require.Equal(t, Obj(child), holder.Get(Number(1)))
	require.Equal(t, AgeOld, holder.Age())
}

func TestFinalizableAgesLikeOrdinaryObjects(t *testing.T) {
	c, roots := newTestContext(t, WithGenerational())

	holder := mustTable(t, c)
	roots.add(holder)
	c.SetFinalizer(holder)

	require.Equal(t, AgeNew, holder.Age())
	forceMinor(c)
	require.Equal(t, AgeSurvivor1, holder.Age())
	require.True(t, isWhite(holder), "finalizable survivor not re-whitened for retracing")
	forceMinor(c)
	require.Equal(t, AgeSurvivor2, holder.Age())
	forceMinor(c)
	require.Equal(t, AgeOld, holder.Age())
}

func TestResurrectedObjectKeepsStoresAcrossMinors(t *testing.T) {
	roots := &rootSet{}
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(c *Context, o Object) error {
			// Resurrect with a freshly allocated child attached.
			tb := o.(*Table)
			child, err := c.NewTable()
			if err != nil {
				return err
			}
			tb.Set(c, Number(1), Obj(child))
			c.Registry().Set(c, Number(50), Obj(o))
			return nil
		},
	}, WithGenerational())
	require.NoError(t, err)

	obj := mustTable(t, c)
	c.SetFinalizer(obj)

	forceMinor(c) // separates, finalizes, resurrects
	child := obj.Get(Number(1)).Object()
	require.NotNil(t, child)

	forceMinor(c)
	forceMinor(c)
	require.True(t, heapContains(c, obj))
	require.True(t, heapContains(c, child), "child of a resurrected object lost")
	require.Equal(t, Obj(child), obj.Get(Number(1)))
}
