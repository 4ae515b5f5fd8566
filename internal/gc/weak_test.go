package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeakValuesCleared(t *testing.T) {
	c, roots := newTestContext(t)

	w := mustTable(t, c)
	w.SetWeak(c, WeakValues)
	roots.add(w)

	doomed := mustTable(t, c)
	kept := mustTable(t, c)
	roots.add(kept)
	w.Set(c, Number(1), Obj(doomed))
	w.Set(c, Number(2), Obj(kept))
	w.Set(c, Number(3), Number(7))

	c.FullCollection()

	require.True(t, w.Get(Number(1)).IsNil(), "dead weak value not cleared")
	require.Equal(t, Obj(kept), w.Get(Number(2)))
	require.Equal(t, float64(7), w.Get(Number(3)).Number())
	if heapContains(c, doomed) {
		t.Fatal("value kept alive by a weak-value table")
	}
}

func TestWeakValueStringsAreNotCleared(t *testing.T) {
	c, roots := newTestContext(t)

	w := mustTable(t, c)
	w.SetWeak(c, WeakValues)
	roots.add(w)

	s, err := c.NewString("ephemeral text")
	require.NoError(t, err)
	w.Set(c, Number(1), Obj(s))

	c.FullCollection()

	// Strings behave as values: the slot survives even with no other
	// reference to the string.
	got := w.Get(Number(1))
	require.True(t, got.IsCollectable())
	require.Equal(t, "ephemeral text", got.Object().(*String).Str)
}

func TestWeakKeysCleared(t *testing.T) {
	c, roots := newTestContext(t)

	w := mustTable(t, c)
	w.SetWeak(c, WeakKeys)
	roots.add(w)

	liveKey := mustTable(t, c)
	roots.add(liveKey)
	deadKey := mustTable(t, c)
	v1 := mustTable(t, c)
	v2 := mustTable(t, c)
	w.Set(c, Obj(liveKey), Obj(v1))
	w.Set(c, Obj(deadKey), Obj(v2))

	c.FullCollection()

	require.Equal(t, Obj(v1), w.Get(Obj(liveKey)))
	require.True(t, w.Get(Obj(deadKey)).IsNil())
	if heapContains(c, deadKey) || heapContains(c, v2) {
		t.Fatal("dead ephemeron entry kept its key or value alive")
	}
	if !heapContains(c, v1) {
		t.Fatal("live-key ephemeron value collected")
	}
}

// Ephemeron chains need the fixpoint: the value of one weak-key table is
// the key of the next, so a single marking pass over the set is not
// enough to see the whole chain live.
func TestEphemeronChainConverges(t *testing.T) {
	c, roots := newTestContext(t)

	e1 := mustTable(t, c)
	e2 := mustTable(t, c)
	e3 := mustTable(t, c)
	for _, e := range []*Table{e1, e2, e3} {
		e.SetWeak(c, WeakKeys)
		roots.add(e)
	}

	k1 := mustTable(t, c)
	k2 := mustTable(t, c)
	k3 := mustTable(t, c)
	payload := mustTable(t, c)
	e3.Set(c, Obj(k3), Obj(k2))
	e2.Set(c, Obj(k2), Obj(k1))
	e1.Set(c, Obj(k1), Obj(payload))
	roots.add(k3)

	c.FullCollection()

	require.Equal(t, Obj(k2), e3.Get(Obj(k3)))
	require.Equal(t, Obj(k1), e2.Get(Obj(k2)))
	require.Equal(t, Obj(payload), e1.Get(Obj(k1)))
	for _, o := range []Object{k1, k2, payload} {
		if !heapContains(c, o) {
			t.Fatal("chained ephemeron referent collected")
		}
	}

	// Cut the chain at its root: everything downstream dies together.
	roots.remove(k3)
	c.FullCollection()
	require.Equal(t, 0, e1.HashLen())
	require.Equal(t, 0, e2.HashLen())
	require.Equal(t, 0, e3.HashLen())
	for _, o := range []Object{k1, k2, k3, payload} {
		if heapContains(c, o) {
			t.Fatal("cut ephemeron chain left a survivor")
		}
	}
}

func TestWeakBothRequiresBothReachable(t *testing.T) {
	c, roots := newTestContext(t)

	w := mustTable(t, c)
	w.SetWeak(c, WeakBoth)
	roots.add(w)

	kLive := mustTable(t, c)
	vLive := mustTable(t, c)
	roots.add(kLive)
	roots.add(vLive)
	kDead := mustTable(t, c)
	vDead := mustTable(t, c)

	w.Set(c, Obj(kLive), Obj(vLive)) // both rooted: stays
	w.Set(c, Obj(vLive), Obj(vDead)) // dead value: cleared
	w.Set(c, Obj(kDead), Obj(kLive)) // dead key: cleared

	c.FullCollection()

	require.Equal(t, Obj(vLive), w.Get(Obj(kLive)))
	require.Equal(t, 1, w.HashLen())
	if heapContains(c, kDead) || heapContains(c, vDead) {
		t.Fatal("weak-both table kept a dead referent alive")
	}
}

func TestWeakArraySlotsTombstoned(t *testing.T) {
	c, roots := newTestContext(t)

	w := mustTable(t, c)
	w.SetWeak(c, WeakValues)
	roots.add(w)

	kept := mustTable(t, c)
	roots.add(kept)
	w.Set(c, Number(1), Obj(mustTable(t, c)))
	w.Set(c, Number(2), Obj(kept))

	c.FullCollection()

	// Array part: the dead slot is tombstoned in place, later slots keep
	// their index.
	require.Equal(t, 2, w.Len())
	require.True(t, w.Get(Number(1)).IsNil())
	require.Equal(t, Obj(kept), w.Get(Number(2)))
}
