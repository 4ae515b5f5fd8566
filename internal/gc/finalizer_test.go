package gc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/selene/internal/alloc"
)

func TestFinalizerRunsExactlyOnce(t *testing.T) {
	roots := &rootSet{}
	runs := 0
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(*Context, Object) error {
			runs++
			return nil
		},
	})
	require.NoError(t, err)

	obj := mustTable(t, c)
	c.SetFinalizer(obj)

	c.FullCollection()
	require.Equal(t, 1, runs)
	require.True(t, isFinalized(obj))
	// The object was revived for its finalizer call and is now ordinary
	// unreachable garbage.
	require.True(t, heapContains(c, obj))

	c.FullCollection()
	require.Equal(t, 1, runs)
	require.False(t, heapContains(c, obj))
	require.Equal(t, uint64(1), c.MemoryStats().Finalized)
}

func TestFinalizerResurrection(t *testing.T) {
	roots := &rootSet{}
	runs := 0
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(c *Context, o Object) error {
			runs++
			c.Registry().Set(c, Number(99), Obj(o))
			return nil
		},
	})
	require.NoError(t, err)

	obj := mustTable(t, c)
	held := mustTable(t, c)
	obj.Set(c, Number(1), Obj(held))
	c.SetFinalizer(obj)

	c.FullCollection()
	require.Equal(t, 1, runs)
	require.True(t, heapContains(c, obj))
	require.True(t, heapContains(c, held), "object referenced by a resurrected one collected")

	// Resurrected and rooted: survives, and the finalizer does not run
	// again.
	c.FullCollection()
	require.Equal(t, 1, runs)
	require.True(t, heapContains(c, obj))

	// Dropping the resurrection root frees it silently.
	c.Registry().Set(c, Number(99), Nil())
	c.FullCollection()
	require.Equal(t, 1, runs)
	require.False(t, heapContains(c, obj))
}

func TestFinalizerReregistrationAfterRunIsNoop(t *testing.T) {
	roots := &rootSet{}
	runs := 0
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(c *Context, o Object) error {
			runs++
			c.Registry().Set(c, Number(1), Obj(o))
			return nil
		},
	})
	require.NoError(t, err)

	obj := mustTable(t, c)
	c.SetFinalizer(obj)
	c.FullCollection()
	require.Equal(t, 1, runs)

	// Finalize-at-most-once: a second registration of the same object is
	// ignored.
	c.SetFinalizer(obj)
	c.Registry().Set(c, Number(1), Nil())
	c.FullCollection()
	c.FullCollection()
	require.Equal(t, 1, runs)
	require.False(t, heapContains(c, obj))
}

func TestFinalizerErrorsAreIsolated(t *testing.T) {
	roots := &rootSet{}
	boom := errors.New("boom")
	var ran []Object
	var reported []error
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(_ *Context, o Object) error {
			ran = append(ran, o)
			if len(ran) == 1 {
				return boom
			}
			return nil
		},
		ReportError: func(err error) { reported = append(reported, err) },
	})
	require.NoError(t, err)

	a := mustTable(t, c)
	b := mustTable(t, c)
	c.SetFinalizer(a)
	c.SetFinalizer(b)

	c.FullCollection()

	require.Len(t, ran, 2, "an erroring finalizer stalled the queue")
	require.Len(t, reported, 1)
	var ce *CollectError
	require.ErrorAs(t, reported[0], &ce)
	require.Equal(t, ErrFinalizer, ce.Code)
	require.ErrorIs(t, reported[0], boom)
}

func TestFinalizersRunInReverseRegistrationOrder(t *testing.T) {
	roots := &rootSet{}
	var order []Object
	c, err := NewContext(alloc.NewSystem(), Hooks{
		Roots: roots,
		RunFinalizer: func(_ *Context, o Object) error {
			order = append(order, o)
			return nil
		},
	})
	require.NoError(t, err)

	a := mustTable(t, c)
	b := mustTable(t, c)
	d := mustTable(t, c)
	c.SetFinalizer(a)
	c.SetFinalizer(b)
	c.SetFinalizer(d)

	c.FullCollection()
	require.Equal(t, []Object{d, b, a}, order)
}

func TestFinalizableKeptAliveUntilFinalized(t *testing.T) {
	roots := &rootSet{}
	c, err := NewContext(alloc.NewSystem(), Hooks{Roots: roots})
	require.NoError(t, err)

	obj := mustTable(t, c)
	dep := mustTable(t, c)
	obj.Set(c, Number(1), Obj(dep))
	c.SetFinalizer(obj)

	// No RunFinalizer hook: the object still moves through the pending
	// queue and is revived before dying for real.
	c.FullCollection()
	require.True(t, heapContains(c, obj))
	require.True(t, heapContains(c, dep))

	c.FullCollection()
	require.False(t, heapContains(c, obj))
	require.False(t, heapContains(c, dep))
}

func TestSetFinalizerOnFixedObjectIsNoop(t *testing.T) {
	c, _ := newTestContext(t)
	s, err := c.Intern("fixed")
	require.NoError(t, err)
	c.SetFinalizer(s)
	c.FullCollection()
	c.FullCollection()
	require.False(t, c.HasPendingFinalizers())
}
