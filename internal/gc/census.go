package gc

// Census is a point-in-time inventory of the heap, powering the debug
// endpoint and tests. Taking a census walks every list; do it at a
// quiescent point of the runtime.
type Census struct {
	Objects     int            `json:"objects"`
	Fixed       int            `json:"fixed"`
	Finalizable int            `json:"finalizable"`
	Pending     int            `json:"pending"`
	Kinds       map[string]int `json:"kinds"`
	Colors      map[string]int `json:"colors"`
	Ages        map[string]int `json:"ages"`
	Stats       Stats          `json:"stats"`
}

func colorName(o Object) string {
	switch {
	case isBlack(o):
		return "black"
	case isGray(o):
		return "gray"
	default:
		return "white"
	}
}

// TakeCensus inventories every object the collector tracks.
func (c *Context) TakeCensus() Census {
	cs := Census{
		Kinds:  make(map[string]int),
		Colors: make(map[string]int),
		Ages:   make(map[string]int),
		Stats:  c.MemoryStats(),
	}
	count := func(list Object, n *int) {
		for o := list; o != nil; o = o.hdr().next {
			*n++
			cs.Objects++
			cs.Kinds[o.Kind().String()]++
			cs.Colors[colorName(o)]++
			cs.Ages[o.hdr().age.String()]++
		}
	}
	var ordinary int
	count(c.allgc, &ordinary)
	count(c.fixedgc, &cs.Fixed)
	count(c.finobj, &cs.Finalizable)
	count(c.tobefnz, &cs.Pending)
	return cs
}

// ObjectCount returns the number of ordinary (non-fixed) objects across
// the all-objects, finalizable and pending lists.
func (c *Context) ObjectCount() int {
	n := 0
	for _, list := range []Object{c.allgc, c.finobj, c.tobefnz} {
		for o := list; o != nil; o = o.hdr().next {
			n++
		}
	}
	return n
}
