package gc

import "fmt"

// Validate re-scans the whole heap and reports the first tri-color
// violation: a black object referencing a white one. Barriers make this
// impossible for a correct mutator, so a violation means a mutation
// site skipped its barrier call. The check is sound right after an
// atomic phase (where the collector runs it automatically under
// WithDebugChecks). Between generational cycles it reports false
// positives: the minor sweep re-whitens surviving young objects while
// their traced old parents stay black.
func (c *Context) Validate() error {
	if c.phase.sweeping() {
		// Mid-sweep the heap holds both white shades at once; the
		// invariant is only checkable at phase boundaries outside it.
		return nil
	}
	for _, list := range []Object{c.allgc, c.finobj, c.tobefnz} {
		for o := list; o != nil; o = o.hdr().next {
			if !isBlack(o) {
				continue
			}
			var bad Object
			forEachChild(o, func(ch Object) {
				if bad == nil && isWhite(ch) {
					bad = ch
				}
			})
			if bad != nil {
				return &CollectError{
					Code: ErrInvariant,
					Message: fmt.Sprintf("black %s references white %s (missed write barrier)",
						o.Kind(), bad.Kind()),
				}
			}
		}
	}
	return nil
}
