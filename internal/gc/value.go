package gc

// ValueKind discriminates the scalar/object split of a Value.
type ValueKind uint8

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObject
)

// Value is the tagged slot type used by tables, stacks, upvalues and
// constants. Values are comparable (usable as map keys); object values
// compare by identity.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	o    Object
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: ValBool, b: b} }

// Number wraps a float.
func Number(n float64) Value { return Value{kind: ValNumber, n: n} }

// Obj wraps a heap object. Obj(nil) is the nil value.
func Obj(o Object) Value {
	if o == nil {
		return Value{}
	}
	return Value{kind: ValObject, o: o}
}

// ValueKind returns the value's tag.
func (v Value) ValueKind() ValueKind { return v.kind }

// IsNil reports whether the value is nil.
func (v Value) IsNil() bool { return v.kind == ValNil }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload.
func (v Value) Number() float64 { return v.n }

// Object returns the object payload, or nil for non-object values.
func (v Value) Object() Object {
	if v.kind != ValObject {
		return nil
	}
	return v.o
}

// IsCollectable reports whether the value refers to a heap object the
// collector manages.
func (v Value) IsCollectable() bool { return v.kind == ValObject && v.o != nil }
