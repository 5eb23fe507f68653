package vpack

// Visitor receives one callback per value kind. Returning an error stops the walk.
type Visitor interface {
	Null() error
	Bool(v bool) error
	Int(v int64) error
	Uint(v uint64) error
	Double(v float64) error
	String(v string) error
	Binary(v []byte) error
	// BeginArray and EndArray bracket the elements of an array.
	BeginArray(n int) error
	EndArray() error
	// BeginObject and EndObject bracket the members of an object; Key precedes
	// each member value.
	BeginObject(n int) error
	Key(k string) error
	EndObject() error
}

// Walk visits v depth-first in member order.
func Walk(v *Value, vis Visitor) error {
	switch v.Kind() {
	case KindNull:
		return vis.Null()
	case KindBool:
		return vis.Bool(v.boolVal)
	case KindInt:
		if v.unsigned {
			return vis.Uint(v.uintVal)
		}
		return vis.Int(v.intVal)
	case KindDouble:
		return vis.Double(v.doubleVal)
	case KindString:
		return vis.String(v.strVal)
	case KindBinary:
		return vis.Binary(v.binVal)
	case KindArray:
		if err := vis.BeginArray(len(v.arrVal)); err != nil {
			return err
		}
		for _, e := range v.arrVal {
			if err := Walk(e, vis); err != nil {
				return err
			}
		}
		return vis.EndArray()
	case KindObject:
		if err := vis.BeginObject(len(v.objVal)); err != nil {
			return err
		}
		for _, m := range v.objVal {
			if err := vis.Key(m.Key); err != nil {
				return err
			}
			if err := Walk(m.Value, vis); err != nil {
				return err
			}
		}
		return vis.EndObject()
	}
	return unsupportedf("value kind %s", v.Kind())
}
