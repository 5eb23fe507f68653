package vpack

// ArrayIterator walks the elements of an array in storage order.
//
//	it, err := s.ArrayIterator()
//	for it.Next() {
//		v := it.Value()
//	}
//	if err := it.Err(); err != nil { ... }
type ArrayIterator struct {
	buf  []byte
	pos  int
	left int
	cur  Slice
	err  error
}

// ArrayIterator returns an iterator over the elements of an array.
func (s Slice) ArrayIterator() (*ArrayIterator, error) {
	if !isArrayHead(s.Head()) {
		return nil, s.mismatch("array")
	}
	l, err := s.layout()
	if err != nil {
		return nil, err
	}
	return &ArrayIterator{
		buf:  s.buf[:s.start+l.end],
		pos:  s.start + l.data,
		left: l.n,
	}, nil
}

// Next advances to the next element.
func (it *ArrayIterator) Next() bool {
	if it.err != nil || it.left == 0 {
		return false
	}
	cur := Slice{buf: it.buf, start: it.pos}
	size, err := cur.ByteSize()
	if err != nil {
		it.err = err
		return false
	}
	it.cur = cur
	it.pos += size
	it.left--
	return true
}

// Value returns the current element.
func (it *ArrayIterator) Value() Slice { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *ArrayIterator) Err() error { return it.err }

// ObjectIterator walks the members of an object in storage order.
type ObjectIterator struct {
	buf  []byte
	pos  int
	left int
	key  string
	val  Slice
	err  error
}

// ObjectIterator returns an iterator over the members of an object.
func (s Slice) ObjectIterator() (*ObjectIterator, error) {
	if !isObjectHead(s.Head()) {
		return nil, s.mismatch("object")
	}
	l, err := s.layout()
	if err != nil {
		return nil, err
	}
	return newObjectIterator(s, l), nil
}

func newObjectIterator(s Slice, l layout) *ObjectIterator {
	return &ObjectIterator{
		buf:  s.buf[:s.start+l.end],
		pos:  s.start + l.data,
		left: l.n,
	}
}

// Next advances to the next member.
func (it *ObjectIterator) Next() bool {
	if it.err != nil || it.left == 0 {
		return false
	}
	key := Slice{buf: it.buf, start: it.pos}
	keySize, err := key.ByteSize()
	if err != nil {
		it.err = err
		return false
	}
	name, err := keyString(key)
	if err != nil {
		it.err = err
		return false
	}
	val := Slice{buf: it.buf, start: it.pos + keySize}
	valSize, err := val.ByteSize()
	if err != nil {
		it.err = err
		return false
	}
	it.key, it.val = name, val
	it.pos += keySize + valSize
	it.left--
	return true
}

// Key returns the current member's key.
func (it *ObjectIterator) Key() string { return it.key }

// Value returns the current member's value.
func (it *ObjectIterator) Value() Slice { return it.val }

// Err returns the error that stopped iteration, if any.
func (it *ObjectIterator) Err() error { return it.err }
