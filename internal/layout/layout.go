// Package layout describes fixed-width binary records as data.
//
// A Layout is an ordered list of fields, each with a name, an offset, a width
// and a byte order. Fields are packed in declaration order with no padding.
// One generic set of accessors reads and writes any field of any layout, so
// the state codec and the instruction decoder never slice buffers by hand.
package layout

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the wire type of a field.
type Kind int

const (
	KindUint8 Kind = iota
	KindUint64
	KindFloat64
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindUint64:
		return "u64"
	case KindFloat64:
		return "f64"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is one named slot of a layout.
type Field struct {
	Name   string
	Offset int
	Width  int
	Kind   Kind
	Order  binary.ByteOrder
}

// End returns the offset one past the field's last byte.
func (f Field) End() int {
	return f.Offset + f.Width
}

// Uint8 declares a single-byte field.
func Uint8(name string) Field {
	return Field{Name: name, Width: 1, Kind: KindUint8}
}

// Uint64LE declares a little-endian unsigned 64-bit field.
func Uint64LE(name string) Field {
	return Field{Name: name, Width: 8, Kind: KindUint64, Order: binary.LittleEndian}
}

// Float64LE declares a little-endian IEEE-754 double field.
func Float64LE(name string) Field {
	return Field{Name: name, Width: 8, Kind: KindFloat64, Order: binary.LittleEndian}
}

// Bytes declares an opaque fixed-width byte field.
func Bytes(name string, width int) Field {
	return Field{Name: name, Width: width, Kind: KindBytes}
}

// Layout is an immutable record description.
type Layout struct {
	name   string
	fields []Field
	index  map[string]int
	size   int
}

// Pack builds a layout by assigning offsets to fields in declaration order.
// Layouts are static descriptions, so a duplicate name or a non-positive
// width is a programming error and panics.
func Pack(name string, fields ...Field) Layout {
	l := Layout{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	offset := 0
	for i, f := range fields {
		if f.Width <= 0 {
			panic(fmt.Sprintf("layout %s: field %q has width %d", name, f.Name, f.Width))
		}
		if _, dup := l.index[f.Name]; dup {
			panic(fmt.Sprintf("layout %s: duplicate field %q", name, f.Name))
		}
		f.Offset = offset
		offset += f.Width
		l.fields[i] = f
		l.index[f.Name] = i
	}
	l.size = offset

	return l
}

// Name returns the layout's name.
func (l Layout) Name() string {
	return l.name
}

// Size returns the serialized size in bytes.
func (l Layout) Size() int {
	return l.size
}

// Fields returns a copy of the field list in declaration order.
func (l Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field looks up a field by name.
func (l Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

// ShortBufferError reports a buffer that cannot hold the bytes a layout needs.
type ShortBufferError struct {
	Layout string
	Field  string // empty when the whole record was checked
	Need   int
	Have   int
}

func (e *ShortBufferError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("layout %s: field %q needs %d bytes, buffer has %d", e.Layout, e.Field, e.Need, e.Have)
	}
	return fmt.Sprintf("layout %s: needs %d bytes, buffer has %d", e.Layout, e.Need, e.Have)
}

// Check verifies buf can hold the whole record.
func (l Layout) Check(buf []byte) error {
	if len(buf) < l.size {
		return &ShortBufferError{Layout: l.name, Need: l.size, Have: len(buf)}
	}
	return nil
}

// CheckField verifies buf reaches the end of the named field.
func (l Layout) CheckField(buf []byte, name string) error {
	f := l.mustField(name, -1)
	if len(buf) < f.End() {
		return &ShortBufferError{Layout: l.name, Field: name, Need: f.End(), Have: len(buf)}
	}
	return nil
}

// slot returns the bytes backing a field. Callers must have checked the
// buffer length; an out-of-range slot is a programming error and panics.
func (l Layout) slot(buf []byte, f Field) []byte {
	return buf[f.Offset:f.End():f.End()]
}

func (l Layout) mustField(name string, kind Kind) Field {
	f, ok := l.Field(name)
	if !ok {
		panic(fmt.Sprintf("layout %s: no field %q", l.name, name))
	}
	if kind >= 0 && f.Kind != kind {
		panic(fmt.Sprintf("layout %s: field %q is %s, not %s", l.name, name, f.Kind, kind))
	}
	return f
}

// Uint8 reads a one-byte field.
func (l Layout) Uint8(buf []byte, name string) uint8 {
	f := l.mustField(name, KindUint8)
	return l.slot(buf, f)[0]
}

// PutUint8 writes a one-byte field.
func (l Layout) PutUint8(buf []byte, name string, v uint8) {
	f := l.mustField(name, KindUint8)
	l.slot(buf, f)[0] = v
}

// Uint64 reads an unsigned 64-bit field in the field's byte order.
func (l Layout) Uint64(buf []byte, name string) uint64 {
	f := l.mustField(name, KindUint64)
	return f.Order.Uint64(l.slot(buf, f))
}

// PutUint64 writes an unsigned 64-bit field.
func (l Layout) PutUint64(buf []byte, name string, v uint64) {
	f := l.mustField(name, KindUint64)
	f.Order.PutUint64(l.slot(buf, f), v)
}

// Float64 reads an IEEE-754 double. Every bit pattern is accepted,
// NaN payloads included.
func (l Layout) Float64(buf []byte, name string) float64 {
	f := l.mustField(name, KindFloat64)
	return math.Float64frombits(f.Order.Uint64(l.slot(buf, f)))
}

// PutFloat64 writes an IEEE-754 double bit-for-bit.
func (l Layout) PutFloat64(buf []byte, name string, v float64) {
	f := l.mustField(name, KindFloat64)
	f.Order.PutUint64(l.slot(buf, f), math.Float64bits(v))
}

// Bytes returns a copy of an opaque field.
func (l Layout) Bytes(buf []byte, name string) []byte {
	f := l.mustField(name, KindBytes)
	out := make([]byte, f.Width)
	copy(out, l.slot(buf, f))
	return out
}

// PutBytes writes an opaque field. v must be exactly the field's width.
func (l Layout) PutBytes(buf []byte, name string, v []byte) {
	f := l.mustField(name, KindBytes)
	if len(v) != f.Width {
		panic(fmt.Sprintf("layout %s: field %q wants %d bytes, got %d", l.name, name, f.Width, len(v)))
	}
	copy(l.slot(buf, f), v)
}
