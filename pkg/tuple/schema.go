// Package tuple implements the minimal row encoding and schema contract the
// executors and B+ tree index operate against: a length-prefixed byte
// tuple, addressed by column through a small ordered schema. In the full
// system this is produced by a catalog and binder; here it is the stand-in
// the core reads and writes directly.
package tuple

import (
	"encoding/binary"
	"fmt"
)

// ColumnType is the set of value types a Schema column can hold.
type ColumnType int

const (
	Int32 ColumnType = iota
	Int64
	Varchar
)

func (t ColumnType) String() string {
	switch t {
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Varchar:
		return "VARCHAR"
	default:
		return "UNKNOWN_TYPE"
	}
}

// Column names one field of a Schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered list of columns. Column position, not name lookup
// speed, is what the wire encoding depends on: columns are always written
// and read in Schema order.
type Schema struct {
	Columns []Column
}

// NewSchema builds a schema from columns in the given order.
func NewSchema(columns ...Column) *Schema {
	return &Schema{Columns: columns}
}

// IndexOf returns the position of name in the schema, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) String() string {
	return fmt.Sprintf("Schema(%v)", s.Columns)
}

// Value is a single typed field, only one of the Int/Str fields being
// meaningful depending on Type.
type Value struct {
	Type ColumnType
	Int  int64
	Str  string
}

func Int32Value(v int32) Value  { return Value{Type: Int32, Int: int64(v)} }
func Int64Value(v int64) Value  { return Value{Type: Int64, Int: v} }
func VarcharValue(v string) Value { return Value{Type: Varchar, Str: v} }

// Compare orders two values of the same type; Varchar compares
// lexicographically, integers numerically.
func (v Value) Compare(other Value) int {
	switch v.Type {
	case Varchar:
		switch {
		case v.Str < other.Str:
			return -1
		case v.Str > other.Str:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case v.Int < other.Int:
			return -1
		case v.Int > other.Int:
			return 1
		default:
			return 0
		}
	}
}

func (v Value) String() string {
	if v.Type == Varchar {
		return v.Str
	}
	return fmt.Sprintf("%d", v.Int)
}

// Tuple is a length-prefixed encoded row. Fixed-width columns (Int32,
// Int64) are stored inline; Varchar columns are stored as a uint32 length
// prefix followed by the raw bytes, all packed back-to-back in schema
// order, with an overall 4-byte length prefix so the table heap can store
// tuples of varying size in a slotted page.
type Tuple struct {
	Data []byte
}

// NewTuple encodes values (in schema order) into a Tuple.
func NewTuple(schema *Schema, values []Value) *Tuple {
	if len(values) != len(schema.Columns) {
		panic(fmt.Sprintf("tuple: got %d values for schema with %d columns", len(values), len(schema.Columns)))
	}

	body := make([]byte, 0, 32)
	for i, col := range schema.Columns {
		v := values[i]
		switch col.Type {
		case Int32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v.Int))
			body = append(body, b[:]...)
		case Int64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
			body = append(body, b[:]...)
		case Varchar:
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v.Str)))
			body = append(body, lenBuf[:]...)
			body = append(body, v.Str...)
		}
	}

	data := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(body)))
	copy(data[4:], body)
	return &Tuple{Data: data}
}

// FromBytes wraps a previously encoded tuple (as read back from a page)
// without re-parsing it; GetValue parses lazily on demand.
func FromBytes(data []byte) *Tuple {
	return &Tuple{Data: data}
}

// Size returns the total encoded length, including the length prefix, as
// stored in a slotted page.
func (t *Tuple) Size() int {
	return 4 + int(binary.LittleEndian.Uint32(t.Data[0:4]))
}

// GetValue decodes the column-th field of schema from the tuple.
func (t *Tuple) GetValue(schema *Schema, column int) Value {
	off := 4
	for i, col := range schema.Columns {
		switch col.Type {
		case Int32:
			if i == column {
				return Int32Value(int32(binary.LittleEndian.Uint32(t.Data[off : off+4])))
			}
			off += 4
		case Int64:
			if i == column {
				return Int64Value(int64(binary.LittleEndian.Uint64(t.Data[off : off+8])))
			}
			off += 8
		case Varchar:
			strLen := int(binary.LittleEndian.Uint32(t.Data[off : off+4]))
			if i == column {
				return VarcharValue(string(t.Data[off+4 : off+4+strLen]))
			}
			off += 4 + strLen
		}
	}
	panic(fmt.Sprintf("tuple: column index %d out of range for schema with %d columns", column, len(schema.Columns)))
}

// KeyFromTuple projects the columns named by attrs (indices into schema)
// into a new tuple encoded against keySchema, for feeding into a B+ tree
// index built over a subset of a table's columns.
func KeyFromTuple(schema *Schema, keySchema *Schema, attrs []int) func(t *Tuple) *Tuple {
	return func(t *Tuple) *Tuple {
		values := make([]Value, len(attrs))
		for i, colIdx := range attrs {
			values[i] = t.GetValue(schema, colIdx)
		}
		return NewTuple(keySchema, values)
	}
}
