// The fieldtable package decodes the fixed-layout scalar records of a PD0
// ensemble (the fixed leader, the variable leader and so on).  Each record
// kind is described by a Table, an ordered list of fields giving the name,
// the type and the offset of each value relative to the start of the record.
// The first field of every record is its two-byte ID.
//
// Decoding is permissive: a field that runs past the end of the data is left
// out of the result and its name is added to the Omitted list.  The rest of
// the record is still decoded.
package fieldtable

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/goblimey/go-adcp/pd0/utils"
)

// ErrFieldOverflow is returned by Encode when a field doesn't fit.
var ErrFieldOverflow = errors.New("field does not fit")

// Type is the type of a field.  All types are little-endian.
type Type int

// The field types.
const (
	Uint8 Type = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
)

// Size returns the length of a value of the type in bytes.
func (t Type) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32:
		return 4
	case Uint64:
		return 8
	default:
		return 0
	}
}

// Signed returns true for the signed types.
func (t Type) Signed() bool {
	return t == Int8 || t == Int16 || t == Int32
}

func (t Type) String() string {
	switch t {
	case Uint8:
		return "u8"
	case Int8:
		return "i8"
	case Uint16:
		return "u16"
	case Int16:
		return "i16"
	case Uint32:
		return "u32"
	case Int32:
		return "i32"
	case Uint64:
		return "u64"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// mask has a bit set for each bit that a value of the type can hold.
func (t Type) mask() uint64 {
	if t.Size() >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*t.Size()) - 1
}

// Read gets a value of the type at the given position.  The caller must
// check that there are enough bytes.
func (t Type) Read(b []byte, pos int) uint64 {
	switch t {
	case Uint8, Int8:
		return uint64(b[pos])
	case Uint16, Int16:
		return uint64(utils.GetUint16(b, pos))
	case Uint32, Int32:
		return uint64(utils.GetUint32(b, pos))
	default:
		return utils.GetUint64(b, pos)
	}
}

// Write puts the low-order bytes of raw into b at the given position.
func (t Type) Write(b []byte, pos int, raw uint64) {
	for i := 0; i < t.Size(); i++ {
		b[pos+i] = byte(raw >> (8 * i))
	}
}

// Field describes one value in a record.
type Field struct {
	Name   string
	Type   Type
	Offset int
}

// Table is an ordered list of fields.
type Table []Field

// Size returns the number of bytes needed to hold every field in the table.
func (table Table) Size() int {
	size := 0
	for _, f := range table {
		if end := f.Offset + f.Type.Size(); end > size {
			size = end
		}
	}
	return size
}

// With returns a copy of the table with the given fields added.  A given
// field replaces any field in the table at the same offset.  The result is
// ordered by offset.
func (table Table) With(fields ...Field) Table {
	byOffset := make(map[int]Field, len(table)+len(fields))
	for _, f := range table {
		byOffset[f.Offset] = f
	}
	for _, f := range fields {
		byOffset[f.Offset] = f
	}

	result := make(Table, 0, len(byOffset))
	for _, f := range byOffset {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Offset < result[j].Offset })
	return result
}

// Value is a decoded field.  Raw holds the bits as read from the data.
type Value struct {
	Name string
	Type Type
	Raw  uint64
}

// Int returns the value, sign-extended if its type is signed.
func (v Value) Int() int64 {
	switch v.Type {
	case Int8:
		return int64(int8(v.Raw))
	case Int16:
		return int64(int16(v.Raw))
	case Int32:
		return int64(int32(v.Raw))
	default:
		return int64(v.Raw)
	}
}

// Uint returns the value as an unsigned number.
func (v Value) Uint() uint64 {
	return v.Raw
}

func (v Value) String() string {
	if v.Type.Signed() {
		return fmt.Sprintf("%d", v.Int())
	}
	return fmt.Sprintf("%d", v.Raw)
}

// Values holds the decoded fields of a record in table order, plus the names
// of any fields that could not be decoded.
type Values struct {
	Fields  []Value
	Omitted []string
}

// Get returns the named value.
func (values Values) Get(name string) (Value, bool) {
	for _, v := range values.Fields {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

// Int returns the named value as a (possibly sign-extended) integer.
func (values Values) Int(name string) (int64, bool) {
	v, ok := values.Get(name)
	if !ok {
		return 0, false
	}
	return v.Int(), true
}

// Uint returns the named value as an unsigned integer.
func (values Values) Uint(name string) (uint64, bool) {
	v, ok := values.Get(name)
	if !ok {
		return 0, false
	}
	return v.Uint(), true
}

// Names returns the names of the decoded fields in order.
func (values Values) Names() []string {
	names := make([]string, 0, len(values.Fields))
	for _, v := range values.Fields {
		names = append(names, v.Name)
	}
	return names
}

// Len returns the number of decoded fields.
func (values Values) Len() int {
	return len(values.Fields)
}

// String returns the values one per line as "name value".
func (values Values) String() string {
	var sb strings.Builder
	for _, v := range values.Fields {
		sb.WriteString(fmt.Sprintf("%s %s\n", v.Name, v.String()))
	}
	if len(values.Omitted) > 0 {
		sb.WriteString(fmt.Sprintf("omitted: %s\n", strings.Join(values.Omitted, ", ")))
	}
	return sb.String()
}

// discard is used when the caller doesn't supply a logger.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Decode decodes the record that starts at base in b using the table.
// Diagnostics about omitted fields are written to the logger, which may be
// nil.
func Decode(b []byte, base int, table Table, logger *slog.Logger) Values {
	if logger == nil {
		logger = discard
	}

	values := Values{Fields: make([]Value, 0, len(table))}

	for _, f := range table {
		pos := base + f.Offset
		if !utils.Available(b, pos, f.Type.Size()) {
			values.Omitted = append(values.Omitted, f.Name)
			logger.Debug("field omitted",
				"field", f.Name, "type", f.Type.String(), "position", pos, "available", len(b))
			continue
		}
		values.Fields = append(values.Fields,
			Value{Name: f.Name, Type: f.Type, Raw: f.Type.Read(b, pos)})
	}

	return values
}

// Encode writes the values into b at base using the table.  Fields with no
// value are written as zero.  It's the inverse of Decode.
func Encode(b []byte, base int, table Table, values Values) error {
	for _, f := range table {
		pos := base + f.Offset
		if !utils.Available(b, pos, f.Type.Size()) {
			return fmt.Errorf("%w - %s at %d", ErrFieldOverflow, f.Name, pos)
		}
		var raw uint64
		if v, ok := values.Get(f.Name); ok {
			raw = v.Raw
		}
		f.Type.Write(b, pos, raw)
	}
	return nil
}

// Build creates a Values from a set of raw values, in table order.  Names
// that aren't in the table are ignored.  It's used to create records for
// encoding.
func Build(table Table, raw map[string]uint64) Values {
	values := Values{Fields: make([]Value, 0, len(table))}
	for _, f := range table {
		values.Fields = append(values.Fields,
			Value{Name: f.Name, Type: f.Type, Raw: raw[f.Name] & f.Type.mask()})
	}
	return values
}
