// Package match compares a secondary record set against a master record set on
// positionally paired columns, using either a hash index (exact mode) or a
// phonetic bucket index with Jaro-Winkler scoring (fuzzy mode).
package match

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindBlank Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a single typed spreadsheet cell.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Blank returns an empty cell.
func Blank() Value { return Value{} }

// Str returns a text cell. The empty string is kept as a blank cell.
func Str(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindString, str: s}
}

// Number returns a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the cell type.
func (v Value) Kind() Kind { return v.kind }

// IsBlank reports whether the cell holds no value.
func (v Value) IsBlank() bool { return v.kind == KindBlank }

// String coerces the cell to text: blank cells become "", numbers use their
// shortest decimal form and booleans become "true" or "false".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes blanks as "", numbers and booleans natively.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.String())
	}
}

// Header is an ordered list of unique column names.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a header. If a name repeats, lookups resolve to its first
// position; record providers make names unique before calling this.
func NewHeader(names []string) *Header {
	h := &Header{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range h.names {
		if _, ok := h.index[n]; !ok {
			h.index[n] = i
		}
	}
	return h
}

// Names returns a copy of the column names in order.
func (h *Header) Names() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.names...)
}

// Len returns the number of columns.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Index returns the position of a column, or -1 when absent.
func (h *Header) Index(name string) int {
	if h == nil {
		return -1
	}
	if i, ok := h.index[name]; ok {
		return i
	}
	return -1
}

// Record is one row: cells ordered by its header.
type Record struct {
	header *Header
	cells  []Value
}

// NewRecord binds cells to a header. Missing trailing cells read as blank.
func NewRecord(h *Header, cells []Value) Record {
	return Record{header: h, cells: cells}
}

// Get returns the cell for a column. Unknown columns read as blank.
func (r Record) Get(column string) Value {
	i := r.header.Index(column)
	if i < 0 || i >= len(r.cells) {
		return Blank()
	}
	return r.cells[i]
}

// At returns the cell at a column position.
func (r Record) At(i int) Value {
	if i < 0 || i >= len(r.cells) {
		return Blank()
	}
	return r.cells[i]
}

// Header returns the header the record is bound to.
func (r Record) Header() *Header { return r.header }

// Strings returns every cell coerced to text, padded to the header width.
func (r Record) Strings() []string {
	out := make([]string, r.header.Len())
	for i := range out {
		out[i] = r.At(i).String()
	}
	return out
}

// Values returns the selected columns coerced to text.
func (r Record) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.Get(c).String()
	}
	return out
}

// MarshalJSON encodes the record as an object with keys in header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.header.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := r.At(i).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordSet is an ordered sequence of records sharing one header.
type RecordSet struct {
	Header  *Header
	Records []Record
}

// NewRecordSet builds a record set from a header and raw cell rows.
func NewRecordSet(columns []string, rows [][]Value) *RecordSet {
	h := NewHeader(columns)
	rs := &RecordSet{Header: h, Records: make([]Record, len(rows))}
	for i, cells := range rows {
		rs.Records[i] = NewRecord(h, cells)
	}
	return rs
}

// Len returns the number of records; a nil set is empty.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Columns returns the header names.
func (rs *RecordSet) Columns() []string {
	if rs == nil {
		return nil
	}
	return rs.Header.Names()
}
