package record

import (
	"fmt"

	"github.com/tuannm99/novaextract/internal/alias/bx"
)

// Record format:
// [fixed area: fixed width columns at schema-derived offsets]
// [offset table: u32 per variable width column, offset from record start]
// [variable area: u32 length + payload per variable width column]
type layout struct {
	fixedOff  []int // per column, -1 for variable width
	varSlot   []int // per column, -1 for fixed width
	fixedSize int
	numVar    int
}

func layoutOf(cols []Column) layout {
	l := layout{
		fixedOff: make([]int, len(cols)),
		varSlot:  make([]int, len(cols)),
	}
	for i, c := range cols {
		if w := c.Type.Width(); w > 0 {
			l.fixedOff[i] = l.fixedSize
			l.varSlot[i] = -1
			l.fixedSize += w
			continue
		}
		l.fixedOff[i] = -1
		l.varSlot[i] = l.numVar
		l.numVar++
	}
	return l
}

func (l layout) headerSize() int { return l.fixedSize + l.numVar*4 }

// EncodeRow encodes every column of r into one record. Nothing is returned
// unless all columns are set and encodable, so callers can append the
// result as a unit.
func (e Encoder) EncodeRow(r *Row) ([]byte, error) {
	l := layoutOf(r.cols)
	out := make([]byte, l.headerSize(), l.headerSize()+16*l.numVar)

	for i, c := range r.cols {
		v := r.values[i]
		if v == nil {
			return nil, fmt.Errorf("%w: %w: %q", ErrSchemaMismatch, ErrColumnUnset, c.Name)
		}

		if off := l.fixedOff[i]; off >= 0 {
			b, err := e.appendValue(nil, c.Type, v)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			copy(out[off:], b)
			continue
		}

		bx.PutU32(out[l.fixedSize+l.varSlot[i]*4:], uint32(len(out)))
		var err error
		out, err = e.appendValue(out, c.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	return out, nil
}

// DecodeRow rebuilds a Row for schema s from a record produced by EncodeRow.
func DecodeRow(s *Schema, rec []byte) (*Row, error) {
	r := NewRow(s)
	l := layoutOf(r.cols)
	if len(rec) < l.headerSize() {
		return nil, ErrBadBuffer
	}
	for i := range r.cols {
		v, err := decodeColumn(r.cols, l, rec, i)
		if err != nil {
			return nil, err
		}
		r.values[i] = v
	}
	return r, nil
}

// DecodeColumn reads only column i of a record, using the fixed offset or
// the offset table entry of that column.
func DecodeColumn(s *Schema, rec []byte, i int) (any, error) {
	if i < 0 || i >= s.NumCols() {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, s.NumCols())
	}
	l := layoutOf(s.cols)
	if len(rec) < l.headerSize() {
		return nil, ErrBadBuffer
	}
	return decodeColumn(s.cols, l, rec, i)
}

func decodeColumn(cols []Column, l layout, rec []byte, i int) (any, error) {
	t := cols[i].Type
	if off := l.fixedOff[i]; off >= 0 {
		v, _, err := DecodeValue(t, rec[off:])
		return v, err
	}

	off := int(bx.U32(rec[l.fixedSize+l.varSlot[i]*4:]))
	if off < l.headerSize() || off >= len(rec) {
		return nil, fmt.Errorf("%w: column %q offset %d", ErrBadBuffer, cols[i].Name, off)
	}
	v, _, err := DecodeValue(t, rec[off:])
	return v, err
}
