package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/tuannm99/novaextract/internal/alias/bx"
	"github.com/tuannm99/novaextract/internal/collation"
	"github.com/tuannm99/novaextract/internal/record"
)

var (
	ErrBadSchemaBlock = errors.New("catalog: bad schema block")
	ErrTooManyColumns = errors.New("catalog: too many columns")
)

// Schema block:
// [default collation u8][column count u16]
// per column: [name len u16][name][type tag u8][collation tag u8, 0 = default]
func EncodeSchema(s *record.Schema) ([]byte, error) {
	if s.NumCols() > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyColumns, s.NumCols())
	}

	w := bx.NewWriter(3 + s.NumCols()*16)
	w.U8(uint8(s.DefaultCollation()))
	w.U16(uint16(s.NumCols()))
	for _, c := range s.Columns() {
		if len(c.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: column name of %d bytes", ErrBadSchemaBlock, len(c.Name))
		}
		w.Str16(c.Name)
		w.U8(uint8(c.Type))
		w.U8(uint8(c.Collation))
	}
	return w.Bytes(), nil
}

// DecodeSchema rebuilds a frozen schema from its block. Persisted
// schemas are never redefined by callers.
func DecodeSchema(b []byte) (*record.Schema, error) {
	r := bx.NewReader(b)
	def := collation.ID(r.U8())
	n := int(r.U16())
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchemaBlock, r.Err())
	}

	s := record.NewSchema()
	if err := s.SetDefaultCollation(def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchemaBlock, err)
	}
	for i := 0; i < n; i++ {
		name := r.Str16()
		t := record.TypeTag(r.U8())
		c := collation.ID(r.U8())
		if r.Err() != nil {
			return nil, fmt.Errorf("%w: column %d: %v", ErrBadSchemaBlock, i, r.Err())
		}
		if err := s.AddColumnWithCollation(name, t, c); err != nil {
			return nil, fmt.Errorf("%w: column %d: %v", ErrBadSchemaBlock, i, err)
		}
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadSchemaBlock, r.Remaining())
	}

	s.Freeze()
	return s, nil
}
