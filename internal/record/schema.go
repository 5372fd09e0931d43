package record

import (
	"fmt"
	"math"

	"github.com/tuannm99/novaextract/internal/collation"
)

// Column is an immutable named, typed column. Collation is only meaningful
// for string columns; collation.Default inherits the schema default.
type Column struct {
	Name      string
	Type      TypeTag
	Collation collation.ID
}

// Schema is an ordered list of uniquely named columns. Once frozen (bound
// to a table or decoded from disk) it rejects every mutation.
type Schema struct {
	cols             []Column
	index            map[string]int
	defaultCollation collation.ID
	frozen           bool
}

func NewSchema() *Schema {
	return &Schema{index: make(map[string]int)}
}

func (s *Schema) AddColumn(name string, t TypeTag) error {
	return s.AddColumnWithCollation(name, t, collation.Default)
}

func (s *Schema) AddColumnWithCollation(name string, t TypeTag, c collation.ID) error {
	if s.frozen {
		return fmt.Errorf("%w: cannot add column %q", ErrSchemaFrozen, name)
	}
	if name == "" {
		return fmt.Errorf("%w: column name is empty", ErrInvalidType)
	}
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: column name of %d bytes exceeds %d", ErrInvalidType, len(name), math.MaxUint16)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %s for column %q", ErrInvalidType, t, name)
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %s for column %q", collation.ErrUnknownCollation, c, name)
	}
	if c != collation.Default && !t.IsString() {
		return fmt.Errorf("%w: collation on %s column %q", ErrInvalidType, t, name)
	}
	if _, dup := s.index[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}

	s.index[name] = len(s.cols)
	s.cols = append(s.cols, Column{Name: name, Type: t, Collation: c})
	return nil
}

// SetDefaultCollation sets the collation used by string columns that do
// not declare their own.
func (s *Schema) SetDefaultCollation(c collation.ID) error {
	if s.frozen {
		return fmt.Errorf("%w: cannot change default collation", ErrSchemaFrozen)
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %s", collation.ErrUnknownCollation, c)
	}
	s.defaultCollation = c
	return nil
}

// Freeze makes the schema immutable. It is idempotent.
func (s *Schema) Freeze() { s.frozen = true }

func (s *Schema) Frozen() bool { return s.frozen }

func (s *Schema) NumCols() int { return len(s.cols) }

func (s *Schema) DefaultCollation() collation.ID { return s.defaultCollation }

func (s *Schema) Column(i int) (Column, error) {
	if i < 0 || i >= len(s.cols) {
		return Column{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(s.cols))
	}
	return s.cols[i], nil
}

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

func (s *Schema) Index(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i, nil
}

// Collation returns the effective collation of column i.
func (s *Schema) Collation(i int) (collation.ID, error) {
	col, err := s.Column(i)
	if err != nil {
		return 0, err
	}
	if col.Collation != collation.Default {
		return col.Collation, nil
	}
	return s.defaultCollation, nil
}

// Compare orders two values of string column i under its effective collation.
func (s *Schema) Compare(i int, a, b string) (int, error) {
	col, err := s.Column(i)
	if err != nil {
		return 0, err
	}
	if !col.Type.IsString() {
		return 0, fmt.Errorf("%w: column %q is %s", ErrTypeMismatch, col.Name, col.Type)
	}
	c, _ := s.Collation(i)
	return collation.Compare(a, b, c), nil
}

// SameShape reports whether o has the same column count, types and order.
// Names and collations are not part of the shape.
func (s *Schema) SameShape(o *Schema) bool {
	if o == nil || len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i].Type != o.cols[i].Type {
			return false
		}
	}
	return true
}

// Equal reports whether o has identical columns and default collation.
func (s *Schema) Equal(o *Schema) bool {
	if o == nil || s.defaultCollation != o.defaultCollation || len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}
