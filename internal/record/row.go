package record

import (
	"fmt"
	"math"
)

// Row is a reusable builder for one record. It snapshots the shape of the
// schema it was built from, so it can be validated without a table. Values
// stay in place between inserts until they are overwritten or Reset.
type Row struct {
	cols   []Column
	index  map[string]int
	values []any
}

func NewRow(s *Schema) *Row {
	cols := s.Columns()
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Name] = i
	}
	return &Row{
		cols:   cols,
		index:  index,
		values: make([]any, len(cols)),
	}
}

func (r *Row) NumCols() int { return len(r.cols) }

// Matches reports whether the row has the column count, types and order of s.
func (r *Row) Matches(s *Schema) bool {
	if s == nil || len(r.cols) != s.NumCols() {
		return false
	}
	for i, c := range r.cols {
		if s.cols[i].Type != c.Type {
			return false
		}
	}
	return true
}

func (r *Row) Index(name string) (int, error) {
	i, ok := r.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i, nil
}

func (r *Row) column(i int, t TypeTag) error {
	if i < 0 || i >= len(r.cols) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(r.cols))
	}
	if r.cols[i].Type != t {
		return fmt.Errorf("%w: column %q is %s, not %s", ErrTypeMismatch, r.cols[i].Name, r.cols[i].Type, t)
	}
	return nil
}

func (r *Row) set(i int, t TypeTag, v any) error {
	if err := r.column(i, t); err != nil {
		return err
	}
	r.values[i] = v
	return nil
}

func (r *Row) SetDateTime(i, year, month, day, hour, minute, second, millisecond int) error {
	return r.set(i, TypeDateTime, DateTime{
		Date:        Date{Year: year, Month: month, Day: day},
		Hour:        hour,
		Minute:      minute,
		Second:      second,
		Millisecond: millisecond,
	})
}

func (r *Row) SetCharString(i int, s string) error { return r.set(i, TypeCharString, s) }

// SetString sets a UNICODE_STRING column.
func (r *Row) SetString(i int, s string) error { return r.set(i, TypeUnicodeString, s) }

func (r *Row) SetDouble(i int, v float64) error { return r.set(i, TypeDouble, v) }

func (r *Row) SetInteger(i int, v int32) error { return r.set(i, TypeInteger, v) }

func (r *Row) SetBoolean(i int, v bool) error { return r.set(i, TypeBoolean, v) }

func (r *Row) SetDate(i, year, month, day int) error {
	return r.set(i, TypeDate, Date{Year: year, Month: month, Day: day})
}

// SetSpatial sets a SPATIAL column from well-known text.
func (r *Row) SetSpatial(i int, wkt string) error { return r.set(i, TypeSpatial, wkt) }

// SetByName sets a column by name. v must carry the Go type of the column
// (int32, float64, bool, string, Date, DateTime); plain ints are accepted
// for INTEGER columns when they fit in 32 bits.
func (r *Row) SetByName(name string, v any) error {
	i, err := r.Index(name)
	if err != nil {
		return err
	}
	t := r.cols[i].Type
	if n, ok := v.(int); ok && t == TypeInteger {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return fmt.Errorf("%w: %d overflows INTEGER column %q", ErrEncoding, n, name)
		}
		v = int32(n)
	}
	if err := checkGoType(t, v); err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	return r.set(i, t, v)
}

// Reset clears every value.
func (r *Row) Reset() {
	for i := range r.values {
		r.values[i] = nil
	}
}

func (r *Row) IsSet(i int) bool {
	return i >= 0 && i < len(r.values) && r.values[i] != nil
}

// Values returns a copy of the current values; unset columns are nil.
func (r *Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

func (r *Row) get(i int, t TypeTag) (any, error) {
	if err := r.column(i, t); err != nil {
		return nil, err
	}
	if r.values[i] == nil {
		return nil, fmt.Errorf("%w: %q", ErrColumnUnset, r.cols[i].Name)
	}
	return r.values[i], nil
}

func (r *Row) DateTime(i int) (DateTime, error) {
	v, err := r.get(i, TypeDateTime)
	if err != nil {
		return DateTime{}, err
	}
	return v.(DateTime), nil
}

func (r *Row) CharString(i int) (string, error) {
	v, err := r.get(i, TypeCharString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// UnicodeString reads a UNICODE_STRING column.
func (r *Row) UnicodeString(i int) (string, error) {
	v, err := r.get(i, TypeUnicodeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Row) Double(i int) (float64, error) {
	v, err := r.get(i, TypeDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (r *Row) Integer(i int) (int32, error) {
	v, err := r.get(i, TypeInteger)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (r *Row) Boolean(i int) (bool, error) {
	v, err := r.get(i, TypeBoolean)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (r *Row) Date(i int) (Date, error) {
	v, err := r.get(i, TypeDate)
	if err != nil {
		return Date{}, err
	}
	return v.(Date), nil
}

func (r *Row) Spatial(i int) (string, error) {
	v, err := r.get(i, TypeSpatial)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
