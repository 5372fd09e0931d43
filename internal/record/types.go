package record

import (
	"fmt"
	"strings"
)

// TypeTag is the one byte column type persisted in the schema block.
type TypeTag uint8

const (
	TypeDateTime TypeTag = iota + 1
	TypeCharString
	TypeUnicodeString
	TypeDouble
	TypeInteger
	TypeBoolean
	TypeDate
	TypeSpatial
)

// Fixed slot sizes inside a row record.
const (
	widthInteger  = 4
	widthDouble   = 8
	widthBoolean  = 1
	widthDate     = 4 // i16 year, u8 month, u8 day
	widthDateTime = 9 // date + u8 hour, u8 minute, u8 second, u16 millisecond
	lenPrefix     = 4 // u32 length in front of variable payloads
)

var typeNames = map[TypeTag]string{
	TypeDateTime:      "DATETIME",
	TypeCharString:    "CHAR_STRING",
	TypeUnicodeString: "UNICODE_STRING",
	TypeDouble:        "DOUBLE",
	TypeInteger:       "INTEGER",
	TypeBoolean:       "BOOLEAN",
	TypeDate:          "DATE",
	TypeSpatial:       "SPATIAL",
}

func (t TypeTag) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TYPE(%d)", uint8(t))
}

func (t TypeTag) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Fixed reports whether values of t occupy a fixed slot in the record.
func (t TypeTag) Fixed() bool {
	return t.Width() > 0
}

// Width is the fixed slot size of t, or 0 for variable width types.
func (t TypeTag) Width() int {
	switch t {
	case TypeInteger:
		return widthInteger
	case TypeDouble:
		return widthDouble
	case TypeBoolean:
		return widthBoolean
	case TypeDate:
		return widthDate
	case TypeDateTime:
		return widthDateTime
	default:
		return 0
	}
}

// IsString reports whether columns of t may carry a collation.
func (t TypeTag) IsString() bool {
	return t == TypeCharString || t == TypeUnicodeString
}

func ParseTypeTag(name string) (TypeTag, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for t, s := range typeNames {
		if s == n {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidType, name)
}

// Date is a calendar date without time zone.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// DateTime is a calendar date plus wall clock time with millisecond precision.
type DateTime struct {
	Date
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%s %02d:%02d:%02d.%03d",
		dt.Date, dt.Hour, dt.Minute, dt.Second, dt.Millisecond)
}
