package record

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/tuannm99/novaextract/internal/alias/bx"
)

// DefaultMaxStringBytes caps the encoded payload of a single string value.
const DefaultMaxStringBytes = math.MaxUint16

// CHAR_STRING columns use a single byte per character, UNICODE_STRING
// columns use UTF-16LE code units.
var (
	charCharset    = charmap.ISO8859_1
	unicodeCharset = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// Encoder turns scalar values into their on-disk representation.
// The zero value uses DefaultMaxStringBytes.
type Encoder struct {
	MaxStringBytes int
}

func (e Encoder) maxString() int {
	if e.MaxStringBytes <= 0 {
		return DefaultMaxStringBytes
	}
	return e.MaxStringBytes
}

// EncodeValue encodes a single value of type t. Fixed width types produce
// exactly t.Width() bytes, variable width types a u32 length prefix plus
// payload.
func (e Encoder) EncodeValue(t TypeTag, v any) ([]byte, error) {
	return e.appendValue(nil, t, v)
}

func (e Encoder) appendValue(dst []byte, t TypeTag, v any) ([]byte, error) {
	if err := checkGoType(t, v); err != nil {
		return nil, err
	}

	switch t {
	case TypeInteger:
		return bx.LE.AppendUint32(dst, uint32(v.(int32))), nil

	case TypeDouble:
		return bx.LE.AppendUint64(dst, math.Float64bits(v.(float64))), nil

	case TypeBoolean:
		if v.(bool) {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil

	case TypeDate:
		d := v.(Date)
		if err := validateDate(d); err != nil {
			return nil, err
		}
		return appendDate(dst, d), nil

	case TypeDateTime:
		dt := v.(DateTime)
		if err := validateDateTime(dt); err != nil {
			return nil, err
		}
		dst = appendDate(dst, dt.Date)
		dst = append(dst, uint8(dt.Hour), uint8(dt.Minute), uint8(dt.Second))
		return bx.LE.AppendUint16(dst, uint16(dt.Millisecond)), nil

	case TypeCharString:
		if !utf8.ValidString(v.(string)) {
			return nil, fmt.Errorf("%w: invalid UTF-8 in char string", ErrEncoding)
		}
		payload, err := charCharset.NewEncoder().Bytes([]byte(v.(string)))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not representable in %s", ErrEncoding, v, charCharset)
		}
		return e.appendVar(dst, payload)

	case TypeUnicodeString:
		s := v.(string)
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid UTF-8 in unicode string", ErrEncoding)
		}
		payload, err := unicodeCharset.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return e.appendVar(dst, payload)

	case TypeSpatial:
		s := v.(string)
		if err := ValidateWKT(s); err != nil {
			return nil, err
		}
		return e.appendVar(dst, []byte(s))

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, t)
	}
}

func (e Encoder) appendVar(dst, payload []byte) ([]byte, error) {
	if len(payload) > e.maxString() {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrEncoding, len(payload), e.maxString())
	}
	dst = bx.LE.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

func appendDate(dst []byte, d Date) []byte {
	dst = bx.LE.AppendUint16(dst, uint16(int16(d.Year)))
	return append(dst, uint8(d.Month), uint8(d.Day))
}

// DecodeValue decodes one value of type t from the front of b and reports
// how many bytes it consumed.
func DecodeValue(t TypeTag, b []byte) (any, int, error) {
	if w := t.Width(); w > 0 && len(b) < w {
		return nil, 0, ErrBadBuffer
	}

	switch t {
	case TypeInteger:
		return int32(bx.U32(b)), widthInteger, nil

	case TypeDouble:
		return math.Float64frombits(bx.U64(b)), widthDouble, nil

	case TypeBoolean:
		return b[0] != 0, widthBoolean, nil

	case TypeDate:
		d := readDate(b)
		if err := validateDate(d); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrBadBuffer, err)
		}
		return d, widthDate, nil

	case TypeDateTime:
		dt := DateTime{
			Date:        readDate(b),
			Hour:        int(b[4]),
			Minute:      int(b[5]),
			Second:      int(b[6]),
			Millisecond: int(bx.U16(b[7:9])),
		}
		if err := validateDateTime(dt); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrBadBuffer, err)
		}
		return dt, widthDateTime, nil

	case TypeCharString, TypeUnicodeString, TypeSpatial:
		if len(b) < lenPrefix {
			return nil, 0, ErrBadBuffer
		}
		l := int(bx.U32(b))
		if l < 0 || lenPrefix+l > len(b) {
			return nil, 0, ErrBadBuffer
		}
		s, err := decodeString(t, b[lenPrefix:lenPrefix+l])
		if err != nil {
			return nil, 0, err
		}
		return s, lenPrefix + l, nil

	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidType, t)
	}
}

func decodeString(t TypeTag, payload []byte) (string, error) {
	switch t {
	case TypeCharString:
		out, err := charCharset.NewDecoder().Bytes(payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadBuffer, err)
		}
		return string(out), nil
	case TypeUnicodeString:
		if len(payload)%2 != 0 {
			return "", fmt.Errorf("%w: odd UTF-16 payload", ErrBadBuffer)
		}
		out, err := unicodeCharset.NewDecoder().Bytes(payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadBuffer, err)
		}
		return string(out), nil
	default:
		return string(payload), nil
	}
}

func readDate(b []byte) Date {
	return Date{
		Year:  int(int16(bx.U16(b[0:2]))),
		Month: int(b[2]),
		Day:   int(b[3]),
	}
}

func validateDate(d Date) error {
	if d.Year < 1 || d.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrEncoding, d.Year)
	}
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrEncoding, d.Month)
	}
	// day 0 of the next month is the last day of this one
	last := time.Date(d.Year, time.Month(d.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d.Day < 1 || d.Day > last {
		return fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrEncoding, d.Day, d.Year, d.Month)
	}
	return nil
}

func validateDateTime(dt DateTime) error {
	if err := validateDate(dt.Date); err != nil {
		return err
	}
	switch {
	case dt.Hour < 0 || dt.Hour > 23:
		return fmt.Errorf("%w: hour %d out of range", ErrEncoding, dt.Hour)
	case dt.Minute < 0 || dt.Minute > 59:
		return fmt.Errorf("%w: minute %d out of range", ErrEncoding, dt.Minute)
	case dt.Second < 0 || dt.Second > 59:
		return fmt.Errorf("%w: second %d out of range", ErrEncoding, dt.Second)
	case dt.Millisecond < 0 || dt.Millisecond > 999:
		return fmt.Errorf("%w: millisecond %d out of range", ErrEncoding, dt.Millisecond)
	}
	return nil
}

// checkGoType verifies that v carries the Go type used for t.
func checkGoType(t TypeTag, v any) error {
	ok := false
	switch t {
	case TypeInteger:
		_, ok = v.(int32)
	case TypeDouble:
		_, ok = v.(float64)
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeDate:
		_, ok = v.(Date)
	case TypeDateTime:
		_, ok = v.(DateTime)
	case TypeCharString, TypeUnicodeString, TypeSpatial:
		_, ok = v.(string)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidType, t)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a %s value", ErrTypeMismatch, v, t)
	}
	return nil
}
