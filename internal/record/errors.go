package record

import "errors"

var (
	ErrDuplicateColumn = errors.New("record: duplicate column")
	ErrInvalidType     = errors.New("record: invalid type")
	ErrSchemaFrozen    = errors.New("record: schema is frozen")
	ErrSchemaMismatch  = errors.New("record: row does not match schema")
	ErrTypeMismatch    = errors.New("record: type mismatch")
	ErrIndexOutOfRange = errors.New("record: column index out of range")
	ErrColumnNotFound  = errors.New("record: column not found")
	ErrColumnUnset     = errors.New("record: column value not set")
	ErrEncoding        = errors.New("record: value cannot be encoded")
	ErrBadBuffer       = errors.New("record: buffer underflow/overflow")
)
