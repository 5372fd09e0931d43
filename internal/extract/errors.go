package extract

import (
	"errors"

	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/session"
	"github.com/tuannm99/novaextract/internal/storage"
)

var (
	ErrStoreClosed      = errors.New("extract: store is closed")
	ErrDuplicateTable   = errors.New("extract: table already exists")
	ErrTableNotFound    = errors.New("extract: table not found")
	ErrInvalidTableName = errors.New("extract: invalid table name")
	ErrInvalidSchema    = errors.New("extract: schema has no columns")
	ErrRowOutOfRange    = errors.New("extract: row index out of range")
)

// Re-exported so callers of this package need not import the lower layers.
var (
	ErrSchemaMismatch        = record.ErrSchemaMismatch
	ErrStoreLocked           = session.ErrStoreLocked
	ErrSessionNotInitialized = session.ErrSessionNotInitialized
	ErrCorrupt               = storage.ErrCorrupt
)
