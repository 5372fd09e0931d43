// Package extract is the single-writer extract store: open or create a
// file, define its table, append typed rows and flush them durably.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tuannm99/novaextract/internal/catalog"
	"github.com/tuannm99/novaextract/internal/metrics"
	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/session"
	"github.com/tuannm99/novaextract/internal/storage"
)

// TableName is the only table name an extract accepts.
const TableName = "Extract"

// writeFile is replaced in tests to simulate a failing disk.
var writeFile = storage.WriteFile

// Store is an open extract file. It holds the session handle for its path
// from Open until Close or Discard.
type Store struct {
	mu sync.Mutex

	path        string
	file        string // path with symlinks resolved; reads and writes go here
	id          uuid.UUID
	release     func()
	closed      bool
	created     bool
	compression storage.Compression
	enc         record.Encoder

	tables []*Table
	byName map[string]*Table

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Open acquires path within sess and loads it. A missing file yields an
// empty store; nothing is written until Flush or Close.
func Open(sess *session.Session, path string, opts ...Option) (*Store, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = sess.Logger()
	}

	release, err := sess.Acquire(path)
	if err != nil {
		return nil, err
	}
	file, err := session.ResolvePath(path)
	if err != nil {
		release()
		return nil, err
	}

	s := &Store{
		path:        path,
		file:        file,
		release:     release,
		compression: o.compression,
		enc:         record.Encoder{MaxStringBytes: o.maxStringBytes},
		byName:      make(map[string]*Table),
		logger:      o.logger.With(zap.String("path", path)),
		metrics:     o.metrics,
	}

	f, err := storage.ReadFile(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.id = uuid.New()
		s.created = true
	case err != nil:
		release()
		return nil, err
	default:
		if err := s.load(f); err != nil {
			release()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !o.compressionSet {
			s.compression = f.Compression
		}
	}

	s.metrics.StoreOpened()
	s.logger.Info("extract opened",
		zap.Stringer("id", s.id),
		zap.Bool("created", s.created),
		zap.Strings("tables", s.tableNames()),
	)
	return s, nil
}

// With opens path, runs fn and closes the store when fn succeeds. When fn
// fails or panics the store is discarded, so nothing from the failed run
// reaches disk and the handle is always released.
func With(sess *session.Session, path string, fn func(*Store) error, opts ...Option) (err error) {
	s, err := Open(sess, path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.discardIfOpen()
			panic(p)
		}
	}()

	if err := fn(s); err != nil {
		return multierr.Append(err, s.discardIfOpen())
	}
	if s.Closed() {
		return nil
	}
	return s.Close()
}

func (s *Store) load(f *storage.File) error {
	s.id = f.ID
	for _, b := range f.Tables {
		if _, dup := s.byName[b.Name]; dup {
			return fmt.Errorf("%w: table %q stored twice", storage.ErrCorrupt, b.Name)
		}
		schema, err := catalog.DecodeSchema(b.Schema)
		if err != nil {
			return fmt.Errorf("%w: table %q: %w", storage.ErrCorrupt, b.Name, err)
		}
		recs, err := storage.SplitFrames(b.Rows, b.RowCount)
		if err != nil {
			return fmt.Errorf("table %q: %w", b.Name, err)
		}
		for i, rec := range recs {
			if _, err := record.DecodeRow(schema, rec); err != nil {
				return fmt.Errorf("%w: table %q row %d: %w", storage.ErrCorrupt, b.Name, i, err)
			}
		}
		s.addTable(newTable(s, b.Name, schema, recs))
	}
	return nil
}

func (s *Store) addTable(t *Table) {
	s.tables = append(s.tables, t)
	s.byName[t.name] = t
}

func (s *Store) tableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.name
	}
	return names
}

func (s *Store) Path() string { return s.path }

func (s *Store) ID() uuid.UUID { return s.id }

// Created reports whether Open found no file at the path.
func (s *Store) Created() bool { return s.created }

func (s *Store) Compression() storage.Compression { return s.compression }

func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HasTable reports whether the store holds a table called name. A closed
// store has no tables.
func (s *Store) HasTable(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	_, ok := s.byName[name]
	return ok
}

// TableNames lists tables in creation order.
func (s *Store) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.tableNames()
}

// CreateTable binds schema to a new table and freezes it. The caller must
// not expect to add columns afterwards.
func (s *Store) CreateTable(name string, schema *record.Schema) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if name != TableName {
		return nil, fmt.Errorf("%w: %q, want %q", ErrInvalidTableName, name, TableName)
	}
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, name)
	}
	if schema == nil || schema.NumCols() == 0 {
		return nil, ErrInvalidSchema
	}

	schema.Freeze()
	t := newTable(s, name, schema, nil)
	s.addTable(t)

	s.metrics.TableCreated()
	s.logger.Info("extract table created", zap.String("table", name), zap.Int("columns", schema.NumCols()))
	return t, nil
}

func (s *Store) OpenTable(name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	t, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return t, nil
}

// Flush writes every table to disk and keeps the store open.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	start := time.Now()
	n, err := s.writeLocked()
	took := time.Since(start)
	s.metrics.Flushed(n, took, err)
	if err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}

	s.logger.Info("extract flushed",
		zap.Int("bytes", n),
		zap.Uint64("rows", s.rowCountLocked()),
		zap.Duration("took", took),
	)
	return nil
}

func (s *Store) writeLocked() (int, error) {
	f := &storage.File{
		ID:          s.id,
		Compression: s.compression,
		Tables:      make([]storage.TableBlock, 0, len(s.tables)),
	}
	for _, t := range s.tables {
		b, err := t.block()
		if err != nil {
			return 0, err
		}
		f.Tables = append(f.Tables, b)
	}
	return writeFile(s.file, f)
}

func (s *Store) rowCountLocked() uint64 {
	var n uint64
	for _, t := range s.tables {
		n += uint64(len(t.records))
	}
	return n
}

// Close flushes the store and releases its handle. The handle is released
// even when the flush fails; the file on disk then keeps its previous
// content.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	err := s.flushLocked()
	s.releaseLocked()
	s.logger.Info("extract closed", zap.Bool("flushed", err == nil))
	return err
}

// Discard releases the handle without writing anything.
func (s *Store) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.releaseLocked()
	s.logger.Info("extract discarded")
	return nil
}

func (s *Store) discardIfOpen() error {
	if s.Closed() {
		return nil
	}
	return s.Discard()
}

func (s *Store) releaseLocked() {
	s.closed = true
	s.release()
	s.metrics.StoreReleased()
}
