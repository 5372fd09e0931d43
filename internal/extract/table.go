package extract

import (
	"fmt"

	"github.com/tuannm99/novaextract/internal/catalog"
	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/storage"
)

// Table is an append-only sequence of rows sharing one frozen schema.
// Tables are owned by their Store and share its lock.
type Table struct {
	store  *Store
	name   string
	schema *record.Schema

	// one encoded record per row, in insertion order
	records [][]byte
}

func newTable(s *Store, name string, schema *record.Schema, records [][]byte) *Table {
	return &Table{
		store:   s,
		name:    name,
		schema:  schema,
		records: records,
	}
}

func (t *Table) Name() string { return t.name }

// Definition returns the frozen schema of the table.
func (t *Table) Definition() *record.Schema { return t.schema }

// RowCount is 0 once the store is closed, like HasTable reporting no tables.
func (t *Table) RowCount() uint64 {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return 0
	}
	return uint64(len(t.records))
}

// Insert appends the current values of r. The row is encoded in full
// before anything is appended, so on error the table is unchanged.
func (t *Table) Insert(r *record.Row) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if r == nil || !r.Matches(t.schema) {
		s.metrics.InsertFailed()
		return fmt.Errorf("%w: table %q", ErrSchemaMismatch, t.name)
	}

	rec, err := s.enc.EncodeRow(r)
	if err != nil {
		s.metrics.InsertFailed()
		return fmt.Errorf("insert into %q: %w", t.name, err)
	}
	t.records = append(t.records, rec)
	s.metrics.RowInserted()
	return nil
}

// Row decodes row i.
func (t *Table) Row(i uint64) (*record.Row, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}
	if i >= uint64(len(t.records)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, i, len(t.records))
	}
	return record.DecodeRow(t.schema, t.records[i])
}

// Scan decodes every row in order and stops at the first error from fn.
// fn must not call back into the table.
func (t *Table) Scan(fn func(i uint64, r *record.Row) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return ErrStoreClosed
	}
	for i, rec := range t.records {
		r, err := record.DecodeRow(t.schema, rec)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := fn(uint64(i), r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) block() (storage.TableBlock, error) {
	schema, err := catalog.EncodeSchema(t.schema)
	if err != nil {
		return storage.TableBlock{}, err
	}

	size := 0
	for _, rec := range t.records {
		size += 4 + len(rec)
	}
	rows := make([]byte, 0, size)
	for _, rec := range t.records {
		if rows, err = storage.AppendFrame(rows, rec); err != nil {
			return storage.TableBlock{}, err
		}
	}

	return storage.TableBlock{
		Name:     t.name,
		Schema:   schema,
		Rows:     rows,
		RowCount: uint64(len(t.records)),
	}, nil
}
