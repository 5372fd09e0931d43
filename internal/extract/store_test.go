package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tuannm99/novaextract/internal/collation"
	"github.com/tuannm99/novaextract/internal/metrics"
	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/session"
	"github.com/tuannm99/novaextract/internal/storage"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.Initialize()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sess.Cleanup()) })
	return sess
}

// Purchased DATETIME, Product CHAR_STRING, Price DOUBLE, Quantity INTEGER, Taxed BOOLEAN
func orderSchema(t *testing.T) *record.Schema {
	t.Helper()
	s := record.NewSchema()
	require.NoError(t, s.SetDefaultCollation(collation.EnGB))
	require.NoError(t, s.AddColumn("Purchased", record.TypeDateTime))
	require.NoError(t, s.AddColumn("Product", record.TypeCharString))
	require.NoError(t, s.AddColumn("Price", record.TypeDouble))
	require.NoError(t, s.AddColumn("Quantity", record.TypeInteger))
	require.NoError(t, s.AddColumn("Taxed", record.TypeBoolean))
	return s
}

func insertOrders(t *testing.T, tbl *Table, n int) {
	t.Helper()
	row := record.NewRow(tbl.Definition())
	require.NoError(t, row.SetDateTime(0, 2012, 7, 3, 11, 40, 12, 455))
	require.NoError(t, row.SetCharString(1, "Beans"))
	require.NoError(t, row.SetDouble(2, 1.08))
	for i := 0; i < n; i++ {
		require.NoError(t, row.SetInteger(3, int32(i*10)))
		require.NoError(t, row.SetBoolean(4, i%2 == 1))
		require.NoError(t, tbl.Insert(row))
	}
}

func TestStore_CreateCloseReopen(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	st, err := Open(sess, path)
	require.NoError(t, err)
	assert.True(t, st.Created())
	assert.False(t, st.HasTable(TableName))

	tbl, err := st.CreateTable(TableName, orderSchema(t))
	require.NoError(t, err)
	assert.True(t, st.HasTable(TableName))
	insertOrders(t, tbl, 10)
	assert.Equal(t, uint64(10), tbl.RowCount())
	id := st.ID()
	require.NoError(t, st.Close())

	st, err = Open(sess, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	assert.False(t, st.Created())
	assert.Equal(t, id, st.ID())
	require.True(t, st.HasTable(TableName))
	tbl, err = st.OpenTable(TableName)
	require.NoError(t, err)
	require.Equal(t, uint64(10), tbl.RowCount())

	row, err := tbl.Row(4)
	require.NoError(t, err)
	q, err := row.Integer(3)
	require.NoError(t, err)
	assert.Equal(t, int32(40), q)
	taxed, err := row.Boolean(4)
	require.NoError(t, err)
	assert.False(t, taxed)

	// insertion order is preserved
	var got []int32
	require.NoError(t, tbl.Scan(func(_ uint64, r *record.Row) error {
		v, err := r.Integer(3)
		got = append(got, v)
		return err
	}))
	assert.Equal(t, []int32{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, got)
}

func TestStore_ExtendWithMismatchedRow(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		if err != nil {
			return err
		}
		insertOrders(t, tbl, 10)
		return nil
	}))

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)

		wide := orderSchema(t)
		require.NoError(t, wide.AddColumn("Extra", record.TypeInteger))
		row := record.NewRow(wide)
		err = tbl.Insert(row)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Equal(t, uint64(10), tbl.RowCount())

		// an unset column is rejected the same way
		err = tbl.Insert(record.NewRow(tbl.Definition()))
		require.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Equal(t, uint64(10), tbl.RowCount())
		return nil
	}))

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), tbl.RowCount())
		return nil
	}))
}

func TestStore_SchemaPreservedOnReopen(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	want := orderSchema(t)
	require.NoError(t, want.AddColumnWithCollation("Produkt", record.TypeCharString, collation.De))
	require.NoError(t, want.AddColumn("uProduct", record.TypeUnicodeString))

	require.NoError(t, With(sess, path, func(st *Store) error {
		_, err := st.CreateTable(TableName, want)
		return err
	}))

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)
		got := tbl.Definition()
		assert.True(t, got.Frozen())
		assert.True(t, want.Equal(got))
		c, err := got.Collation(1)
		require.NoError(t, err)
		assert.Equal(t, collation.EnGB, c)
		c, err = got.Collation(5)
		require.NoError(t, err)
		assert.Equal(t, collation.De, c)
		assert.Equal(t, uint64(0), tbl.RowCount())
		return nil
	}))
}

func TestStore_Locked(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	st, err := Open(sess, path)
	require.NoError(t, err)

	_, err = Open(sess, path)
	require.ErrorIs(t, err, ErrStoreLocked)

	require.NoError(t, st.Discard())

	st, err = Open(sess, path)
	require.NoError(t, err)
	require.NoError(t, st.Discard())
}

func TestStore_LockedThroughSymlink(t *testing.T) {
	sess := newSession(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.extract")
	link := filepath.Join(dir, "b.extract")

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 2)
		return nil
	}))
	require.NoError(t, os.Symlink(path, link))

	st, err := Open(sess, path)
	require.NoError(t, err)
	_, err = Open(sess, link)
	require.ErrorIs(t, err, ErrStoreLocked)
	require.NoError(t, st.Discard())

	// writing through the link updates the target and keeps the link
	require.NoError(t, With(sess, link, func(st *Store) error {
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)
		insertOrders(t, tbl, 1)
		return nil
	}))
	fi, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink)

	f, err := storage.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Tables[0].RowCount)
}

func TestStore_WithoutSession(t *testing.T) {
	_, err := Open(nil, filepath.Join(t.TempDir(), "orders.extract"))
	require.ErrorIs(t, err, ErrSessionNotInitialized)
}

func TestStore_CreateTableErrors(t *testing.T) {
	sess := newSession(t)
	st, err := Open(sess, filepath.Join(t.TempDir(), "orders.extract"))
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Discard()) }()

	t.Run("non canonical name", func(t *testing.T) {
		_, err := st.CreateTable("Orders", orderSchema(t))
		require.ErrorIs(t, err, ErrInvalidTableName)
	})

	t.Run("empty schema", func(t *testing.T) {
		_, err := st.CreateTable(TableName, record.NewSchema())
		require.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("duplicate", func(t *testing.T) {
		schema := orderSchema(t)
		_, err := st.CreateTable(TableName, schema)
		require.NoError(t, err)
		require.ErrorIs(t, schema.AddColumn("Late", record.TypeInteger), record.ErrSchemaFrozen)

		_, err = st.CreateTable(TableName, orderSchema(t))
		require.ErrorIs(t, err, ErrDuplicateTable)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := st.OpenTable("Nope")
		require.ErrorIs(t, err, ErrTableNotFound)
	})
}

func TestStore_ClosedStore(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	st, err := Open(sess, path)
	require.NoError(t, err)
	tbl, err := st.CreateTable(TableName, orderSchema(t))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	assert.True(t, st.Closed())
	assert.False(t, st.HasTable(TableName))
	require.ErrorIs(t, st.Close(), ErrStoreClosed)
	require.ErrorIs(t, st.Discard(), ErrStoreClosed)
	require.ErrorIs(t, st.Flush(), ErrStoreClosed)
	_, err = st.OpenTable(TableName)
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = st.CreateTable(TableName, orderSchema(t))
	require.ErrorIs(t, err, ErrStoreClosed)
	require.ErrorIs(t, tbl.Insert(record.NewRow(tbl.Definition())), ErrStoreClosed)

	// reads fail the same way
	_, err = tbl.Row(0)
	require.ErrorIs(t, err, ErrStoreClosed)
	require.ErrorIs(t, tbl.Scan(func(uint64, *record.Row) error { return nil }), ErrStoreClosed)
	assert.Equal(t, uint64(0), tbl.RowCount())
}

func TestStore_FlushKeepsStoreOpen(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	st, err := Open(sess, path)
	require.NoError(t, err)
	tbl, err := st.CreateTable(TableName, orderSchema(t))
	require.NoError(t, err)
	insertOrders(t, tbl, 3)
	require.NoError(t, st.Flush())

	f, err := storage.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Tables, 1)
	assert.Equal(t, uint64(3), f.Tables[0].RowCount)

	insertOrders(t, tbl, 2)
	require.NoError(t, st.Discard())

	// discarded rows never reach disk
	f, err = storage.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Tables[0].RowCount)
}

func failWrites(t *testing.T, err error) {
	t.Helper()
	prev := writeFile
	writeFile = func(string, *storage.File) (int, error) { return 0, err }
	t.Cleanup(func() { writeFile = prev })
}

func TestStore_FailedCloseKeepsPreviousFile(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")
	m := metrics.New(prometheus.NewRegistry())

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 10)
		return nil
	}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	st, err := Open(sess, path, WithMetrics(m))
	require.NoError(t, err)
	tbl, err := st.OpenTable(TableName)
	require.NoError(t, err)
	insertOrders(t, tbl, 5)

	diskFull := errors.New("disk full")
	failWrites(t, diskFull)
	require.ErrorIs(t, st.Flush(), diskFull)
	assert.False(t, st.Closed())

	err = st.Close()
	require.ErrorIs(t, err, diskFull)
	assert.True(t, st.Closed())
	assert.Empty(t, sess.OpenPaths())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flushes.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenStores))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	writeFile = storage.WriteFile
	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), tbl.RowCount())
		return nil
	}))
}

func TestWith_DiscardsOnError(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")
	boom := errors.New("boom")

	err := With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 5)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	assert.Empty(t, sess.OpenPaths())
}

func TestWith_DiscardsOnPanic(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	assert.Panics(t, func() {
		_ = With(sess, path, func(st *Store) error {
			_, err := st.CreateTable(TableName, orderSchema(t))
			require.NoError(t, err)
			panic("midway")
		})
	})

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
	assert.Empty(t, sess.OpenPaths())
}

func TestWith_CallerClosed(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	require.NoError(t, With(sess, path, func(st *Store) error {
		_, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		return st.Close()
	}))
	assert.FileExists(t, path)
}

func TestStore_Compression(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 200)
		return nil
	}, WithCompression(storage.CompressionZstd)))

	f, err := storage.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, storage.CompressionZstd, f.Compression)

	// compression is inherited when not set explicitly
	require.NoError(t, With(sess, path, func(st *Store) error {
		assert.Equal(t, storage.CompressionZstd, st.Compression())
		tbl, err := st.OpenTable(TableName)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), tbl.RowCount())
		row, err := tbl.Row(199)
		require.NoError(t, err)
		q, err := row.Integer(3)
		require.NoError(t, err)
		assert.Equal(t, int32(1990), q)
		return nil
	}))
}

func TestStore_CorruptFile(t *testing.T) {
	sess := newSession(t)
	path := filepath.Join(t.TempDir(), "orders.extract")

	require.NoError(t, With(sess, path, func(st *Store) error {
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 4)
		return nil
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(sess, path)
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, sess.OpenPaths())
}

func TestStore_MaxStringBytes(t *testing.T) {
	sess := newSession(t)
	st, err := Open(sess, filepath.Join(t.TempDir(), "orders.extract"), WithMaxStringBytes(4))
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Discard()) }()

	tbl, err := st.CreateTable(TableName, orderSchema(t))
	require.NoError(t, err)

	row := record.NewRow(tbl.Definition())
	require.NoError(t, row.SetDateTime(0, 2012, 7, 3, 11, 40, 12, 455))
	require.NoError(t, row.SetCharString(1, "Cauliflower"))
	require.NoError(t, row.SetDouble(2, 2.5))
	require.NoError(t, row.SetInteger(3, 1))
	require.NoError(t, row.SetBoolean(4, true))

	require.ErrorIs(t, tbl.Insert(row), record.ErrEncoding)
	assert.Equal(t, uint64(0), tbl.RowCount())
}

func TestStore_MetricsAndLogging(t *testing.T) {
	sess := newSession(t)
	m := metrics.New(prometheus.NewRegistry())
	core, logs := observer.New(zap.InfoLevel)

	err := With(sess, filepath.Join(t.TempDir(), "orders.extract"), func(st *Store) error {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenStores))
		tbl, err := st.CreateTable(TableName, orderSchema(t))
		require.NoError(t, err)
		insertOrders(t, tbl, 3)
		require.Error(t, tbl.Insert(nil))
		return nil
	}, WithMetrics(m), WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsInserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsertErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TablesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenStores))

	for _, msg := range []string{"extract opened", "extract table created", "extract flushed", "extract closed"} {
		assert.Equal(t, 1, logs.FilterMessage(msg).Len(), msg)
	}
}
