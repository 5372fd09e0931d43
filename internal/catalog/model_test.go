package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaextract/internal/collation"
	"github.com/tuannm99/novaextract/internal/record"
)

func TestSchemaBlock_RoundTrip(t *testing.T) {
	s := record.NewSchema()
	require.NoError(t, s.SetDefaultCollation(collation.EnGB))
	require.NoError(t, s.AddColumn("Purchased", record.TypeDateTime))
	require.NoError(t, s.AddColumn("Product", record.TypeCharString))
	require.NoError(t, s.AddColumnWithCollation("Produkt", record.TypeCharString, collation.De))
	require.NoError(t, s.AddColumn("Destination", record.TypeSpatial))

	b, err := EncodeSchema(s)
	require.NoError(t, err)

	got, err := DecodeSchema(b)
	require.NoError(t, err)
	assert.True(t, got.Frozen())
	assert.True(t, s.Equal(got))
	assert.Equal(t, s.Columns(), got.Columns())
	assert.Equal(t, collation.EnGB, got.DefaultCollation())
}

func TestSchemaBlock_Layout(t *testing.T) {
	s := record.NewSchema()
	require.NoError(t, s.AddColumnWithCollation("ab", record.TypeCharString, collation.De))

	b, err := EncodeSchema(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0,    // default collation
		1, 0, // one column
		2, 0, 'a', 'b', // name
		byte(record.TypeCharString),
		byte(collation.De),
	}, b)
}

func TestSchemaBlock_Corrupt(t *testing.T) {
	s := record.NewSchema()
	require.NoError(t, s.AddColumn("Quantity", record.TypeInteger))
	good, err := EncodeSchema(s)
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeSchema(good[:len(good)-1])
		require.ErrorIs(t, err, ErrBadSchemaBlock)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[len(bad)-2] = 0xEE
		_, err := DecodeSchema(bad)
		require.ErrorIs(t, err, ErrBadSchemaBlock)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodeSchema(append(append([]byte(nil), good...), 0))
		require.ErrorIs(t, err, ErrBadSchemaBlock)
	})

	t.Run("duplicate column", func(t *testing.T) {
		dup := record.NewSchema()
		require.NoError(t, dup.AddColumn("a", record.TypeInteger))
		b, err := EncodeSchema(dup)
		require.NoError(t, err)
		// count 2, then the same column twice
		b[1] = 2
		b = append(b, b[3:]...)
		_, err = DecodeSchema(b)
		require.ErrorIs(t, err, ErrBadSchemaBlock)
	})
}
