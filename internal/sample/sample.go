// Package sample builds the demo order extract: it creates the table on a
// new file or extends the existing one with ten more rows.
package sample

import (
	"fmt"

	"github.com/tuannm99/novaextract/internal/collation"
	"github.com/tuannm99/novaextract/internal/extract"
	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/session"
)

const (
	RowsPerRun     = 10
	SpatialColumn  = "Destination"
	SpatialFeature = "POINT (30 10)"
)

// Result describes one Build run.
type Result struct {
	Created   bool
	Spatial   bool
	Inserted  int
	TotalRows uint64
}

// Schema returns the order table definition. Destination is included only
// when spatial is set.
func Schema(spatial bool) (*record.Schema, error) {
	s := record.NewSchema()
	if err := s.SetDefaultCollation(collation.EnGB); err != nil {
		return nil, err
	}

	cols := []struct {
		name string
		typ  record.TypeTag
	}{
		{"Purchased", record.TypeDateTime},
		{"Product", record.TypeCharString},
		{"uProduct", record.TypeUnicodeString},
		{"Price", record.TypeDouble},
		{"Quantity", record.TypeInteger},
		{"Taxed", record.TypeBoolean},
		{"Expiration Date", record.TypeDate},
	}
	for _, c := range cols {
		if err := s.AddColumn(c.name, c.typ); err != nil {
			return nil, err
		}
	}
	if err := s.AddColumnWithCollation("Produkt", record.TypeCharString, collation.De); err != nil {
		return nil, err
	}
	if spatial {
		if err := s.AddColumn(SpatialColumn, record.TypeSpatial); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenOrCreate returns the Extract table of st, creating it when absent.
// The spatial flag only matters for a new table.
func OpenOrCreate(st *extract.Store, spatial bool) (tbl *extract.Table, created bool, err error) {
	if st.HasTable(extract.TableName) {
		tbl, err = st.OpenTable(extract.TableName)
		return tbl, false, err
	}

	schema, err := Schema(spatial)
	if err != nil {
		return nil, false, err
	}
	tbl, err = st.CreateTable(extract.TableName, schema)
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

// Populate appends RowsPerRun order rows. Destination is filled only when
// the table has that column, whatever the caller asked for.
func Populate(tbl *extract.Table) (spatial bool, err error) {
	def := tbl.Definition()
	row := record.NewRow(def)

	set := []struct {
		name string
		v    any
	}{
		{"Purchased", record.DateTime{Date: record.Date{Year: 2012, Month: 7, Day: 3}, Hour: 11, Minute: 40, Second: 12, Millisecond: 455}},
		{"Product", "Beans"},
		{"uProduct", "uniBeans"},
		{"Price", 1.08},
		{"Expiration Date", record.Date{Year: 2029, Month: 1, Day: 1}},
		{"Produkt", "Bohnen"},
	}
	for _, c := range set {
		if err := row.SetByName(c.name, c.v); err != nil {
			return false, err
		}
	}

	if i, err := def.Index(SpatialColumn); err == nil {
		if err := row.SetSpatial(i, SpatialFeature); err != nil {
			return false, err
		}
		spatial = true
	}

	qty, err := def.Index("Quantity")
	if err != nil {
		return false, err
	}
	taxed, err := def.Index("Taxed")
	if err != nil {
		return false, err
	}

	for i := 0; i < RowsPerRun; i++ {
		if err := row.SetInteger(qty, int32(i*10)); err != nil {
			return false, err
		}
		if err := row.SetBoolean(taxed, i%2 == 1); err != nil {
			return false, err
		}
		if err := tbl.Insert(row); err != nil {
			return false, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return spatial, nil
}

// Build opens or creates filename, populates it and closes it. A failed
// run leaves the file as it was.
func Build(sess *session.Session, filename string, spatial bool, opts ...extract.Option) (*Result, error) {
	res := &Result{}
	err := extract.With(sess, filename, func(st *extract.Store) error {
		tbl, created, err := OpenOrCreate(st, spatial)
		if err != nil {
			return err
		}
		res.Created = created

		if res.Spatial, err = Populate(tbl); err != nil {
			return err
		}
		res.Inserted = RowsPerRun
		res.TotalRows = tbl.RowCount()
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}
