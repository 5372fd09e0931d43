package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/tuannm99/novaextract/internal/extract"
	"github.com/tuannm99/novaextract/internal/session"
)

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the tables, columns and row counts of an extract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := session.Initialize(session.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, sess.Cleanup()) }()

			st, err := extract.Open(sess, args[0], extract.WithLogger(a.logger))
			if err != nil {
				return err
			}
			// read only: never rewrite the file
			defer func() { err = multierr.Append(err, st.Discard()) }()

			if st.Created() {
				return fmt.Errorf("%s: no such extract", args[0])
			}
			return printStore(cmd.OutOrStdout(), st)
		},
	}
}

func printStore(w io.Writer, st *extract.Store) error {
	fmt.Fprintf(w, "extract %s\nid %s\ncompression %s\n", st.Path(), st.ID(), st.Compression())

	for _, name := range st.TableNames() {
		tbl, err := st.OpenTable(name)
		if err != nil {
			return err
		}
		def := tbl.Definition()
		fmt.Fprintf(w, "\ntable %s: %d rows, default collation %s\n", name, tbl.RowCount(), def.DefaultCollation())

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tTYPE\tCOLLATION")
		for i, col := range def.Columns() {
			coll := "-"
			if col.Type.IsString() {
				c, err := def.Collation(i)
				if err != nil {
					return err
				}
				coll = c.String()
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, col.Name, col.Type, coll)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
