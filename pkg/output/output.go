// Package output renders query results as a text table, json lines or csv.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/umputun/hostquery/pkg/table"
)

// supported formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Formats lists supported formats
var Formats = []string{FormatTable, FormatJSON, FormatCSV}

// Write renders columns and rows to w in the given format. Empty format is a table.
func Write(w io.Writer, format string, columns []string, rows [][]table.Value) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return writeTable(w, columns, rows)
	case FormatJSON:
		return writeJSON(w, columns, rows)
	case FormatCSV:
		return writeCSV(w, columns, rows)
	}
	return fmt.Errorf("unknown output format %q, supported: %s", format, strings.Join(Formats, ", "))
}

// writeTable makes a borderless table with "(N rows)" footer, nulls are empty cells
func writeTable(w io.Writer, columns []string, rows [][]table.Value) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.AppendBulk(strRows(columns, rows))
	tw.Render()
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return err
}

// writeJSON makes one object per row, keys follow column order
func writeJSON(w io.Writer, columns []string, rows [][]table.Value) error {
	buf := bytes.Buffer{}
	for _, row := range rows {
		buf.Reset()
		buf.WriteByte('{')
		for i, col := range columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return fmt.Errorf("can't marshal column %q: %w", col, err)
			}
			var val any
			if i < len(row) {
				val = row[i].Any()
			}
			data, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("can't marshal %s value: %w", col, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(data)
		}
		buf.WriteString("}\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("can't write json row: %w", err)
		}
	}
	return nil
}

func writeCSV(w io.Writer, columns []string, rows [][]table.Value) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("can't write csv header: %w", err)
	}
	if err := cw.WriteAll(strRows(columns, rows)); err != nil {
		return fmt.Errorf("can't write csv rows: %w", err)
	}
	return nil
}

func strRows(columns []string, rows [][]table.Value) [][]string {
	res := make([][]string, 0, len(rows))
	for _, row := range rows {
		rec := make([]string, len(columns))
		for i := range rec {
			if i < len(row) {
				rec[i] = row[i].String()
			}
		}
		res = append(res, rec)
	}
	return res
}
