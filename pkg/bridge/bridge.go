// Package bridge adapts the table registry to sqlite virtual table protocol. Every query
// scanning a virtual table triggers a fresh collection of all rows, no constraints are pushed
// down and filtering is left to the engine.
package bridge

import (
	"fmt"
	"log"
	"strings"

	"modernc.org/sqlite/vtab"

	"github.com/umputun/hostquery/pkg/table"
)

// ArgTableName is the module argument selecting a registry table
const ArgTableName = "table_name"

// fullScanCost is reported for every plan, no index is ever used
const fullScanCost = 1e6

// Source provides catalogs and rows by table name, implemented by registry.Registry
type Source interface {
	Catalog(name string) (*table.Catalog, bool)
	Rows(name string) []table.Row
}

// Module implements vtab.Module for all tables of the source
type Module struct {
	src Source
}

// NewModule makes a module serving tables of src
func NewModule(src Source) *Module {
	return &Module{src: src}
}

// Create declares virtual table schema, called for CREATE VIRTUAL TABLE
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

// Connect is the same as Create, virtual tables have no backing storage
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	name, err := tableNameArg(args)
	if err != nil {
		return nil, err
	}
	catalog, ok := m.src.Catalog(name)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	ddl, err := table.Schema(catalog)
	if err != nil {
		return nil, fmt.Errorf("can't make schema for %q: %w", name, err)
	}
	if err := ctx.Declare(ddl); err != nil {
		return nil, fmt.Errorf("can't declare schema for %q: %w", name, err)
	}
	log.Printf("[DEBUG] virtual table %s connected, %s", name, ddl)
	return &Table{name: name, catalog: catalog, src: m.src}, nil
}

// tableNameArg finds table_name=<name> in module arguments. args are
// [module, database, table, module args...]
func tableNameArg(args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("unexpected module arguments %v", args)
	}
	for _, arg := range args[3:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) != ArgTableName {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		if v == "" {
			break
		}
		return v, nil
	}
	return "", fmt.Errorf("missing %s argument for virtual table %q", ArgTableName, args[2])
}

// Table is a connected virtual table
type Table struct {
	name    string
	catalog *table.Catalog
	src     Source
}

// BestIndex accepts any plan as a full scan and consumes no constraints
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	info.IdxNum = 0
	info.EstimatedCost = fullScanCost
	info.OrderByConsumed = false
	return nil
}

// Open makes a cursor bound to the table
func (t *Table) Open() (vtab.Cursor, error) {
	return &Cursor{tbl: t}, nil
}

// Disconnect does nothing, tables hold no resources
func (t *Table) Disconnect() error { return nil }

// Destroy does nothing, tables hold no resources
func (t *Table) Destroy() error { return nil }

// Cursor iterates over rows materialized by Filter
type Cursor struct {
	tbl  *Table
	rows []table.Row
	pos  int
}

// Filter collects all rows of the table and rewinds the cursor
func (c *Cursor) Filter(_ int, _ string, _ []vtab.Value) error {
	c.rows = c.tbl.src.Rows(c.tbl.name)
	c.pos = 0
	return nil
}

// Next advances to the next row
func (c *Cursor) Next() error {
	c.pos++
	return nil
}

// Eof reports whether all rows are consumed
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns cell of the current row
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.Eof() {
		return nil, fmt.Errorf("cursor of %s is past the last row", c.tbl.name)
	}
	return c.tbl.catalog.Value(c.rows[c.pos], table.ColumnID(col)).DriverValue(), nil
}

// Rowid is 1-based row position
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos) + 1, nil }

// Close drops materialized rows
func (c *Cursor) Close() error {
	c.rows = nil
	return nil
}
