// Package table provides the generic table abstraction: typed cell values, column catalogs,
// positional column addressing, projections and the DDL generator used to declare virtual tables.
// Concrete row types never get inspected with reflection, every table kind exposes its catalog
// and each row answers Value(id) for the ids of that catalog.
package table

import "fmt"

// SQL type strings used in catalogs. The leading space is part of the type, DDL is rendered
// as quoted name immediately followed by the type.
const (
	TypeInteger = " INTEGER"
	TypeReal    = " REAL"
	TypeText    = " TEXT"
	TypeBlob    = " BLOB"
)

// ColumnID is a positional column identifier, valid only for the catalog it was obtained from
type ColumnID int

// NoColumn is returned for unknown column names
const NoColumn ColumnID = -1

// Column defines a single column of a catalog
type Column struct {
	Name string
	Type string
}

// Row is a single row of some table kind, addressable only by column id
type Row interface {
	Value(id ColumnID) Value
}

// RowFunc adapts a function to Row interface
type RowFunc func(id ColumnID) Value

// Value returns the cell for id
func (f RowFunc) Value(id ColumnID) Value { return f(id) }

// Catalog is immutable column metadata of one table kind
type Catalog struct {
	names []string
	types []string
	index map[string]ColumnID
}

// NewCatalog makes a catalog from ordered columns. Duplicated or empty names are programming
// errors and cause panic, catalogs are built once at package init.
func NewCatalog(cols ...Column) *Catalog {
	res := &Catalog{
		names: make([]string, 0, len(cols)),
		types: make([]string, 0, len(cols)),
		index: make(map[string]ColumnID, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" {
			panic(fmt.Sprintf("empty column name at position %d", i))
		}
		if _, dup := res.index[c.Name]; dup {
			panic(fmt.Sprintf("duplicate column %q", c.Name))
		}
		res.names = append(res.names, c.Name)
		res.types = append(res.types, c.Type)
		res.index[c.Name] = ColumnID(i)
	}
	return res
}

// Names returns ordered column names
func (c *Catalog) Names() []string {
	return append([]string{}, c.names...)
}

// Types returns ordered sql types, index-aligned with Names
func (c *Catalog) Types() []string {
	return append([]string{}, c.types...)
}

// Len returns number of columns
func (c *Catalog) Len() int { return len(c.names) }

// ID resolves column name, exact and case-sensitive. Returns NoColumn if not found.
func (c *Catalog) ID(name string) ColumnID {
	if id, ok := c.index[name]; ok {
		return id
	}
	return NoColumn
}

// Has reports whether id belongs to this catalog
func (c *Catalog) Has(id ColumnID) bool {
	return id >= 0 && int(id) < len(c.names)
}

// Name returns column name for id, empty for ids not in the catalog
func (c *Catalog) Name(id ColumnID) string {
	if !c.Has(id) {
		return ""
	}
	return c.names[id]
}

// Value extracts the cell of row for id. Null if id is not from this catalog or row is nil.
func (c *Catalog) Value(row Row, id ColumnID) Value {
	if row == nil || !c.Has(id) {
		return Null()
	}
	return row.Value(id)
}
