package table

import (
	"errors"
	"strings"
)

// ErrEmptyCatalog returned by Schema for catalogs without columns
var ErrEmptyCatalog = errors.New("catalog has no columns")

// Schema renders the CREATE TABLE statement declaring catalog columns to the engine, i.e.
// CREATE TABLE x("pid" INTEGER, "name" TEXT);
// Types are appended verbatim right after the quoted name.
func Schema(c *Catalog) (string, error) {
	if c == nil || c.Len() == 0 {
		return "", ErrEmptyCatalog
	}
	var sb strings.Builder
	sb.WriteString("CREATE TABLE x(")
	for i, name := range c.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(`"`)
		sb.WriteString(strings.ReplaceAll(name, `"`, `""`))
		sb.WriteString(`"`)
		sb.WriteString(c.types[i])
	}
	sb.WriteString(");")
	return sb.String(), nil
}
