package table

// ProjectAll returns every column of every row, in catalog declaration order
func ProjectAll(c *Catalog, rows []Row) [][]Value {
	ids := make([]ColumnID, c.Len())
	for i := range ids {
		ids[i] = ColumnID(i)
	}
	return extract(c, rows, ids)
}

// Project returns requested columns of every row. Empty request is the same as ProjectAll.
// Names are resolved once against the catalog, unknown names are dropped silently and
// the remaining ones keep their relative order.
func Project(c *Catalog, rows []Row, names []string) [][]Value {
	if len(names) == 0 {
		return ProjectAll(c, rows)
	}
	return extract(c, rows, resolve(c, names))
}

// ProjectHeader mirrors Project for column names. Works for tables without rows.
func ProjectHeader(c *Catalog, names []string) []string {
	if len(names) == 0 {
		return c.Names()
	}
	res := make([]string, 0, len(names))
	for _, id := range resolve(c, names) {
		res = append(res, c.Name(id))
	}
	return res
}

func resolve(c *Catalog, names []string) []ColumnID {
	ids := make([]ColumnID, 0, len(names))
	for _, name := range names {
		if id := c.ID(name); id != NoColumn {
			ids = append(ids, id)
		}
	}
	return ids
}

func extract(c *Catalog, rows []Row, ids []ColumnID) [][]Value {
	res := make([][]Value, 0, len(rows))
	for _, row := range rows {
		vals := make([]Value, len(ids))
		for i, id := range ids {
			vals[i] = c.Value(row, id)
		}
		res = append(res, vals)
	}
	return res
}
