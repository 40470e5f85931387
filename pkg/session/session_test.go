package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite/vtab"

	"github.com/umputun/hostquery/pkg/registry"
	"github.com/umputun/hostquery/pkg/table"
)

var (
	procCatalog = table.NewCatalog(
		table.Column{Name: "pid", Type: table.TypeInteger},
		table.Column{Name: "name", Type: table.TypeText},
		table.Column{Name: "load", Type: table.TypeReal},
	)
	uptimeCatalog = table.NewCatalog(
		table.Column{Name: "days", Type: table.TypeInteger},
		table.Column{Name: "seconds", Type: table.TypeInteger},
	)
	ifaceCatalog = table.NewCatalog(
		table.Column{Name: "interface", Type: table.TypeText},
		table.Column{Name: "mtu", Type: table.TypeInteger},
	)
)

type fakeCollector struct {
	catalog *table.Catalog
	rows    []table.Row
	err     error
}

func (f fakeCollector) Catalog() *table.Catalog     { return f.catalog }
func (f fakeCollector) Rows() ([]table.Row, error) { return f.rows, f.err }

func valuesRow(vals ...table.Value) table.Row {
	return table.RowFunc(func(id table.ColumnID) table.Value {
		if int(id) < len(vals) {
			return vals[id]
		}
		return table.Null()
	})
}

func provider(name string, c fakeCollector) registry.Provider {
	return registry.Provider{Name: name, Catalog: c.catalog, Factory: func() registry.Collector { return c }}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Options{},
		provider("processes", fakeCollector{catalog: procCatalog, rows: []table.Row{
			valuesRow(table.Int(1), table.Text("init"), table.Real(0.5)),
			valuesRow(table.Int(42), table.Text("sh"), table.Null()),
		}}),
		provider("uptime", fakeCollector{catalog: uptimeCatalog, rows: []table.Row{
			valuesRow(table.Int(0), table.Int(120)),
		}}),
		provider("interface_details", fakeCollector{catalog: ifaceCatalog, err: errors.New("not implemented")}),
		provider("json_items", fakeCollector{catalog: procCatalog, rows: []table.Row{
			valuesRow(table.Int(1), table.Text(`{"a":1}`)),
			valuesRow(table.Int(2), table.Text("oops")),
			valuesRow(table.Int(3), table.Text(`{"b":2}`)),
		}}),
	)
	require.NoError(t, err)
	return reg
}

func openTestSession(t *testing.T, reg Tables, opts Options) *Session {
	t.Helper()
	s, err := Open(context.Background(), reg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestOpen(t *testing.T) {
	reg := newTestRegistry(t)
	s := openTestSession(t, reg, Options{})
	assert.Equal(t, reg.List(), s.Tables())
	assert.Regexp(t, `^hostquery_[0-9a-f]{32}$`, s.Module())

	t.Run("sessions get distinct modules", func(t *testing.T) {
		other := openTestSession(t, reg, Options{Module: "custom"})
		assert.NotEqual(t, s.Module(), other.Module())
		assert.Regexp(t, `^custom_`, other.Module())
	})

	t.Run("version below minimum", func(t *testing.T) {
		registered := 0
		registerModule = func(db *sql.DB, name string, m vtab.Module) error {
			registered++
			return vtab.RegisterModule(db, name, m)
		}
		defer func() { registerModule = vtab.RegisterModule }()

		_, err := Open(context.Background(), reg, Options{MinVersion: 99000000})
		require.Error(t, err)
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr), "unexpected error type %T", err)
		assert.Contains(t, err.Error(), "below minimal")
		assert.Equal(t, 0, registered, "module registered before version check")

		s, err := Open(context.Background(), reg, Options{})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, 1, registered)
	})

	t.Run("bad module name", func(t *testing.T) {
		_, err := Open(context.Background(), reg, Options{Module: "bad-name"})
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr), "unexpected error %v", err)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		_, err := Open(context.Background(), dupTables{reg}, Options{})
		var rerr *RegistrationError
		require.True(t, errors.As(err, &rerr), "unexpected error %v", err)
		assert.Equal(t, "processes", rerr.Table)
	})
}

// dupTables lists the first table twice
type dupTables struct{ *registry.Registry }

func (d dupTables) List() []string {
	names := d.Registry.List()
	return append(names, names[0])
}

func TestSession_Query(t *testing.T) {
	reg := newTestRegistry(t)
	s := openTestSession(t, reg, Options{})
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		for _, name := range []string{"processes", "uptime", "interface_details"} {
			res, err := s.Query(ctx, "SELECT * FROM "+name)
			require.NoError(t, err)
			assert.Equal(t, reg.Header(name, nil), res.Columns)
			assert.Equal(t, reg.Fetch(name, nil), res.Rows, name)
			assert.False(t, res.Partial)
		}
	})

	t.Run("uptime seconds", func(t *testing.T) {
		res, err := s.Query(ctx, "SELECT seconds FROM uptime")
		require.NoError(t, err)
		assert.Equal(t, []string{"seconds"}, res.Columns)
		assert.Equal(t, [][]table.Value{{table.Int(120)}}, res.Rows)
	})

	t.Run("where evaluated by engine", func(t *testing.T) {
		res, err := s.Query(ctx, "SELECT name, load FROM processes WHERE pid = 42")
		require.NoError(t, err)
		assert.Equal(t, [][]table.Value{{table.Text("sh"), table.Null()}}, res.Rows)
	})

	t.Run("degraded table", func(t *testing.T) {
		res, err := s.Query(ctx, "SELECT * FROM interface_details")
		require.NoError(t, err)
		assert.Equal(t, []string{"interface", "mtu"}, res.Columns)
		assert.Empty(t, res.Rows)

		res, err = s.Query(ctx, "SELECT (SELECT count(*) FROM interface_details), count(*) FROM processes")
		require.NoError(t, err)
		assert.Equal(t, [][]table.Value{{table.Int(0), table.Int(2)}}, res.Rows)
	})

	t.Run("rowid", func(t *testing.T) {
		res, err := s.Query(ctx, "SELECT rowid, pid FROM processes")
		require.NoError(t, err)
		assert.Equal(t, [][]table.Value{{table.Int(1), table.Int(1)}, {table.Int(2), table.Int(42)}}, res.Rows)
	})

	t.Run("prepare failure", func(t *testing.T) {
		_, err := s.Query(ctx, "SELECT * FROM nope")
		var qerr *QueryError
		require.True(t, errors.As(err, &qerr), "unexpected error %v", err)
		assert.Equal(t, "SELECT * FROM nope", qerr.SQL)

		_, err = s.Query(ctx, "SELEC 1")
		require.True(t, errors.As(err, &qerr))
	})

	t.Run("partial result", func(t *testing.T) {
		res, err := s.Query(ctx, "SELECT pid, json(name) FROM json_items")
		require.NoError(t, err)
		assert.True(t, res.Partial)
		require.Error(t, res.Err)
		assert.Equal(t, [][]table.Value{{table.Int(1), table.Text(`{"a":1}`)}}, res.Rows)
	})
}

func TestSession_FailFast(t *testing.T) {
	s := openTestSession(t, newTestRegistry(t), Options{Partial: FailFast})
	res, err := s.Query(context.Background(), "SELECT pid, json(name) FROM json_items")
	require.Error(t, err)
	assert.Nil(t, res)
	var qerr *QueryError
	assert.True(t, errors.As(err, &qerr))

	res, err = s.Query(context.Background(), "SELECT pid FROM json_items")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
}

func TestSession_Exec(t *testing.T) {
	s := openTestSession(t, newTestRegistry(t), Options{})
	ctx := context.Background()
	require.NoError(t, s.Exec(ctx, "CREATE TEMP TABLE snap AS SELECT pid, name FROM processes"))
	res, err := s.Query(ctx, "SELECT count(*) FROM snap")
	require.NoError(t, err)
	assert.Equal(t, [][]table.Value{{table.Int(2)}}, res.Rows)

	err = s.Exec(ctx, "INSERT INTO processes(pid) VALUES (1)")
	var qerr *QueryError
	assert.True(t, errors.As(err, &qerr), "virtual tables are read-only")
}

func TestParseVersion(t *testing.T) {
	tbl := []struct {
		in   string
		want int
		err  bool
	}{
		{"3.8.12", 3008012, false},
		{"3.49.1", 3049001, false},
		{"3.8", 3008000, false},
		{" 3.45.0 ", 3045000, false},
		{"3", 0, true},
		{"3.x.1", 0, true},
		{"", 0, true},
	}
	for _, tt := range tbl {
		t.Run(tt.in, func(t *testing.T) {
			v, err := parseVersion(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestParsePartialPolicy(t *testing.T) {
	p, err := ParsePartialPolicy("")
	require.NoError(t, err)
	assert.Equal(t, BestEffort, p)
	p, err = ParsePartialPolicy("Fail-Fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)
	assert.Equal(t, "fail-fast", p.String())
	_, err = ParsePartialPolicy("sometimes")
	require.Error(t, err)
}

func TestExtractTableName(t *testing.T) {
	tbl := []struct {
		sql  string
		want string
		ok   bool
	}{
		{"SELECT a, b FROM processes WHERE pid=1", "processes", true},
		{"select * from Uptime", "Uptime", true},
		{"SELECT x FROM a JOIN b ON a.id=b.id FROM c", "c", true},
		{"UPDATE x SET y=1", "", false},
		{"SELECT 1", "", false},
		{"DELETE FROM t", "", false},
		{"SELECT * FROM", "", false},
		{"SELECT * FROM t FROM", "", false},
		{"SELECT * FROMx y", "", false},
	}
	for _, tt := range tbl {
		t.Run(tt.sql, func(t *testing.T) {
			name, ok := ExtractTableName(tt.sql)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}
