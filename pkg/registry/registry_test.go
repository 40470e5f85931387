package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/hostquery/pkg/table"
)

var fakeCatalog = table.NewCatalog(
	table.Column{Name: "id", Type: table.TypeInteger},
	table.Column{Name: "name", Type: table.TypeText},
)

type fakeRow struct {
	id   int64
	name string
}

func (r fakeRow) Value(id table.ColumnID) table.Value {
	switch id {
	case 0:
		return table.Int(r.id)
	case 1:
		return table.Text(r.name)
	}
	return table.Null()
}

type fakeCollector struct {
	rows  []table.Row
	err   error
	calls *int
}

func (f fakeCollector) Catalog() *table.Catalog { return fakeCatalog }

func (f fakeCollector) Rows() ([]table.Row, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.rows, f.err
}

func fakeProvider(name string, c fakeCollector) Provider {
	return Provider{Name: name, Catalog: fakeCatalog, Factory: func() Collector { return c }}
}

func TestNew(t *testing.T) {
	good := fakeProvider("good", fakeCollector{})
	other := fakeProvider("other", fakeCollector{})
	unavailable := fakeProvider("unavailable", fakeCollector{})
	unavailable.Available = func() bool { return false }

	t.Run("order and availability", func(t *testing.T) {
		reg, err := New(Options{}, other, unavailable, good)
		require.NoError(t, err)
		assert.Equal(t, []string{"other", "good"}, reg.List())
		_, ok := reg.Catalog("unavailable")
		assert.False(t, ok)
	})

	t.Run("include and exclude", func(t *testing.T) {
		reg, err := New(Options{Include: []string{"good", "other"}, Exclude: []string{"other"}}, good, other)
		require.NoError(t, err)
		assert.Equal(t, []string{"good"}, reg.List())
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := New(Options{}, good, good)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate table "good"`)
	})

	t.Run("bad provider", func(t *testing.T) {
		_, err := New(Options{}, Provider{Name: "x"})
		require.Error(t, err)
		_, err = New(Options{}, Provider{Catalog: fakeCatalog})
		require.Error(t, err)
	})
}

func TestRegistry_Fetch(t *testing.T) {
	calls := 0
	rows := []table.Row{fakeRow{id: 1, name: "a"}, fakeRow{id: 2, name: "b"}}
	reg, err := New(Options{},
		fakeProvider("items", fakeCollector{rows: rows, calls: &calls}),
		fakeProvider("broken", fakeCollector{err: errors.New("permission denied")}),
		fakeProvider("empty", fakeCollector{}),
	)
	require.NoError(t, err)

	t.Run("all columns", func(t *testing.T) {
		res := reg.Fetch("items", nil)
		assert.Equal(t, [][]table.Value{{table.Int(1), table.Text("a")}, {table.Int(2), table.Text("b")}}, res)
		assert.Equal(t, []string{"id", "name"}, reg.Header("items", nil))
	})

	t.Run("projection", func(t *testing.T) {
		res := reg.Fetch("items", []string{"name", "missing"})
		assert.Equal(t, [][]table.Value{{table.Text("a")}, {table.Text("b")}}, res)
		assert.Equal(t, []string{"name"}, reg.Header("items", []string{"name", "missing"}))
	})

	t.Run("fresh collection per call", func(t *testing.T) {
		before := calls
		reg.Fetch("items", nil)
		reg.Rows("items")
		assert.Equal(t, before+2, calls)
	})

	t.Run("unknown table", func(t *testing.T) {
		assert.Empty(t, reg.Fetch("nope", nil))
		assert.NotNil(t, reg.Fetch("nope", nil))
		assert.Empty(t, reg.Header("nope", []string{"id"}))
		assert.Nil(t, reg.Rows("nope"))
	})

	t.Run("collector error is empty result", func(t *testing.T) {
		assert.Empty(t, reg.Fetch("broken", nil))
		assert.Equal(t, []string{"id", "name"}, reg.Header("broken", nil))
		assert.Nil(t, reg.Rows("broken"))
	})

	t.Run("zero rows keeps header", func(t *testing.T) {
		assert.Empty(t, reg.Fetch("empty", nil))
		assert.Equal(t, []string{"id", "name"}, reg.Header("empty", nil))
	})
}
