package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	a int64
	b string
	c float64
}

var testCatalog = NewCatalog(
	Column{Name: "a", Type: TypeInteger},
	Column{Name: "b", Type: TypeText},
	Column{Name: "c", Type: TypeReal},
)

func (r testRow) Value(id ColumnID) Value {
	switch id {
	case 0:
		return Int(r.a)
	case 1:
		return Text(r.b)
	case 2:
		return Real(r.c)
	}
	return Null()
}

func TestCatalog_ID(t *testing.T) {
	names := testCatalog.Names()
	require.Equal(t, []string{"a", "b", "c"}, names)
	require.Len(t, testCatalog.Types(), len(names))

	for i, name := range names {
		id := testCatalog.ID(name)
		assert.Equal(t, ColumnID(i), id)
		assert.Equal(t, name, testCatalog.Name(id))
	}

	assert.Equal(t, NoColumn, testCatalog.ID("z"))
	assert.Equal(t, NoColumn, testCatalog.ID("A"), "lookup is case-sensitive")
	assert.Empty(t, testCatalog.Name(NoColumn))
}

func TestCatalog_NamesCopy(t *testing.T) {
	names := testCatalog.Names()
	names[0] = "changed"
	assert.Equal(t, "a", testCatalog.Names()[0])
}

func TestCatalog_Value(t *testing.T) {
	row := testRow{a: 1, b: "x", c: 2.5}
	assert.Equal(t, Int(1), testCatalog.Value(row, 0))
	assert.Equal(t, Text("x"), testCatalog.Value(row, testCatalog.ID("b")))
	assert.Equal(t, Null(), testCatalog.Value(row, NoColumn))
	assert.Equal(t, Null(), testCatalog.Value(row, 3))
	assert.Equal(t, Null(), testCatalog.Value(nil, 0))
}

func TestNewCatalog_Panics(t *testing.T) {
	assert.Panics(t, func() {
		NewCatalog(Column{Name: "a", Type: TypeText}, Column{Name: "a", Type: TypeInteger})
	})
	assert.Panics(t, func() { NewCatalog(Column{Type: TypeText}) })
}

func TestProject(t *testing.T) {
	rows := []Row{testRow{a: 1, b: "one", c: 1.5}, testRow{a: 2, b: "two", c: 2.5}}

	tbl := []struct {
		name   string
		cols   []string
		header []string
		values [][]Value
	}{
		{
			name:   "all columns",
			cols:   nil,
			header: []string{"a", "b", "c"},
			values: [][]Value{{Int(1), Text("one"), Real(1.5)}, {Int(2), Text("two"), Real(2.5)}},
		},
		{
			name:   "unknown dropped, order kept",
			cols:   []string{"c", "z", "a"},
			header: []string{"c", "a"},
			values: [][]Value{{Real(1.5), Int(1)}, {Real(2.5), Int(2)}},
		},
		{
			name:   "single column",
			cols:   []string{"b"},
			header: []string{"b"},
			values: [][]Value{{Text("one")}, {Text("two")}},
		},
		{
			name:   "repeated column",
			cols:   []string{"a", "a"},
			header: []string{"a", "a"},
			values: [][]Value{{Int(1), Int(1)}, {Int(2), Int(2)}},
		},
		{
			name:   "nothing known",
			cols:   []string{"x", "y"},
			header: []string{},
			values: [][]Value{{}, {}},
		},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.header, ProjectHeader(testCatalog, tt.cols))
			assert.Equal(t, tt.values, Project(testCatalog, rows, tt.cols))
		})
	}
}

func TestProjectAll(t *testing.T) {
	rows := []Row{testRow{a: 7, b: "seven"}}
	res := ProjectAll(testCatalog, rows)
	require.Len(t, res, 1)
	assert.Len(t, res[0], testCatalog.Len())
	assert.Equal(t, Project(testCatalog, rows, []string{}), res)

	t.Run("zero rows", func(t *testing.T) {
		assert.Empty(t, ProjectAll(testCatalog, nil))
		assert.Empty(t, Project(testCatalog, nil, []string{"a"}))
		assert.Equal(t, []string{"a", "b", "c"}, ProjectHeader(testCatalog, nil))
	})
}

func TestSchema(t *testing.T) {
	c := NewCatalog(Column{Name: "pid", Type: TypeInteger}, Column{Name: "name", Type: TypeText})
	ddl, err := Schema(c)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE x("pid" INTEGER, "name" TEXT);`, ddl)

	again, err := Schema(c)
	require.NoError(t, err)
	assert.Equal(t, ddl, again)

	ddl, err = Schema(testCatalog)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE x("a" INTEGER, "b" TEXT, "c" REAL);`, ddl)

	_, err = Schema(NewCatalog())
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	_, err = Schema(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestValue(t *testing.T) {
	tbl := []struct {
		v    Value
		kind Kind
		str  string
		any  any
	}{
		{Null(), KindNull, "", nil},
		{Int(120), KindInteger, "120", int64(120)},
		{Real(1.25), KindReal, "1.25", 1.25},
		{Text("abc"), KindText, "abc", "abc"},
		{Blob([]byte("xy")), KindBlob, "xy", []byte("xy")},
	}

	for _, tt := range tbl {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
			assert.Equal(t, tt.str, tt.v.String())
			assert.Equal(t, tt.any, tt.v.Any())
			assert.True(t, tt.v.Equal(tt.v))
		})
	}

	assert.True(t, Value{}.IsNull())
	assert.False(t, Int(0).Equal(Real(0)))
	assert.False(t, Text("a").Equal(Text("b")))
	assert.Equal(t, []byte{}, Blob(nil).Bytes())
	assert.Equal(t, "Text(\"a\")", Text("a").GoString())
	assert.Equal(t, "Integer(5)", Int(5).GoString())
	assert.Equal(t, "Real(1.5)", Real(1.5).GoString())
}

func TestFromDriver(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl := []struct {
		name string
		src  any
		want Value
		err  bool
	}{
		{"nil", nil, Null(), false},
		{"int64", int64(5), Int(5), false},
		{"int", 6, Int(6), false},
		{"uint32", uint32(7), Int(7), false},
		{"bool true", true, Int(1), false},
		{"bool false", false, Int(0), false},
		{"float64", 1.5, Real(1.5), false},
		{"string", "s", Text("s"), false},
		{"bytes", []byte("b"), Blob([]byte("b")), false},
		{"time", ts, Int(ts.Unix()), false},
		{"unsupported", struct{}{}, Null(), true},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromDriver(tt.src)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestRowFunc(t *testing.T) {
	row := RowFunc(func(id ColumnID) Value { return Int(int64(id) * 10) })
	assert.Equal(t, [][]Value{{Int(20), Int(0)}}, Project(testCatalog, []Row{row}, []string{"c", "a"}))
}
