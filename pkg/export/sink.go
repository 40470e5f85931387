// Package export snapshots hostquery tables into an external sqlite, postgres or mysql database.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver loaded here
	_ "github.com/lib/pq"              // postgres driver loaded here
	_ "modernc.org/sqlite"             // sqlite driver loaded here

	"github.com/umputun/hostquery/pkg/table"
)

// Sink is a destination database. Supported database types: sqlite, postgres, mysql
type Sink struct {
	db     *sql.DB
	dbType string
	prefix string
}

// DBType detects database type by connection string
func DBType(conn string) (string, error) {
	if strings.HasPrefix(conn, "postgres://") {
		return "postgres", nil
	}
	if strings.Contains(conn, "@tcp(") {
		return "mysql", nil
	}
	if strings.HasPrefix(conn, "file:") || strings.HasSuffix(conn, ".sqlite") || strings.HasSuffix(conn, ".db") {
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported database type in connection string")
}

// NewSink opens destination database. Destination tables are named prefix+table.
func NewSink(conn, prefix string) (*Sink, error) {
	dbt, err := DBType(conn)
	if err != nil {
		return nil, fmt.Errorf("can't determine database type: %w", err)
	}

	db, err := sql.Open(dbt, conn)
	if err != nil {
		return nil, fmt.Errorf("error opening export database: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("can't connect to export database: %w", err)
	}
	if dbt == "sqlite" {
		db.SetMaxOpenConns(1) // a single writer, parallel table writes wait for it
	}
	log.Printf("[INFO] export sink: using %s database", dbt)
	return &Sink{db: db, dbType: dbt, prefix: prefix}, nil
}

// Type returns detected database type
func (s *Sink) Type() string { return s.dbType }

// Write replaces content of the destination table with rows. Destination is created on the first write
// from catalog types, columns not in catalog are stored as text. Delete and insert run in one transaction.
func (s *Sink) Write(ctx context.Context, name string, catalog *table.Catalog, columns []string, rows [][]table.Value) error {
	if len(columns) == 0 {
		return fmt.Errorf("no columns to export for %s", name)
	}
	dest := s.quote(s.prefix + name)

	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	types := catalog.Types()
	for i, col := range columns {
		typ := table.TypeText
		if id := catalog.ID(col); id != table.NoColumn {
			typ = types[id]
		}
		quoted[i] = s.quote(col)
		defs[i] = quoted[i] + " " + s.columnType(typ)
	}

	createStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", dest, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("can't create table %s: %w", dest, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't start transaction for %s: %w", dest, err)
	}
	defer tx.Rollback() //nolint, no-op after commit

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+dest); err != nil {
		return fmt.Errorf("can't clean table %s: %w", dest, err)
	}

	insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", dest, strings.Join(quoted, ", "), s.placeholders(len(columns)))
	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i, row := range rows {
		for j := range args {
			args[j] = nil
			if j < len(row) {
				args[j] = row[j].DriverValue()
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("error inserting row %d into %s: %w", i+1, dest, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit %s: %w", dest, err)
	}
	return nil
}

// Close the destination database
func (s *Sink) Close() error {
	return s.db.Close()
}

// columnType maps catalog sql types to destination types
func (s *Sink) columnType(typ string) string {
	switch strings.TrimSpace(typ) {
	case "INTEGER":
		return "BIGINT"
	case "REAL":
		return "DOUBLE PRECISION"
	case "BLOB":
		if s.dbType == "postgres" {
			return "BYTEA"
		}
		return "BLOB"
	}
	return "TEXT"
}

// placeholders makes "$1, $2" for postgres and "?, ?" for others
func (s *Sink) placeholders(n int) string {
	res := make([]string, n)
	for i := range res {
		res[i] = "?"
		if s.dbType == "postgres" {
			res[i] = fmt.Sprintf("$%d", i+1)
		}
	}
	return strings.Join(res, ", ")
}

func (s *Sink) quote(ident string) string {
	if s.dbType == "mysql" {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
