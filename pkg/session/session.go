// Package session owns an in-memory sqlite engine with every registry table attached as a
// virtual table and runs SQL against it. A Session is single-owner, concurrent users open one
// session each.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver and vtab registration hook
	"modernc.org/sqlite/vtab"

	"github.com/umputun/hostquery/pkg/bridge"
	"github.com/umputun/hostquery/pkg/table"
)

// DefaultModule is the default module name prefix
const DefaultModule = "hostquery"

// MinSQLiteVersion is the lowest supported engine version, 3.8.12 encoded as X*1000000+Y*1000+Z
const MinSQLiteVersion = 3008012

// PartialPolicy defines what Query does when reading a row fails in the middle of the result
type PartialPolicy int

// enum of partial result policies
const (
	BestEffort PartialPolicy = iota // return rows read so far, mark result partial
	FailFast                        // discard rows and fail the query
)

// ParsePartialPolicy converts "best-effort" or "fail-fast" to PartialPolicy, empty is BestEffort
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best-effort":
		return BestEffort, nil
	case "fail-fast":
		return FailFast, nil
	}
	return BestEffort, fmt.Errorf("unknown partial policy %q", s)
}

func (p PartialPolicy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "best-effort"
}

// Tables is the set of tables attached to a session, implemented by registry.Registry
type Tables interface {
	bridge.Source
	List() []string
}

// Options for Open
type Options struct {
	Module     string        // module name prefix, DefaultModule if empty
	MinVersion int           // minimal engine version, MinSQLiteVersion if zero
	Partial    PartialPolicy // policy for failures in the middle of a result
}

// Result of a query
type Result struct {
	Columns []string
	Rows    [][]table.Value
	Partial bool  // rows are truncated, Err has the reason
	Err     error // failure after which rows were truncated
}

// Session is an engine handle with all tables registered
type Session struct {
	db      *sql.DB
	module  string
	tables  []string
	partial PartialPolicy
}

var moduleNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var registerModule = vtab.RegisterModule // can be redefined in tests

// Open makes in-memory engine, checks its version and registers every table of tbls as a virtual table.
// Any failure closes the engine and aborts Open.
func Open(ctx context.Context, tbls Tables, opts Options) (*Session, error) {
	prefix := opts.Module
	if prefix == "" {
		prefix = DefaultModule
	}
	if !moduleNameRe.MatchString(prefix) {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid module name %q", prefix)}
	}
	minVer := opts.MinVersion
	if minVer == 0 {
		minVer = MinSQLiteVersion
	}

	if err := checkVersion(ctx, minVer); err != nil {
		return nil, err
	}

	// module registration in the driver is process-wide and applies to new connections only,
	// each session gets its own module name
	module := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, &ConfigError{Msg: "can't open engine", Err: err}
	}
	// virtual tables live in the schema of a single in-memory connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err = registerModule(db, module, bridge.NewModule(tbls)); err != nil {
		_ = db.Close()
		return nil, &ConfigError{Msg: fmt.Sprintf("can't register module %s", module), Err: err}
	}

	res := &Session{db: db, module: module, partial: opts.Partial}

	st := time.Now()
	for _, name := range tbls.List() {
		stmt := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s=%s)", name, module, bridge.ArgTableName, name)
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, &RegistrationError{Table: name, Err: err}
		}
		res.tables = append(res.tables, name)
	}
	log.Printf("[DEBUG] session with module %s opened, %d tables registered in %v", module, len(res.tables), time.Since(st))
	return res, nil
}

// checkVersion verifies engine version on a separate handle, before any module is registered
func checkVersion(ctx context.Context, minVer int) error {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return &ConfigError{Msg: "can't open engine", Err: err}
	}
	defer db.Close() // nolint

	var ver string
	if err = db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&ver); err != nil {
		return &ConfigError{Msg: "can't get engine version", Err: err}
	}
	num, err := parseVersion(ver)
	if err != nil {
		return &ConfigError{Msg: "can't parse engine version", Err: err}
	}
	if num < minVer {
		return &ConfigError{Msg: fmt.Sprintf("engine version %s (%d) is below minimal %d", ver, num, minVer)}
	}
	log.Printf("[DEBUG] engine version %s", ver)
	return nil
}

// parseVersion converts "X.Y.Z" to X*1000000+Y*1000+Z
func parseVersion(ver string) (int, error) {
	parts := strings.Split(strings.TrimSpace(ver), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unexpected version format %q", ver)
	}
	res := 0
	for i, mul := range []int{1000000, 1000, 1} {
		if i >= len(parts) {
			break
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unexpected version format %q", ver)
		}
		res += n * mul
	}
	return res, nil
}

// Tables returns registered virtual table names in registration order
func (s *Session) Tables() []string {
	return append([]string{}, s.tables...)
}

// Module returns the unique module name of the session
func (s *Session) Module() string { return s.module }

// Query runs a statement and reads all result rows. Prepare and execution failures are returned
// as QueryError. A failure while reading rows is handled according to session PartialPolicy.
func (s *Session) Query(ctx context.Context, query string) (*Result, error) {
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}

	res := &Result{Columns: cols, Rows: [][]table.Value{}}
	rowErr := func() error {
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("can't scan row %d: %w", len(res.Rows)+1, err)
			}
			row := make([]table.Value, len(cols))
			for i, v := range vals {
				if row[i], err = table.FromDriver(v); err != nil {
					return fmt.Errorf("can't convert column %s of row %d: %w", cols[i], len(res.Rows)+1, err)
				}
			}
			res.Rows = append(res.Rows, row)
		}
		return rows.Err()
	}()

	if rowErr == nil {
		return res, nil
	}
	if s.partial == FailFast {
		return nil, &QueryError{SQL: query, Err: rowErr}
	}
	log.Printf("[WARN] partial result for %q after %d rows: %v", query, len(res.Rows), rowErr)
	res.Partial, res.Err = true, rowErr
	return res, nil
}

// Exec runs a statement without result rows
func (s *Session) Exec(ctx context.Context, query string) error {
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &QueryError{SQL: query, Err: err}
	}
	return nil
}

// Close releases the engine. The module stays registered in the driver, it is never used again.
func (s *Session) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("can't close session: %w", err)
	}
	return nil
}
