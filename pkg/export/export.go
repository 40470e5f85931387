package export

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/stringutils"
	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"

	"github.com/umputun/hostquery/pkg/session"
	"github.com/umputun/hostquery/pkg/table"
)

// Writer stores a snapshot of one table, implemented by Sink
type Writer interface {
	Write(ctx context.Context, name string, catalog *table.Catalog, columns []string, rows [][]table.Value) error
}

// Params of export run
type Params struct {
	Tables      session.Tables // exported tables, implemented by registry.Registry
	Writer      Writer
	Names       []string        // tables to export, all registered if empty
	Concurrency int             // number of parallel workers, 1 if not set
	Session     session.Options // options for worker sessions
}

// Stats of export run
type Stats struct {
	Tables int
	Rows   int
}

// Run collects tables and writes them to the destination. Every table is exported by a worker with
// its own session. Failed tables don't stop others, all errors are returned together.
func Run(ctx context.Context, p Params) (Stats, error) {
	names := p.Names
	if len(names) == 0 {
		names = p.Tables.List()
	}
	names = stringutils.DeDup(names)
	if unknown := stringutils.Difference(names, p.Tables.List()); len(unknown) > 0 {
		return Stats{}, fmt.Errorf("unknown tables: %s", strings.Join(unknown, ", "))
	}
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	st := time.Now()
	var tables, rows int32
	errs := new(multierror.Error)
	lock := sync.Mutex{}

	wg := syncs.NewErrSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for _, name := range names {
		wg.Go(func() error {
			n, err := exportTable(ctx, p, name)
			if err != nil {
				lock.Lock()
				errs = multierror.Append(errs, fmt.Errorf("can't export %s: %w", name, err))
				lock.Unlock()
				return nil
			}
			atomic.AddInt32(&tables, 1)
			atomic.AddInt32(&rows, int32(n)) //nolint gosec
			return nil
		})
	}
	_ = wg.Wait() // errors collected in errs

	res := Stats{Tables: int(atomic.LoadInt32(&tables)), Rows: int(atomic.LoadInt32(&rows))}
	log.Printf("[INFO] exported %d of %d tables, %d rows in %v", res.Tables, len(names), res.Rows,
		time.Since(st).Truncate(time.Millisecond))
	return res, errs.ErrorOrNil()
}

// exportTable runs SELECT * in a dedicated session and writes the result
func exportTable(ctx context.Context, p Params, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	catalog, ok := p.Tables.Catalog(name)
	if !ok {
		return 0, fmt.Errorf("no catalog")
	}

	sess, err := session.Open(ctx, p.Tables, p.Session)
	if err != nil {
		return 0, fmt.Errorf("can't open session: %w", err)
	}
	defer sess.Close() //nolint

	res, err := sess.Query(ctx, "SELECT * FROM "+name)
	if err != nil {
		return 0, err
	}
	if res.Partial {
		log.Printf("[WARN] partial snapshot of %s, %d rows: %v", name, len(res.Rows), res.Err)
	}
	if err = p.Writer.Write(ctx, name, catalog, res.Columns, res.Rows); err != nil {
		return 0, err
	}
	log.Printf("[DEBUG] exported %s, %d rows", name, len(res.Rows))
	return len(res.Rows), nil
}
