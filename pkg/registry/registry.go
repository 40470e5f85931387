// Package registry maps logical table names to collectors. The set of tables is fixed at
// construction time, after platform availability probes and include/exclude filters are applied.
package registry

import (
	"fmt"
	"log"
	"time"

	"github.com/go-pkgz/stringutils"

	"github.com/umputun/hostquery/pkg/table"
)

// Collector produces rows of one logical table
type Collector interface {
	Catalog() *table.Catalog
	Rows() ([]table.Row, error)
}

// Provider describes a table kind: its name, catalog, availability probe and collector factory
type Provider struct {
	Name      string
	Catalog   *table.Catalog
	Available func() bool // nil means always available
	Factory   func() Collector
}

// Options control which providers get registered
type Options struct {
	Include []string // only these tables, all if empty
	Exclude []string // skip these tables
}

// Registry is immutable after New, safe for concurrent reads
type Registry struct {
	names   []string
	entries map[string]Provider
}

// New makes registry from providers, in the order given. Unavailable and filtered out providers
// are skipped. Duplicate names, missing catalog or factory are reported as errors.
func New(opts Options, providers ...Provider) (*Registry, error) {
	res := &Registry{entries: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider without name")
		}
		if p.Catalog == nil || p.Factory == nil {
			return nil, fmt.Errorf("provider %q has no catalog or factory", p.Name)
		}
		if _, dup := res.entries[p.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", p.Name)
		}
		if len(opts.Include) > 0 && !stringutils.Contains(p.Name, opts.Include) {
			log.Printf("[DEBUG] table %s not included", p.Name)
			continue
		}
		if stringutils.Contains(p.Name, opts.Exclude) {
			log.Printf("[DEBUG] table %s excluded", p.Name)
			continue
		}
		if p.Available != nil && !p.Available() {
			log.Printf("[DEBUG] table %s not available on this platform", p.Name)
			continue
		}
		res.names = append(res.names, p.Name)
		res.entries[p.Name] = p
	}
	log.Printf("[DEBUG] registry with %d tables: %v", len(res.names), res.names)
	return res, nil
}

// List returns registered table names in registration order
func (r *Registry) List() []string {
	return append([]string{}, r.names...)
}

// Catalog returns catalog of the table
func (r *Registry) Catalog(name string) (*table.Catalog, bool) {
	p, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return p.Catalog, true
}

// Fetch collects the table and projects cols. Unknown table results in empty result.
func (r *Registry) Fetch(name string, cols []string) [][]table.Value {
	p, ok := r.entries[name]
	if !ok {
		return [][]table.Value{}
	}
	return table.Project(p.Catalog, r.collect(p), cols)
}

// Header returns projected column names, empty for unknown table
func (r *Registry) Header(name string, cols []string) []string {
	p, ok := r.entries[name]
	if !ok {
		return []string{}
	}
	return table.ProjectHeader(p.Catalog, cols)
}

// Rows collects raw rows of the table, nil for unknown table or failed collection
func (r *Registry) Rows(name string) []table.Row {
	p, ok := r.entries[name]
	if !ok {
		return nil
	}
	return r.collect(p)
}

// collect runs a fresh collector. Errors are logged and downgraded to empty result.
func (r *Registry) collect(p Provider) []table.Row {
	st := time.Now()
	rows, err := p.Factory().Rows()
	if err != nil {
		log.Printf("[WARN] can't collect %s: %v", p.Name, err)
		return nil
	}
	log.Printf("[DEBUG] collected %s, %d rows in %v", p.Name, len(rows), time.Since(st))
	return rows
}
