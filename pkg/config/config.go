// Package config loads hostquery configuration from a yaml or toml file (local or http url)
// and merges it with command line overrides.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/fileutils"
	"github.com/go-pkgz/stringutils"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/umputun/hostquery/pkg/collector"
	"github.com/umputun/hostquery/pkg/registry"
	"github.com/umputun/hostquery/pkg/session"
)

// Config defines the top-level config object
type Config struct {
	Module           string `yaml:"module" toml:"module"`                         // module name prefix
	MinSQLiteVersion int    `yaml:"min_sqlite_version" toml:"min_sqlite_version"` // X*1000000+Y*1000+Z
	Partial          string `yaml:"partial" toml:"partial"`                       // best-effort or fail-fast
	Tables           Tables `yaml:"tables" toml:"tables"`
	Files            Files  `yaml:"files" toml:"files"`
	Export           Export `yaml:"export" toml:"export"`
}

// Tables filters registered tables
type Tables struct {
	Include []string `yaml:"include" toml:"include"` // only these tables, all if empty
	Exclude []string `yaml:"exclude" toml:"exclude"`
}

// Files defines locations of file based tables
type Files struct {
	Hosts     string `yaml:"hosts" toml:"hosts"`
	Protocols string `yaml:"protocols" toml:"protocols"`
	Services  string `yaml:"services" toml:"services"`
}

// Export defines snapshot destination
type Export struct {
	Conn        string `yaml:"conn" toml:"conn"`               // connection string, type detected by format
	Concurrency int    `yaml:"concurrency" toml:"concurrency"` // number of workers
	Prefix      string `yaml:"prefix" toml:"prefix"`           // destination table name prefix
}

// Overrides defines values set on command line, non-empty fields win over the file
type Overrides struct {
	Module      string
	FailFast    bool
	Include     []string
	Exclude     []string
	Conn        string
	Concurrency int
	Prefix      string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New loads config from fname, a file or http(s) url. Empty fname makes the default config.
// Overrides applied after loading, the result is validated.
func New(fname string, overrides *Overrides) (*Config, error) {
	res := &Config{}
	if fname != "" {
		log.Printf("[DEBUG] request to load config %q", fname)
		data, err := read(fname)
		if err != nil {
			return nil, err
		}
		if err = unmarshal(fname, data, res); err != nil {
			return nil, fmt.Errorf("can't unmarshal config: %w", err)
		}
	}

	res.apply(overrides)
	res.Tables.Include = stringutils.DeDup(res.Tables.Include)
	res.Tables.Exclude = stringutils.DeDup(res.Tables.Exclude)

	if err := res.checkConfig(); err != nil {
		return nil, fmt.Errorf("config %s is invalid: %w", fname, err)
	}
	log.Printf("[DEBUG] config loaded, include:%v, exclude:%v, partial:%q", res.Tables.Include, res.Tables.Exclude, res.Partial)
	return res, nil
}

// read gets config content from a file or url
func read(loc string) ([]byte, error) {
	var rdr io.ReadCloser
	switch {
	case strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://"):
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(loc)
		if err != nil {
			return nil, fmt.Errorf("can't get config from http %s: %w", loc, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("can't get config from http %s, status: %s", loc, resp.Status)
		}
		rdr = resp.Body
	default:
		fh, err := os.Open(loc) // nolint
		if err != nil {
			return nil, fmt.Errorf("can't open config file %s: %w", loc, err)
		}
		rdr = fh
	}
	defer rdr.Close() // nolint

	data, err := io.ReadAll(rdr)
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", loc, err)
	}
	return data, nil
}

// unmarshal decodes yaml or toml, format guessed by extension. Urls and files without extension are yaml.
func unmarshal(fname string, data []byte, res *Config) error {
	isURL := strings.HasPrefix(fname, "http://") || strings.HasPrefix(fname, "https://")
	switch {
	case strings.HasSuffix(fname, ".toml"):
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(res); err != nil {
			return fmt.Errorf("can't unmarshal toml config %s: %w", fname, err)
		}
	case strings.HasSuffix(fname, ".yml") || strings.HasSuffix(fname, ".yaml") || !strings.Contains(fname, ".") || isURL:
		yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
		yamlDecoder.KnownFields(true) // strict mode, fail on unknown fields
		if err := yamlDecoder.Decode(res); err != nil && err != io.EOF {
			return fmt.Errorf("can't unmarshal yaml config %s: %w", fname, err)
		}
	default:
		return fmt.Errorf("unknown config format %s", fname)
	}
	return nil
}

func (c *Config) apply(o *Overrides) {
	if o == nil {
		return
	}
	if o.Module != "" {
		c.Module = o.Module
	}
	if o.FailFast {
		c.Partial = session.FailFast.String()
	}
	if len(o.Include) > 0 {
		c.Tables.Include = o.Include
	}
	if len(o.Exclude) > 0 {
		c.Tables.Exclude = append(c.Tables.Exclude, o.Exclude...)
	}
	if o.Conn != "" {
		c.Export.Conn = o.Conn
	}
	if o.Concurrency > 0 {
		c.Export.Concurrency = o.Concurrency
	}
	if o.Prefix != "" {
		c.Export.Prefix = o.Prefix
	}
}

// checkConfig collects all problems, not just the first one
func (c *Config) checkConfig() error {
	errs := new(multierror.Error)
	if c.Module != "" && !identRe.MatchString(c.Module) {
		errs = multierror.Append(errs, fmt.Errorf("module %q is not a valid identifier", c.Module))
	}
	if c.MinSQLiteVersion < 0 {
		errs = multierror.Append(errs, fmt.Errorf("negative min_sqlite_version %d", c.MinSQLiteVersion))
	}
	if _, err := session.ParsePartialPolicy(c.Partial); err != nil {
		errs = multierror.Append(errs, err)
	}
	if common := stringutils.Intersection(c.Tables.Include, c.Tables.Exclude); len(common) > 0 {
		errs = multierror.Append(errs, fmt.Errorf("tables both included and excluded: %s", strings.Join(common, ", ")))
	}
	for name, path := range map[string]string{"hosts": c.Files.Hosts, "protocols": c.Files.Protocols, "services": c.Files.Services} {
		if path != "" && !fileutils.IsFile(path) {
			errs = multierror.Append(errs, fmt.Errorf("%s file %s not found", name, path))
		}
	}
	if c.Export.Concurrency < 0 {
		errs = multierror.Append(errs, fmt.Errorf("negative export concurrency %d", c.Export.Concurrency))
	}
	if c.Export.Prefix != "" && !identRe.MatchString(c.Export.Prefix) {
		errs = multierror.Append(errs, fmt.Errorf("export prefix %q is not a valid identifier", c.Export.Prefix))
	}
	return errs.ErrorOrNil()
}

// SessionOptions makes options for session.Open
func (c *Config) SessionOptions() session.Options {
	partial, _ := session.ParsePartialPolicy(c.Partial) // validated by checkConfig
	return session.Options{Module: c.Module, MinVersion: c.MinSQLiteVersion, Partial: partial}
}

// RegistryOptions makes include/exclude filters for registry.New
func (c *Config) RegistryOptions() registry.Options {
	return registry.Options{Include: c.Tables.Include, Exclude: c.Tables.Exclude}
}

// CollectorFiles makes locations of file based tables
func (c *Config) CollectorFiles() collector.Files {
	return collector.Files{Hosts: c.Files.Hosts, Protocols: c.Files.Protocols, Services: c.Files.Services}
}
