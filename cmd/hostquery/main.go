package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/fileutils"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/umputun/hostquery/pkg/collector"
	"github.com/umputun/hostquery/pkg/config"
	"github.com/umputun/hostquery/pkg/export"
	"github.com/umputun/hostquery/pkg/output"
	"github.com/umputun/hostquery/pkg/registry"
	"github.com/umputun/hostquery/pkg/session"
	"github.com/umputun/hostquery/pkg/table"
)

const defaultConfig = "hostquery.yml"

type options struct {
	Config   string   `short:"f" long:"config" env:"HOSTQUERY_CONFIG" description:"config file or url" default:"hostquery.yml"`
	Module   string   `long:"module" env:"HOSTQUERY_MODULE" description:"virtual table module name prefix"`
	FailFast bool     `long:"fail-fast" env:"HOSTQUERY_FAIL_FAST" description:"fail the whole query on a row error"`
	Include  []string `short:"i" long:"include" description:"register only these tables"`
	Exclude  []string `short:"x" long:"exclude" description:"don't register these tables"`

	QueryCmd struct {
		Format         string `long:"format" description:"output format" choice:"table" choice:"json" choice:"csv" default:"table"`
		PositionalArgs struct {
			SQL string `positional-arg-name:"sql" description:"sql statement"`
		} `positional-args:"yes" required:"yes"`
	} `command:"query" description:"run sql statement"`

	TablesCmd struct{} `command:"tables" description:"list registered tables"`

	SchemaCmd struct {
		PositionalArgs struct {
			Tables []string `positional-arg-name:"table" description:"tables to describe, all if not set"`
		} `positional-args:"yes"`
	} `command:"schema" description:"print tables schema"`

	ShellCmd struct {
		Format string `long:"format" description:"output format" choice:"table" choice:"json" choice:"csv" default:"table"`
	} `command:"shell" description:"interactive sql shell"`

	ExportCmd struct {
		Conn           string `long:"conn" env:"HOSTQUERY_EXPORT_CONN" description:"destination database connection string"`
		Concurrency    int    `short:"c" long:"concurrency" description:"number of parallel exports"`
		Prefix         string `long:"prefix" description:"destination table name prefix"`
		PositionalArgs struct {
			Tables []string `positional-arg-name:"table" description:"tables to export, all if not set"`
		} `positional-args:"yes"`
	} `command:"export" description:"export tables snapshot to external database"`

	Version bool `long:"version" description:"show version"`
	Dbg     bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

var exitFunc = os.Exit

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.SubcommandsOptional = true
	if _, err := p.Parse(); err != nil {
		exitFunc(1) // can be redefined in tests
		return
	}
	if opts.Version {
		fmt.Printf("hostquery %s\n", revision)
		exitFunc(0)
		return
	}
	if p.Active == nil {
		p.WriteHelp(os.Stdout)
		exitFunc(1)
		return
	}
	setupLog(opts.Dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, p, opts); err != nil {
		if opts.Dbg {
			log.Printf("[ERROR] %v", err)
		}
		fmt.Printf("failed, %v\n", formatErrorString(err.Error()))
		exitFunc(1)
	}
}

func run(ctx context.Context, p *flags.Parser, opts options) error {
	conf, err := loadConfig(opts)
	if err != nil {
		return err
	}

	reg, err := registry.New(conf.RegistryOptions(), collector.Providers(conf.CollectorFiles())...)
	if err != nil {
		return fmt.Errorf("can't make tables registry: %w", err)
	}

	switch {
	case isActive(p, "tables"):
		for _, name := range reg.List() {
			fmt.Println(name)
		}
		return nil

	case isActive(p, "schema"):
		return printSchema(os.Stdout, reg, opts.SchemaCmd.PositionalArgs.Tables)

	case isActive(p, "export"):
		return runExport(ctx, conf, reg, opts.ExportCmd.PositionalArgs.Tables)
	}

	sess, err := session.Open(ctx, reg, conf.SessionOptions())
	if err != nil {
		return fmt.Errorf("can't open session: %w", err)
	}
	defer sess.Close() // nolint

	if isActive(p, "shell") {
		sh := &shell{sess: sess, reg: reg, out: os.Stdout, format: opts.ShellCmd.Format}
		if term.IsTerminal(int(os.Stdin.Fd())) { // nolint gosec
			return sh.interactive(ctx)
		}
		return sh.script(ctx, os.Stdin)
	}

	log.Printf("[DEBUG] query %q", opts.QueryCmd.PositionalArgs.SQL)
	res, err := sess.Query(ctx, opts.QueryCmd.PositionalArgs.SQL)
	if err != nil {
		return err
	}
	if err = output.Write(os.Stdout, opts.QueryCmd.Format, res.Columns, res.Rows); err != nil {
		return fmt.Errorf("can't write result: %w", err)
	}
	if res.Partial {
		warnPartial(os.Stderr, res)
	}
	return nil
}

// loadConfig reads config file if set, missing default file means no config
func loadConfig(opts options) (*config.Config, error) {
	fname := opts.Config
	if fname == defaultConfig && !fileutils.IsFile(fname) {
		fname = ""
	}
	overrides := config.Overrides{
		Module:      opts.Module,
		FailFast:    opts.FailFast,
		Include:     opts.Include,
		Exclude:     opts.Exclude,
		Conn:        opts.ExportCmd.Conn,
		Concurrency: opts.ExportCmd.Concurrency,
		Prefix:      opts.ExportCmd.Prefix,
	}
	conf, err := config.New(fname, &overrides)
	if err != nil {
		return nil, fmt.Errorf("can't load config %q: %w", fname, err)
	}
	return conf, nil
}

func runExport(ctx context.Context, conf *config.Config, reg *registry.Registry, names []string) error {
	if conf.Export.Conn == "" {
		return fmt.Errorf("export destination is not set, use --conn or export.conn in config")
	}
	sink, err := export.NewSink(conf.Export.Conn, conf.Export.Prefix)
	if err != nil {
		return fmt.Errorf("can't make export sink: %w", err)
	}
	defer sink.Close() // nolint

	st := time.Now()
	stats, err := export.Run(ctx, export.Params{Tables: reg, Writer: sink, Names: names,
		Concurrency: conf.Export.Concurrency, Session: conf.SessionOptions()})
	fmt.Printf("exported %d tables, %d rows to %s in %v\n", stats.Tables, stats.Rows, sink.Type(),
		time.Since(st).Truncate(time.Millisecond))
	return err
}

// printSchema writes CREATE TABLE statement for each table, all registered tables if names empty
func printSchema(w io.Writer, reg *registry.Registry, names []string) error {
	if len(names) == 0 {
		names = reg.List()
	}
	for _, name := range names {
		ddl, err := tableSchema(reg, name)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintln(w, ddl); err != nil {
			return err
		}
	}
	return nil
}

func tableSchema(reg *registry.Registry, name string) (string, error) {
	catalog, ok := reg.Catalog(name)
	if !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	ddl, err := table.Schema(catalog)
	if err != nil {
		return "", fmt.Errorf("can't make schema for %s: %w", name, err)
	}
	return strings.Replace(ddl, "CREATE TABLE x(", "CREATE TABLE "+name+"(", 1), nil
}

func warnPartial(w io.Writer, res *session.Result) {
	msg := fmt.Sprintf("[WARN] partial result, %d rows returned: %v\n", len(res.Rows), res.Err)
	_, _ = color.New(color.FgHiRed).Fprint(w, msg)
}

func isActive(p *flags.Parser, name string) bool {
	return p.Active != nil && p.Command.Find(name) == p.Active
}

func formatErrorString(input string) string {
	headerRe := regexp.MustCompile(`((?:.*: )?\d+ errors? occurred:)`)
	headerMatch := headerRe.FindStringSubmatch(input)

	if len(headerMatch) == 0 {
		return input
	}

	errorsRe := regexp.MustCompile(`\* ([^\n]+)`)
	rest := input[strings.Index(input, headerMatch[0])+len(headerMatch[0]):]
	errorsMatches := errorsRe.FindAllStringSubmatch(rest, -1)

	formattedErrors := make([]string, 0, len(errorsMatches))
	for _, match := range errorsMatches {
		formattedErrors = append(formattedErrors, strings.TrimSpace(match[1]))
	}

	formattedString := fmt.Sprintf("%s\n", strings.TrimSpace(headerMatch[1]))
	for i, err := range formattedErrors {
		formattedString += fmt.Sprintf("   [%d] %s\n", i, err)
	}

	return formattedString
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
