package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/umputun/hostquery/pkg/output"
	"github.com/umputun/hostquery/pkg/registry"
	"github.com/umputun/hostquery/pkg/session"
)

const historyFile = ".hostquery_history"

var errQuit = errors.New("quit")

// shell runs sql statements and dot commands against a session
type shell struct {
	sess   *session.Session
	reg    *registry.Registry
	out    io.Writer
	format string
	buf    strings.Builder // incomplete statement
}

// interactive reads commands from terminal with line editing and history
func (s *shell) interactive(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
		if fh, err := os.Open(history); err == nil { // nolint gosec
			_, _ = line.ReadHistory(fh)
			_ = fh.Close()
		}
	}

	fmt.Fprintf(s.out, "hostquery %s, %d tables, \".help\" for usage\n", revision, len(s.sess.Tables()))
	for ctx.Err() == nil {
		prompt := "hostquery> "
		if s.buf.Len() > 0 {
			prompt = "      ...> "
		}
		text, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			s.buf.Reset()
			continue
		}
		if err != nil { // io.EOF on ctrl-d
			break
		}
		if strings.TrimSpace(text) != "" {
			line.AppendHistory(text)
		}
		if err = s.feed(ctx, text); errors.Is(err, errQuit) {
			break
		}
	}

	if history != "" {
		fh, err := os.Create(history) // nolint gosec
		if err != nil {
			log.Printf("[WARN] can't write history file %s: %v", history, err)
			return nil
		}
		_, _ = line.WriteHistory(fh)
		_ = fh.Close()
	}
	return nil
}

// script runs commands from a non-terminal reader, statements end with ";"
func (s *shell) script(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.feed(ctx, scanner.Text()); errors.Is(err, errQuit) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("can't read statements: %w", err)
	}
	if rest := strings.TrimSpace(s.buf.String()); rest != "" { // last statement without ";"
		s.buf.Reset()
		s.report(s.runSQL(ctx, rest))
	}
	return nil
}

// feed adds an input line. Dot commands run at once, sql runs when terminated by ";".
// Errors other than errQuit are printed and not returned.
func (s *shell) feed(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if s.buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		err := s.command(trimmed)
		if errors.Is(err, errQuit) {
			return err
		}
		s.report(err)
		return nil
	}

	if s.buf.Len() > 0 {
		s.buf.WriteByte('\n')
	}
	s.buf.WriteString(text)
	if !strings.HasSuffix(trimmed, ";") {
		return nil
	}
	stmt := s.buf.String()
	s.buf.Reset()
	s.report(s.runSQL(ctx, stmt))
	return nil
}

func (s *shell) command(cmd string) error {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ".quit", ".exit":
		return errQuit
	case ".help":
		fmt.Fprintln(s.out, ".tables             list tables")
		fmt.Fprintln(s.out, ".schema [table...]  show tables schema")
		fmt.Fprintf(s.out, ".mode <format>      set output format, one of %s\n", strings.Join(output.Formats, ", "))
		fmt.Fprintln(s.out, ".quit               exit")
		return nil
	case ".tables":
		fmt.Fprintln(s.out, strings.Join(s.sess.Tables(), "  "))
		return nil
	case ".schema":
		return printSchema(s.out, s.reg, fields[1:])
	case ".mode":
		if len(fields) != 2 {
			return fmt.Errorf("usage: .mode <format>, current mode %s", s.format)
		}
		for _, f := range output.Formats {
			if f == strings.ToLower(fields[1]) {
				s.format = f
				return nil
			}
		}
		return fmt.Errorf("unknown mode %q, supported: %s", fields[1], strings.Join(output.Formats, ", "))
	}
	return fmt.Errorf("unknown command %q, enter \".help\" for usage", fields[0])
}

func (s *shell) runSQL(ctx context.Context, stmt string) error {
	if name, ok := session.ExtractTableName(stmt); ok {
		log.Printf("[DEBUG] query table %s", name)
	}
	res, err := s.sess.Query(ctx, stmt)
	if err != nil {
		return err
	}
	if len(res.Columns) > 0 {
		if err = output.Write(s.out, s.format, res.Columns, res.Rows); err != nil {
			return err
		}
	}
	if res.Partial {
		warnPartial(s.out, res)
	}
	return nil
}

func (s *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}
