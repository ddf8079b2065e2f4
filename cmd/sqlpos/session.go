package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gandaldf/sqlpos"
)

// Session holds the REPL state: the converter, the current prepared
// statement and an optional database connection.
type Session struct {
	conv     *sqlpos.Converter
	prepared *sqlpos.Prepared
	db       *sql.DB
	logger   *slog.Logger
	out      io.Writer
}

var errNoPrepared = errors.New("no prepared statement (use: prepare <sql>)")

func NewSession(conv *sqlpos.Converter, db *sql.DB, logger *slog.Logger, out io.Writer) *Session {
	return &Session{conv: conv, db: db, logger: logger, out: out}
}

const helpText = `Commands:
  convert <sql> | {json}      rewrite, numbering by the order of the JSON keys
  prepare <sql>               rewrite once, numbering by first appearance
  prepare[a,b] <sql>          rewrite once, numbering by the given names
  bind {json}                 bind values to the prepared statement
  run {json}                  bind and execute the prepared statement (needs DATABASE_URL)
  show                        print the prepared statement
  help                        this text
  exit                        quit
A line without a command is treated as convert.
`

// Execute runs one REPL line.
func (s *Session) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch {
	case cmd == "help":
		_, err := io.WriteString(s.out, helpText)
		return err
	case cmd == "show":
		if s.prepared == nil {
			return errNoPrepared
		}
		_, err := fmt.Fprintf(s.out, "%s\nnames: %s\n", s.prepared.SQL(), strings.Join(s.prepared.Names(), ", "))
		return err
	case cmd == "prepare" || strings.HasPrefix(cmd, "prepare["):
		return s.prepare(cmd, rest)
	case cmd == "bind":
		return s.bind(rest)
	case cmd == "run":
		return s.run(ctx, rest)
	case cmd == "convert":
		return s.convert(rest)
	default:
		return s.convert(line)
	}
}

func (s *Session) convert(input string) error {
	query, raw := splitParams(input)
	ps, err := parseParams(raw)
	if err != nil {
		return err
	}
	q, args, err := s.conv.Convert(query, ps)
	if err != nil {
		return err
	}
	s.logger.Debug("converted", "params", len(args))
	_, err = io.WriteString(s.out, formatResult(q, args))
	return err
}

func (s *Session) prepare(cmd, query string) error {
	var names []string
	if list, ok := strings.CutPrefix(cmd, "prepare["); ok {
		list, ok = strings.CutSuffix(list, "]")
		if !ok {
			return fmt.Errorf("malformed %q (expected prepare[a,b])", cmd)
		}
		names = splitNames(list)
	}
	p, err := s.conv.Prepare(query, names...)
	if err != nil {
		return err
	}
	s.prepared = p
	s.logger.Debug("prepared", "names", p.Names())
	_, err = fmt.Fprintf(s.out, "%s\nnames: %s\n", p.SQL(), strings.Join(p.Names(), ", "))
	return err
}

func (s *Session) bind(raw string) error {
	if s.prepared == nil {
		return errNoPrepared
	}
	ps, err := parseParams(raw)
	if err != nil {
		return err
	}
	q, args, err := s.prepared.ToPositional(ps)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.out, formatResult(q, args))
	return err
}

func (s *Session) run(ctx context.Context, raw string) error {
	if s.prepared == nil {
		return errNoPrepared
	}
	if s.db == nil {
		return errors.New("not connected (set DATABASE_URL)")
	}
	ps, err := parseParams(raw)
	if err != nil {
		return err
	}
	rows, err := s.prepared.QueryContext(ctx, s.db, ps)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	out, err := formatRows(rows)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.out, out)
	return err
}

// splitParams separates "<sql> | {json}" at the last '|' whose remainder is
// a JSON object. SQL operators such as || are left alone.
func splitParams(input string) (string, string) {
	for i := strings.LastIndexByte(input, '|'); i >= 0; i = strings.LastIndexByte(input[:i], '|') {
		rest := strings.TrimSpace(input[i+1:])
		if strings.HasPrefix(rest, "{") && strings.HasSuffix(rest, "}") {
			return strings.TrimSpace(input[:i]), rest
		}
	}
	return strings.TrimSpace(input), ""
}

// splitNames parses a comma-separated name list, dropping blanks.
func splitNames(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
