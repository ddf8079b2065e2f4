// Command sqlpos rewrites SQL written with :named parameters into $n
// positional form and prints the ordered argument list.
//
// Configuration (env vars):
//
//	DATABASE_URL=postgres://...   (optional, enables -exec and the REPL "run" command)
//	LOG_LEVEL=debug|info|warn|error
//	SQLPOS_HISTORY=<path>         (REPL history file)
//	SQLPOS_MAX_PARAMS=<n>
//
// Usage:
//
//	sqlpos -query 'SELECT :id, :name' -params '{"id":1,"name":"Bob"}'
//	echo 'SELECT :id' | sqlpos -prepare -params '{"id":1}'
//	sqlpos -i
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ergochat/readline"
	"github.com/gandaldf/sqlpos"
	"github.com/gandaldf/sqlpos/internal/config"
	"github.com/gandaldf/sqlpos/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sqlpos: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("sqlpos", flag.ContinueOnError)
	var (
		query       = fs.String("query", "", "SQL statement (read from stdin when empty)")
		params      = fs.String("params", "", "parameter values as a JSON object")
		prepare     = fs.Bool("prepare", false, "number parameters by first appearance instead of JSON key order")
		names       = fs.String("names", "", "comma-separated parameter order for -prepare")
		exec        = fs.Bool("exec", false, "run the statement against DATABASE_URL and print the rows")
		interactive = fs.Bool("i", false, "start the interactive shell")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	conv := sqlpos.New(sqlpos.Config{MaxParams: cfg.MaxParams})

	var db *sql.DB
	if cfg.DatabaseURL != "" && (*exec || *interactive) {
		db, err = openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		logger.Info("connected", "database_url", redactedURL(cfg.DatabaseURL))
	}

	sess := NewSession(conv, db, logger, stdout)
	if *interactive {
		return repl(ctx, sess, cfg.HistoryFile)
	}

	if *query == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		*query = string(b)
	}
	*query = strings.TrimSpace(*query)
	if *query == "" {
		return errors.New("no SQL given (use -query or stdin)")
	}

	ps, err := parseParams(*params)
	if err != nil {
		return err
	}

	if *exec || *prepare || *names != "" {
		p, err := conv.Prepare(*query, splitNames(*names)...)
		if err != nil {
			return err
		}
		if *exec {
			if db == nil {
				return errors.New("-exec needs DATABASE_URL")
			}
			sess.prepared = p
			return sess.run(ctx, *params)
		}
		q, vals, err := p.ToPositional(ps)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, formatResult(q, vals))
		return err
	}

	q, vals, err := conv.Convert(*query, ps)
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, formatResult(q, vals))
	return err
}

func repl(ctx context.Context, sess *Session, history string) error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          "sqlpos> ",
		HistoryFile:     history,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintln(sess.out, "sqlpos shell. Type 'help' for commands, 'exit' to quit.")
	for ctx.Err() == nil {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if lower == "exit" || lower == "quit" {
			break
		}
		if err := sess.Execute(ctx, line); err != nil {
			sess.logger.Debug("command failed", slog.String("line", line), slog.Any("err", err))
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		}
	}
	return nil
}
