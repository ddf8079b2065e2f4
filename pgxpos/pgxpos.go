// Package pgxpos plugs sqlpos named parameters into pgx.
//
// Named implements pgx.QueryRewriter, so a statement written with :name
// placeholders can be passed straight to pgx:
//
//	rows, err := conn.Query(ctx, "SELECT * FROM users WHERE id = :id", pgxpos.Named(sqlpos.P{"id": 7}))
//
// Statements are prepared once per SQL text through the converter's cache.
package pgxpos

import (
	"context"
	"errors"
	"fmt"

	"github.com/gandaldf/sqlpos"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx operations used here. It is implemented by
// *pgx.Conn, pgx.Tx and *pgxpool.Pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var ErrExtraArgs = errors.New("pgxpos: positional args are not allowed after named params")

var _ pgx.QueryRewriter = Args{}

// Args carries named parameter values for a single pgx call.
type Args struct {
	params any
	conv   *sqlpos.Converter
}

// Named wraps params (a map, struct or sqlpos.Params) for use as the first
// argument of a pgx Query, QueryRow or Exec call. Markers are numbered by
// first appearance of each name in the SQL text.
func Named(params any) Args {
	return Args{params: params}
}

// NamedWith is Named using conv (and its cache and limits) instead of the
// package default converter.
func NamedWith(conv *sqlpos.Converter, params any) Args {
	return Args{params: params, conv: conv}
}

// RewriteQuery implements pgx.QueryRewriter.
func (a Args) RewriteQuery(_ context.Context, _ *pgx.Conn, sql string, args []any) (string, []any, error) {
	if len(args) > 0 {
		return "", nil, fmt.Errorf("%w: got %d", ErrExtraArgs, len(args))
	}
	var (
		p   *sqlpos.Prepared
		err error
	)
	if a.conv != nil {
		p, err = a.conv.Cached(sql)
	} else {
		p, err = sqlpos.Cached(sql)
	}
	if err != nil {
		return "", nil, err
	}
	return p.ToPositional(a.params)
}

// Exec binds params and executes p on db.
func Exec(ctx context.Context, db DB, p *sqlpos.Prepared, params any) (pgconn.CommandTag, error) {
	args, err := p.Bind(params)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return db.Exec(ctx, p.SQL(), args...)
}

// Query binds params and runs p on db.
func Query(ctx context.Context, db DB, p *sqlpos.Prepared, params any) (pgx.Rows, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}
	return db.Query(ctx, p.SQL(), args...)
}

// QueryRow binds params and runs p on db, returning at most one row.
func QueryRow(ctx context.Context, db DB, p *sqlpos.Prepared, params any) (pgx.Row, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}
	return db.QueryRow(ctx, p.SQL(), args...), nil
}

// CollectRows binds params, runs p on db and collects every row with fn,
// e.g. pgx.RowToStructByName[T].
func CollectRows[T any](ctx context.Context, db DB, p *sqlpos.Prepared, params any, fn pgx.RowToFunc[T]) ([]T, error) {
	rows, err := Query(ctx, db, p, params)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}
