package sqlpos

import (
	"context"
	"database/sql"
)

// Execer abstracts *sql.DB / *sql.Tx ExecContext for easy testing.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer abstracts *sql.DB / *sql.Tx QueryContext for easy testing.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RowQueryer abstracts *sql.DB / *sql.Tx QueryRowContext.
type RowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecContext converts query with params and executes it on db.
func ExecContext(ctx context.Context, db Execer, query string, params any) (sql.Result, error) {
	q, args, err := Convert(query, params)
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, q, args...)
}

// QueryContext converts query with params and runs it on db.
func QueryContext(ctx context.Context, db Queryer, query string, params any) (*sql.Rows, error) {
	q, args, err := Convert(query, params)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, q, args...)
}

// QueryRowContext converts query with params and runs it on db, returning at
// most one row. Conversion errors are returned before the query is sent.
func QueryRowContext(ctx context.Context, db RowQueryer, query string, params any) (*sql.Row, error) {
	q, args, err := Convert(query, params)
	if err != nil {
		return nil, err
	}
	return db.QueryRowContext(ctx, q, args...), nil
}

// ExecContext binds params and executes the statement on db.
func (p *Prepared) ExecContext(ctx context.Context, db Execer, params any) (sql.Result, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, p.sql, args...)
}

// QueryContext binds params and runs the statement on db.
func (p *Prepared) QueryContext(ctx context.Context, db Queryer, params any) (*sql.Rows, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, p.sql, args...)
}

// QueryRowContext binds params and runs the statement on db, returning at
// most one row. Binding errors are returned before the query is sent.
func (p *Prepared) QueryRowContext(ctx context.Context, db RowQueryer, params any) (*sql.Row, error) {
	args, err := p.Bind(params)
	if err != nil {
		return nil, err
	}
	return db.QueryRowContext(ctx, p.sql, args...), nil
}
