package server

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txBeginnerFunc func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)

func (f txBeginnerFunc) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return f(ctx, txOptions)
}

// scriptTx serves scripted result sets: Query pops from queued rows in call
// order, QueryRow pops from queued single rows. Exec calls are recorded.
type scriptTx struct {
	execSQLs   []string
	execArgs   [][]any
	execErr    error
	queryN     int
	queryErr   error
	queryErrAt int
	queued     []pgx.Rows
	queuedRow  []pgx.Row
	commitErr  error
	committed  bool
	rolled     bool
}

func (t *scriptTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *scriptTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}
func (t *scriptTx) Rollback(context.Context) error {
	t.rolled = true
	return nil
}
func (t *scriptTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *scriptTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *scriptTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *scriptTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *scriptTx) Conn() *pgx.Conn { return nil }

func (t *scriptTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQLs = append(t.execSQLs, sql)
	t.execArgs = append(t.execArgs, args)
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (t *scriptTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	t.queryN++
	if t.queryErr != nil {
		at := t.queryErrAt
		if at == 0 {
			at = 1
		}
		if t.queryN == at {
			return nil, t.queryErr
		}
	}
	if len(t.queued) > 0 {
		rows := t.queued[0]
		t.queued = t.queued[1:]
		return rows, nil
	}
	return &valueRows{}, nil
}

func (t *scriptTx) QueryRow(context.Context, string, ...any) pgx.Row {
	if len(t.queuedRow) > 0 {
		row := t.queuedRow[0]
		t.queuedRow = t.queuedRow[1:]
		return row
	}
	return valueRow{err: errors.New("unexpected QueryRow")}
}

// valueRows yields one scripted value tuple per Next.
type valueRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *valueRows) Close()                                       {}
func (r *valueRows) Err() error                                   { return r.err }
func (r *valueRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *valueRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *valueRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *valueRows) Scan(dest ...any) error {
	return scanValues(r.rows[r.idx-1], dest)
}
func (r *valueRows) Values() ([]any, error) { return nil, nil }
func (r *valueRows) RawValues() [][]byte    { return nil }
func (r *valueRows) Conn() *pgx.Conn        { return nil }

type valueRow struct {
	vals []any
	err  error
}

func (r valueRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.vals, dest)
}

func scanValues(vals []any, dest []any) error {
	for i := range dest {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		switch d := dest[i].(type) {
		case *string:
			s, _ := v.(string)
			*d = s
		case *bool:
			b, _ := v.(bool)
			*d = b
		case *int:
			n, _ := v.(int)
			*d = n
		case *int64:
			n, _ := v.(int64)
			*d = n
		case *[]byte:
			b, _ := v.([]byte)
			*d = b
		case *time.Time:
			ts, _ := v.(time.Time)
			*d = ts
		case **time.Time:
			ts, _ := v.(*time.Time)
			*d = ts
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}
