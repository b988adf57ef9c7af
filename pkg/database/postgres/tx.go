package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx 事务接口
type Tx interface {
	Querier
	// ExecBatch 以 pipeline 方式执行同一条语句的多组参数，返回总影响行数
	ExecBatch(ctx context.Context, sql string, argsList [][]any) (int64, error)
	// QueryRowBatch 以 pipeline 方式执行多条单行查询（如 INSERT ... RETURNING），
	// 按入队顺序回调 scan
	QueryRowBatch(ctx context.Context, sql string, argsList [][]any, scan func(i int, row pgx.Row) error) error
}

type txWrapper struct {
	tx pgx.Tx
}

func (t *txWrapper) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *txWrapper) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txWrapper) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	n, err := rowsAffected(t.tx.Exec(ctx, sql, args...))
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return n, nil
}

func (t *txWrapper) ExecBatch(ctx context.Context, sql string, argsList [][]any) (int64, error) {
	if len(argsList) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, args := range argsList {
		batch.Queue(sql, args...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	var total int64
	for i := range argsList {
		ct, err := results.Exec()
		if err != nil {
			return total, fmt.Errorf("batch exec failed at index %d: %w", i, err)
		}
		total += ct.RowsAffected()
	}
	return total, nil
}

func (t *txWrapper) QueryRowBatch(ctx context.Context, sql string, argsList [][]any, scan func(i int, row pgx.Row) error) error {
	if len(argsList) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, args := range argsList {
		batch.Queue(sql, args...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range argsList {
		if err := scan(i, results.QueryRow()); err != nil {
			return fmt.Errorf("batch query failed at index %d: %w", i, err)
		}
	}
	return nil
}

// TxIsolationLevel 事务隔离级别
type TxIsolationLevel string

const (
	TxIsolationLevelDefault        TxIsolationLevel = ""
	TxIsolationLevelReadCommitted  TxIsolationLevel = "read committed"
	TxIsolationLevelRepeatableRead TxIsolationLevel = "repeatable read"
	TxIsolationLevelSerializable   TxIsolationLevel = "serializable"
)

// TxOptions 事务选项
type TxOptions struct {
	IsoLevel TxIsolationLevel
}

// WithTxOptions 在事务中执行 fn：fn 返回错误或 panic 时回滚，否则提交
func (c *Client) WithTxOptions(ctx context.Context, opts TxOptions, fn func(Tx) error) (err error) {
	ctx, cancel := c.applyQueryTimeout(ctx)
	defer cancel()

	tx, err := c.master.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(opts.IsoLevel)})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txWrapper{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
