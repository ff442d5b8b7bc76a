package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewDB(pool *pgxpool.Pool, log *zap.Logger) *DB {
	return &DB{
		log:  log,
		pool: pool,
		conn: pool,
	}
}

// DB runs squirrel built or raw queries either on the pool or, inside RunInTransaction, on a single transaction.
type DB struct {
	log  *zap.Logger
	pool *pgxpool.Pool
	conn conn
}

func (db *DB) Select(ctx context.Context, query squirrel.SelectBuilder, handler func(rows pgx.Rows) error) error {
	return db.build(ctx, "select", query, handler)
}

func (db *DB) Insert(ctx context.Context, query squirrel.InsertBuilder, handler func(rows pgx.Rows) error) error {
	return db.build(ctx, "insert", query, handler)
}

func (db *DB) Update(ctx context.Context, query squirrel.UpdateBuilder, handler func(rows pgx.Rows) error) error {
	return db.build(ctx, "update", query, handler)
}

func (db *DB) build(ctx context.Context, kind string, query squirrel.Sqlizer, handler func(rows pgx.Rows) error) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", kind, err)
	}

	if sql, err = squirrel.Dollar.ReplacePlaceholders(sql); err != nil {
		return fmt.Errorf("replace %s placeholders: %w", kind, err)
	}

	if err := db.query(ctx, sql, args, handler); err != nil {
		return fmt.Errorf("exec %s query: %w", kind, err)
	}

	return nil
}

// query returns pgx.ErrNoRows when a scanner was given but no row came back.
func (db *DB) query(ctx context.Context, sql string, args []any, scanner rowScanner) error {
	start := time.Now()
	defer func() {
		go db.logQuery(time.Since(start), sql, args) // don't block flow
	}()

	rows, err := db.conn.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("exec query: %w", err)
	}
	defer rows.Close()

	var isAnyRowProcessed bool
	for rows.Next() {
		if scanner == nil {
			continue
		}

		if err = scanner(rows); err != nil {
			return fmt.Errorf("handle row: %w", err)
		}

		isAnyRowProcessed = true
	}

	// Err must only be called after the Rows is closed (either by calling Close or by Next returning false)
	if err = rows.Err(); err != nil {
		return fmt.Errorf("reading query result: %w", err)
	}

	if scanner != nil && !isAnyRowProcessed {
		return pgx.ErrNoRows
	}

	return nil
}

func (db *DB) RawQuery(ctx context.Context, handler func(rows pgx.Rows) error, sql string, args ...any) error {
	return db.query(ctx, sql, args, handler)
}

// RunInTransaction commits when f returns nil and rolls back otherwise.
func (db *DB) RunInTransaction(ctx context.Context, f func(ctx context.Context, txDB *DB) error) error {
	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		txDB := &DB{
			log:  db.log,
			pool: db.pool,
			conn: tx,
		}

		return f(ctx, txDB)
	})
	if err != nil {
		return fmt.Errorf("run in transaction: %w", err)
	}

	return nil
}

func (db *DB) logQuery(dur time.Duration, sql string, args []any) {
	if !db.log.Core().Enabled(zap.DebugLevel) {
		return
	}

	sql = strings.Join(strings.Fields(sql), " ")
	stat := db.pool.Stat()
	db.log.Debug(
		"db request",
		zap.String("sql", sql),
		zap.Any("args", args),
		zap.Int32("conn_limit", stat.MaxConns()),
		zap.Int32("conn_used", stat.TotalConns()),
		zap.Duration("dur", dur),
	)
}
