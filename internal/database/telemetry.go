package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

const maxStatementLength = 512

// TracedDB wraps a connection pool so every operation is recorded as a
// client span on the database tracer.
type TracedDB struct {
	Pool *pgxpool.Pool
}

// NewTracedDB creates a new traced database connection.
func NewTracedDB(pool *pgxpool.Pool) *TracedDB {
	return &TracedDB{
		Pool: pool,
	}
}

func startDBSpan(ctx context.Context, operation, sql string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
	}
	if sql != "" {
		attrs = append(attrs, attribute.String("db.statement", truncateStatement(sql)))
	}
	return telemetry.GetDatabaseTracer().Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func truncateStatement(sql string) string {
	if len(sql) > maxStatementLength {
		return sql[:maxStatementLength]
	}
	return sql
}

func endDBSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Query executes a query and records it as a span.
func (db *TracedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startDBSpan(ctx, "query", sql)
	rows, err := db.Pool.Query(ctx, sql, args...)
	endDBSpan(span, err)
	return rows, err
}

// QueryRow executes a query that returns a single row.
func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startDBSpan(ctx, "query_row", sql)
	defer span.End()
	return db.Pool.QueryRow(ctx, sql, args...)
}

// Exec executes a query without returning rows.
func (db *TracedDB) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startDBSpan(ctx, "exec", sql)
	tag, err := db.Pool.Exec(ctx, sql, arguments...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	endDBSpan(span, err)
	return tag, err
}

// Begin starts a transaction.
func (db *TracedDB) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := startDBSpan(ctx, "begin", "")
	tx, err := db.Pool.Begin(ctx)
	endDBSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &TracedTx{Tx: tx}, nil
}

// BeginTx starts a transaction with options.
func (db *TracedDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	ctx, span := startDBSpan(ctx, "begin_tx", "")
	tx, err := db.Pool.BeginTx(ctx, txOptions)
	endDBSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &TracedTx{Tx: tx}, nil
}

// Ping verifies the connection to the database.
func (db *TracedDB) Ping(ctx context.Context) error {
	ctx, span := startDBSpan(ctx, "ping", "")
	err := db.Pool.Ping(ctx)
	endDBSpan(span, err)
	return err
}

// Close closes the database connection pool.
func (db *TracedDB) Close() {
	db.Pool.Close()
}

// TracedTx wraps a transaction so statements inside it are recorded as spans.
type TracedTx struct {
	Tx pgx.Tx
}

// Query executes a query within the transaction.
func (tx *TracedTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startDBSpan(ctx, "tx.query", sql)
	rows, err := tx.Tx.Query(ctx, sql, args...)
	endDBSpan(span, err)
	return rows, err
}

// QueryRow executes a query that returns a single row within the transaction.
func (tx *TracedTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startDBSpan(ctx, "tx.query_row", sql)
	defer span.End()
	return tx.Tx.QueryRow(ctx, sql, args...)
}

// Exec executes a query without returning rows within the transaction.
func (tx *TracedTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startDBSpan(ctx, "tx.exec", sql)
	tag, err := tx.Tx.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	endDBSpan(span, err)
	return tag, err
}

// Commit commits the transaction.
func (tx *TracedTx) Commit(ctx context.Context) error {
	ctx, span := startDBSpan(ctx, "tx.commit", "")
	err := tx.Tx.Commit(ctx)
	endDBSpan(span, err)
	return err
}

// Rollback rolls back the transaction.
func (tx *TracedTx) Rollback(ctx context.Context) error {
	ctx, span := startDBSpan(ctx, "tx.rollback", "")
	err := tx.Tx.Rollback(ctx)
	endDBSpan(span, err)
	return err
}

// Begin starts a nested transaction.
func (tx *TracedTx) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := startDBSpan(ctx, "tx.begin", "")
	nestedTx, err := tx.Tx.Begin(ctx)
	endDBSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &TracedTx{Tx: nestedTx}, nil
}

// Conn returns the underlying connection.
func (tx *TracedTx) Conn() *pgx.Conn {
	return tx.Tx.Conn()
}

// CopyFrom copies data from a source to a destination table.
func (tx *TracedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	ctx, span := startDBSpan(ctx, "tx.copy_from", "")
	span.SetAttributes(attribute.String("db.table", tableName.Sanitize()))
	rowsAffected, err := tx.Tx.CopyFrom(ctx, tableName, columnNames, rowSrc)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	}
	endDBSpan(span, err)
	return rowsAffected, err
}

// LargeObjects returns the large object manager.
func (tx *TracedTx) LargeObjects() pgx.LargeObjects {
	return tx.Tx.LargeObjects()
}

// Prepare prepares a statement.
func (tx *TracedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	ctx, span := startDBSpan(ctx, "tx.prepare", sql)
	stmt, err := tx.Tx.Prepare(ctx, name, sql)
	endDBSpan(span, err)
	return stmt, err
}

// SendBatch sends a batch of queries.
func (tx *TracedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	ctx, span := startDBSpan(ctx, "tx.send_batch", "")
	span.SetAttributes(attribute.Int("db.batch_size", b.Len()))
	defer span.End()
	return tx.Tx.SendBatch(ctx, b)
}

// RecordDatabaseError attaches a database error to the span in the context.
func RecordDatabaseError(ctx context.Context, err error, operation string) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetAttributes(attribute.String("db.operation", operation))
	}
}

// AddDatabaseSpanAttributes adds table-level attributes to the span in the
// context.
func AddDatabaseSpanAttributes(ctx context.Context, table string, rowsAffected int64) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("db.table", table),
			attribute.Int64("db.rows_affected", rowsAffected),
		)
	}
}
