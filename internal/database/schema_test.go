package database

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnsureSchema_Success tests that every schema statement is applied in order
func TestEnsureSchema_Success(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	for _, stmt := range schemaStatements {
		mockPool.ExpectExec(regexp.QuoteMeta(stmt)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	err = EnsureSchema(context.Background(), NewMockPoolAdapter(mockPool))
	assert.NoError(t, err)

	err = mockPool.ExpectationsWereMet()
	assert.NoError(t, err, "Expected all expectations to be met")
}

// TestEnsureSchema_Error tests that a failed statement stops the boot
func TestEnsureSchema_Error(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(schemaStatements[0])).
		WillReturnError(assert.AnError)

	err = EnsureSchema(context.Background(), NewMockPoolAdapter(mockPool))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply schema statement")
}

// TestSchemaStatements_Idempotent tests that repeated boots are safe
func TestSchemaStatements_Idempotent(t *testing.T) {
	for _, stmt := range schemaStatements {
		assert.True(t,
			strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS") ||
				strings.HasPrefix(stmt, "CREATE INDEX IF NOT EXISTS"),
			"Schema statement should be idempotent: %s", stmt)
	}
}

// TestSchemaStatements_CoversStoredTables tests that every table the
// repositories write to is created at boot
func TestSchemaStatements_CoversStoredTables(t *testing.T) {
	all := strings.Join(schemaStatements, "\n")

	tables := []string{
		"market_candles",
		"cot_positions",
		"sentiment_readings",
		"feature_rows",
		"signals",
		"backtest_runs",
		"backtest_trades",
		"pipeline_runs",
	}
	for _, table := range tables {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table, "Missing table %s", table)
	}
}
