package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPendingFiles_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_redemptions.up.sql": {Data: []byte("x")},
		"001_offers.up.sql":      {Data: []byte("x")},
		"001_offers.down.sql":    {Data: []byte("x")},
		"README.md":              {Data: []byte("x")},
	}
	names, err := pendingFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_offers.up.sql", "002_redemptions.up.sql"}, names)
}

func TestRunMigrations_AppliesPendingAndSkipsApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{
		"001_offers.up.sql":      {Data: []byte("CREATE TABLE offers (id TEXT)")},
		"002_redemptions.up.sql": {Data: []byte("CREATE TABLE offer_redemptions (id TEXT)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_offers.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_redemptions.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE offer_redemptions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_redemptions.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, fsys, discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{"001_offers.up.sql": {Data: []byte("CREATE TABLE offers (")}}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_offers.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE offers").WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, fsys, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_offers.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.False(t, isTransient(errors.New("syntax error")))
	assert.False(t, isTransient(nil))
}

func TestBackoff_Grows(t *testing.T) {
	for n := 0; n < 3; n++ {
		base := connectBaseWait << n
		d := backoff(n)
		assert.GreaterOrEqual(t, d, base-base/4)
		assert.LessOrEqual(t, d, base+base/4)
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "offers", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/offers?sslmode=disable", cfg.DSN())
}
