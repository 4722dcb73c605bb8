package sqlx_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "leaderboardkit/adapters/sqlx"
	"leaderboardkit/engine"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_Load(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT value FROM device_identifiers WHERE name = \$1`).
		WithArgs("device_id").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("guid-1"))

	got, err := store.Load(context.Background(), "device_id")
	require.NoError(t, err)
	require.Equal(t, "guid-1", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LoadMissing(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT value FROM device_identifiers`).
		WithArgs("device_id").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Load(context.Background(), "device_id")
	require.ErrorIs(t, err, engine.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LoadError(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT value FROM device_identifiers`).
		WithArgs("device_id").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Load(context.Background(), "device_id")
	require.Error(t, err)
	require.False(t, errors.Is(err, engine.ErrNotFound))
}

func TestSQLMock_SavePostgresUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO device_identifiers .* ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("device_id", "guid-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), "device_id", "guid-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveMySQLUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO device_identifiers .* ON DUPLICATE KEY UPDATE`).
		WithArgs("device_id", "guid-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), "device_id", "guid-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_DeleteMySQLPlaceholder(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM device_identifiers WHERE name = \?`).
		WithArgs("device_id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "device_id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Migrate(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS device_identifiers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Validation(t *testing.T) {
	_, err := storage.New(storage.Config{Driver: "sqlite", DSN: "x"})
	require.Error(t, err)
	_, err = storage.New(storage.DefaultConfig(storage.DriverPostgres))
	require.Error(t, err, "empty dsn")
}
