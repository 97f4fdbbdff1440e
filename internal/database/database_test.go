package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/database/mysql"
	"github.com/koustreak/restdb/internal/database/postgres"
	"github.com/koustreak/restdb/internal/database/sqlserver"
	"github.com/koustreak/restdb/internal/errs"
)

func newMock(t *testing.T, dialect database.Dialect) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return database.New(sqlDB, dialect, database.DefaultConfig(dialect.Driver(), "blog")), mock
}

func TestQuery_RewritesPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		want    string
	}{
		{name: "mysql", dialect: mysql.Dialect{}, want: `SELECT "id" FROM "posts" WHERE "id" = ? OR "id" = ?`},
		{name: "postgres", dialect: postgres.Dialect{}, want: `SELECT "id" FROM "posts" WHERE "id" = $1 OR "id" = $2`},
		{name: "sqlserver", dialect: sqlserver.Dialect{}, want: `SELECT "id" FROM "posts" WHERE "id" = @p1 OR "id" = @p2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t, tt.dialect)
			mock.ExpectQuery(tt.want).
				WithArgs(1, 2).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

			rows, err := db.Query(context.Background(), `SELECT "id" FROM "posts" WHERE "id" = ? OR "id" = ?`, 1, 2)
			require.NoError(t, err)
			assert.Len(t, rows, 2)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQuery_ScansBytesAsStrings(t *testing.T) {
	db, mock := newMock(t, mysql.Dialect{})
	mock.ExpectQuery(`SELECT "id", "title" FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), []byte("hello")))

	rows, err := db.Query(context.Background(), `SELECT "id", "title" FROM "posts"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "hello", rows[0]["title"])
}

func TestQuery_EmptyResultIsNonNil(t *testing.T) {
	db, mock := newMock(t, mysql.Dialect{})
	mock.ExpectQuery(`SELECT "id" FROM "posts"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := db.Query(context.Background(), `SELECT "id" FROM "posts"`)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQueryValue(t *testing.T) {
	db, mock := newMock(t, mysql.Dialect{})
	mock.ExpectQuery(`SELECT COUNT(*) FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(25)))
	mock.ExpectQuery(`SELECT LAST_INSERT_ID()`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	v, err := db.QueryValue(context.Background(), `SELECT COUNT(*) FROM "posts"`)
	require.NoError(t, err)
	assert.Equal(t, int64(25), v)

	v, err = db.QueryValue(context.Background(), `SELECT LAST_INSERT_ID()`)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestExec(t *testing.T) {
	db, mock := newMock(t, postgres.Dialect{})
	mock.ExpectExec(`DELETE FROM "posts" WHERE "id" = $1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := db.Exec(context.Background(), `DELETE FROM "posts" WHERE "id" = ?`, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExecStatement(t *testing.T) {
	db, mock := newMock(t, sqlserver.Dialect{})
	st := sqlserver.Dialect{}.RenameTable("posts", "articles")
	mock.ExpectExec(`EXEC sp_rename @p1, @p2`).
		WithArgs("posts", "articles").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := db.ExecStatement(context.Background(), st)
	require.NoError(t, err)
}

func TestExecThenQueryValue(t *testing.T) {
	db, mock := newMock(t, mysql.Dialect{})
	mock.ExpectExec(`INSERT INTO "posts" ("title") VALUES (?)`).
		WithArgs("hello").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery(`SELECT LAST_INSERT_ID()`).
		WillReturnRows(sqlmock.NewRows([]string{"LAST_INSERT_ID()"}).AddRow(int64(12)))

	st := database.Stmt(`INSERT INTO "posts" ("title") VALUES (?)`, "hello")
	v, err := db.ExecThenQueryValue(context.Background(), st, `SELECT LAST_INSERT_ID()`)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorNormalisation(t *testing.T) {
	tests := []struct {
		name     string
		driver   error
		wantCode errs.Code
		wantKind errs.ErrKind
	}{
		{
			name:     "mysql duplicate entry",
			driver:   errors.New("Error 1062: Duplicate entry '1' for key 'PRIMARY'"),
			wantCode: errs.CodeDuplicateKey,
			wantKind: errs.ErrKindConflict,
		},
		{
			name:     "postgres unique constraint",
			driver:   errors.New(`ERROR: duplicate key value violates unique constraint "posts_pkey"`),
			wantCode: errs.CodeDuplicateKey,
			wantKind: errs.ErrKindConflict,
		},
		{
			name:     "sqlserver null insert",
			driver:   errors.New("Cannot insert the value NULL into column 'title'; column does not allow nulls."),
			wantCode: errs.CodeDataIntegrityViolation,
			wantKind: errs.ErrKindConflict,
		},
		{
			name:     "foreign key constraint",
			driver:   errors.New("Cannot add or update a child row: a foreign key constraint fails"),
			wantCode: errs.CodeDataIntegrityViolation,
			wantKind: errs.ErrKindConflict,
		},
		{
			name:     "deadline",
			driver:   context.DeadlineExceeded,
			wantKind: errs.ErrKindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t, mysql.Dialect{})
			mock.ExpectExec(`INSERT INTO "posts" ("id") VALUES (?)`).WillReturnError(tt.driver)

			_, err := db.Exec(context.Background(), `INSERT INTO "posts" ("id") VALUES (?)`, 1)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errs.CodeOf(err))
			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantKind, e.Kind)
		})
	}
}

func TestConnect_PingsAndAppliesPool(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()

	cfg := database.DefaultConfig(database.DriverMySQL, "blog")
	cfg.ConnectTimeout = time.Second
	db, err := database.Connect(context.Background(), sqlDB, mysql.Dialect{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "blog", db.Name())
	assert.Equal(t, database.DriverMySQL, db.Driver())
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_PingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))
	mock.ExpectClose()

	_, err = database.Connect(context.Background(), sqlDB, mysql.Dialect{}, database.DefaultConfig(database.DriverMySQL, "blog"))
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"posts"`, database.QuoteIdent("posts"))
	assert.Equal(t, `"we""ird"`, database.QuoteIdent(`we"ird`))
	assert.Equal(t, "?,?,?", database.Placeholders(3))
	assert.Equal(t, "", database.Placeholders(0))
}

func TestValueHelpers(t *testing.T) {
	assert.Equal(t, "", database.String(nil))
	assert.Equal(t, "abc", database.String([]byte("abc")))
	assert.Equal(t, "12", database.String(int64(12)))
	assert.Equal(t, 12, database.Int("12"))
	assert.Equal(t, 12, database.Int(int64(12)))
	assert.Equal(t, 1, database.Int(true))
	assert.Equal(t, 0, database.Int("abc"))
	assert.Equal(t, 255, database.Int([]byte("255")))
}
