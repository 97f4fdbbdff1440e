package schema_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/database/mysql"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/schema"
)

func newReflector(t *testing.T, tables ...string) (*schema.Reflector, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := database.DefaultConfig(database.DriverMySQL, "blog")
	cfg.Tables = tables
	return schema.NewReflector(database.New(sqlDB, mysql.Dialect{}, cfg)), mock
}

var (
	d           = mysql.Dialect{}
	tablesSQL   = first(d.TablesQuery("blog"))
	columnsCols = []string{"COLUMN_NAME", "IS_NULLABLE", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "COLUMN_TYPE"}
)

func first(sql string, _ []any) string { return sql }

func expectTables(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(tablesSQL).WithArgs("blog").WillReturnRows(
		sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("users", "BASE TABLE").
			AddRow("posts", "BASE TABLE").
			AddRow("post_stats", "VIEW").
			AddRow("sys_thing", "SYSTEM VIEW"))
}

func TestReflector_ReadDatabase(t *testing.T) {
	r, mock := newReflector(t)
	expectTables(mock)

	db, err := r.ReadDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "posts", "post_stats"}, db.TableNames())
	assert.Equal(t, schema.KindView, db.Kind("post_stats"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflector_ReadDatabase_Whitelist(t *testing.T) {
	r, mock := newReflector(t, "posts")
	expectTables(mock)

	db, err := r.ReadDatabase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"posts"}, db.TableNames())
}

func TestReflector_ReadTable(t *testing.T) {
	r, mock := newReflector(t)

	mock.ExpectQuery(first(d.ColumnsQuery("blog", "posts"))).WithArgs("posts", "blog").WillReturnRows(
		sqlmock.NewRows(columnsCols).
			AddRow("id", "NO", "int", nil, 10, 0, "int(11)").
			AddRow("user_id", "NO", "int", nil, 10, 0, "int(11)").
			AddRow("title", "NO", "varchar", 255, nil, nil, "varchar(255)").
			AddRow("published", "YES", "tinyint", nil, 3, 0, "tinyint(1)").
			AddRow("price", "YES", "decimal", nil, 10, 2, "decimal(10,2)"))
	mock.ExpectQuery(first(d.PrimaryKeysQuery("blog", "posts"))).WithArgs("posts", "blog").WillReturnRows(
		sqlmock.NewRows([]string{"CONSTRAINT_NAME", "COLUMN_NAME"}).AddRow("PRIMARY", "id"))
	mock.ExpectQuery(first(d.ForeignKeysQuery("blog", "posts"))).WithArgs("posts", "blog").WillReturnRows(
		sqlmock.NewRows([]string{"CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME"}).
			AddRow("posts_user_id_fkey", "user_id", "users"))

	tbl, err := r.ReadTable(context.Background(), "posts", schema.KindTable)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "user_id", "title", "published", "price"}, tbl.ColumnNames())
	assert.Equal(t, "id", tbl.Pk().Name)
	assert.Equal(t, map[string]string{"user_id": "users"}, tbl.Fks())
	assert.Equal(t, schema.Column{Name: "title", Type: "varchar", Length: 255}, *tbl.Column("title"))
	assert.Equal(t, schema.Column{Name: "published", Type: "boolean", Nullable: true}, *tbl.Column("published"))
	assert.Equal(t, schema.Column{Name: "price", Type: "decimal", Precision: 10, Scale: 2, Nullable: true}, *tbl.Column("price"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflector_ReadTable_CompositeKeysIgnored(t *testing.T) {
	r, mock := newReflector(t)

	mock.ExpectQuery(first(d.ColumnsQuery("blog", "post_tags"))).WithArgs("post_tags", "blog").WillReturnRows(
		sqlmock.NewRows(columnsCols).
			AddRow("post_id", "NO", "int", nil, 10, 0, "int").
			AddRow("tag_id", "NO", "int", nil, 10, 0, "int").
			AddRow("owner_id", "NO", "int", nil, 10, 0, "int"))
	mock.ExpectQuery(first(d.PrimaryKeysQuery("blog", "post_tags"))).WithArgs("post_tags", "blog").WillReturnRows(
		sqlmock.NewRows([]string{"CONSTRAINT_NAME", "COLUMN_NAME"}).
			AddRow("PRIMARY", "post_id").
			AddRow("PRIMARY", "tag_id"))
	mock.ExpectQuery(first(d.ForeignKeysQuery("blog", "post_tags"))).WithArgs("post_tags", "blog").WillReturnRows(
		sqlmock.NewRows([]string{"CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME"}).
			AddRow("pair_fkey", "post_id", "posts").
			AddRow("pair_fkey", "tag_id", "posts").
			AddRow("owner_fkey", "owner_id", "users"))

	tbl, err := r.ReadTable(context.Background(), "post_tags", schema.KindTable)
	require.NoError(t, err)
	assert.False(t, tbl.HasPk())
	assert.Equal(t, map[string]string{"owner_id": "users"}, tbl.Fks())
}

func TestReflector_ReadTable_View(t *testing.T) {
	r, mock := newReflector(t)

	mock.ExpectQuery(first(d.ColumnsQuery("blog", "post_stats"))).WithArgs("post_stats", "blog").WillReturnRows(
		sqlmock.NewRows(columnsCols).
			AddRow("id", "YES", "int", nil, 10, 0, "int").
			AddRow("users_id", "YES", "int", nil, 10, 0, "int").
			AddRow("hits", "YES", "bigint", nil, 19, 0, "bigint"))
	expectTables(mock)

	tbl, err := r.ReadTable(context.Background(), "post_stats", schema.KindView)
	require.NoError(t, err)
	assert.Equal(t, "id", tbl.Pk().Name)
	assert.Equal(t, map[string]string{"users_id": "users"}, tbl.Fks())
	for _, c := range tbl.Columns() {
		assert.False(t, c.Nullable, c.Name)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReflector_UnsupportedType(t *testing.T) {
	r, mock := newReflector(t)
	mock.ExpectQuery(first(d.ColumnsQuery("blog", "odd"))).WithArgs("odd", "blog").WillReturnRows(
		sqlmock.NewRows(columnsCols).AddRow("v", "NO", "weird", nil, nil, nil, "weird"))

	_, err := r.ReadTable(context.Background(), "odd", schema.KindTable)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeUnsupportedType))
}
