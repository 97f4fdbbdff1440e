package ddl

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/cache"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/database/mysql"
	"github.com/koustreak/restdb/internal/database/postgres"
	"github.com/koustreak/restdb/internal/database/sqlserver"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/schema"
)

// fakeReader serves whatever schema the test puts in it.
type fakeReader struct {
	mu     sync.Mutex
	tables map[string]*schema.Table
	reads  int
}

func (f *fakeReader) ReadDatabase(context.Context) (*schema.Database, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]schema.TableRef, 0, len(f.tables))
	for name, t := range f.tables {
		refs = append(refs, schema.TableRef{Name: name, Type: t.Kind()})
	}
	return schema.NewDatabase(refs), nil
}

func (f *fakeReader) ReadTable(_ context.Context, name, _ string) (*schema.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.tables[name], nil
}

func (f *fakeReader) set(t *schema.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[t.Name()] = t
}

func blogReader() *fakeReader {
	return &fakeReader{tables: map[string]*schema.Table{
		"users": schema.NewTable("users", schema.KindTable, []schema.Column{idColumn, {Name: "name", Type: "varchar"}}),
		"posts": schema.NewTable("posts", schema.KindTable, []schema.Column{
			idColumn, titleColumn, {Name: "author_id", Type: "integer", Fk: "users"},
		}),
		"post_stats": schema.NewTable("post_stats", schema.KindView, []schema.Column{{Name: "posts", Type: "integer"}}),
	}}
}

func newService(t *testing.T, dialect database.Dialect, r *fakeReader) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db := database.New(sqlDB, dialect, database.DefaultConfig(dialect.Driver(), "blog"))
	return NewService(db, schema.NewService(r, cache.None{})), mock
}

func TestAddColumn(t *testing.T) {
	ctx := context.Background()
	r := blogReader()
	svc, mock := newService(t, mysql.Dialect{}, r)

	// Memoise the current table so the refresh has something to replace.
	_, err := svc.schema.Table(ctx, "posts")
	require.NoError(t, err)
	views := schema.Column{Name: "views", Type: "integer", Nullable: true}
	r.set(schema.NewTable("posts", schema.KindTable, []schema.Column{idColumn, titleColumn, views}))

	mock.ExpectExec(`ALTER TABLE "posts" ADD COLUMN "views" integer NULL`).WillReturnResult(sqlmock.NewResult(0, 0))

	snap, err := svc.AddColumn(ctx, "posts", views)
	require.NoError(t, err)
	require.NotNil(t, snap.Table)
	assert.True(t, snap.Table.HasColumn("views"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddColumn_Checks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		col   schema.Column
		code  errs.Code
	}{
		{name: "existing column", table: "posts", col: titleColumn, code: errs.CodeColumnAlreadyExists},
		{name: "missing table", table: "comments", col: titleColumn, code: errs.CodeTableNotFound},
		{name: "view", table: "post_stats", col: titleColumn, code: errs.CodeOperationNotSupported},
		{name: "unknown type", table: "posts", col: schema.Column{Name: "x", Type: "money"}, code: errs.CodeInputValidationFailed},
		{name: "missing fk target", table: "posts", col: schema.Column{Name: "tag_id", Type: "integer", Fk: "tags"}, code: errs.CodeTableNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newService(t, mysql.Dialect{}, blogReader())
			_, err := svc.AddColumn(ctx, tt.table, tt.col)
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, tt.code), "got %v", err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAddColumn_PrimaryKeyWithSequence(t *testing.T) {
	ctx := context.Background()
	r := &fakeReader{tables: map[string]*schema.Table{
		"tags": schema.NewTable("tags", schema.KindTable, []schema.Column{{Name: "name", Type: "varchar"}}),
	}}
	svc, mock := newService(t, sqlserver.Dialect{}, r)

	mock.ExpectExec(`ALTER TABLE "tags" ADD "id" integer NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "tags" ADD CONSTRAINT "tags_pkey" PRIMARY KEY ("id")`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE SEQUENCE "tags_id_seq"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT coalesce(max("id"),0)+1 FROM "tags"`).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(7)))
	mock.ExpectExec(`ALTER SEQUENCE "tags_id_seq" RESTART WITH 7`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "tags" ADD CONSTRAINT "tags_id_def" DEFAULT NEXT VALUE FOR "tags_id_seq" FOR "id"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.AddColumn(ctx, "tags", idColumn)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumn_PartialFailureStillRefreshes(t *testing.T) {
	ctx := context.Background()
	r := &fakeReader{tables: map[string]*schema.Table{
		"tags": schema.NewTable("tags", schema.KindTable, []schema.Column{{Name: "id", Type: "integer"}, {Name: "name", Type: "varchar"}}),
	}}
	svc, mock := newService(t, postgres.Dialect{}, r)

	mock.ExpectExec(`ALTER TABLE "tags" ADD CONSTRAINT "tags_pkey" PRIMARY KEY ("id")`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE SEQUENCE "tags_id_seq" OWNED BY "tags"."id"`).WillReturnError(errors.New("permission denied for schema public"))

	pk := true
	readsBefore := r.reads
	snap, err := svc.UpdateColumn(ctx, "tags", "id", ColumnChanges{Pk: &pk})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step sequence")
	require.NotNil(t, snap)
	assert.NotNil(t, snap.Table)
	assert.Greater(t, r.reads, readsBefore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumn_RenameAndNullable(t *testing.T) {
	ctx := context.Background()
	svc, mock := newService(t, postgres.Dialect{}, blogReader())

	mock.ExpectExec(`ALTER TABLE "posts" RENAME COLUMN "title" TO "headline"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "posts" ALTER COLUMN "headline" DROP NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))

	name := "headline"
	nullable := true
	_, err := svc.UpdateColumn(ctx, "posts", "title", ColumnChanges{Name: &name, Nullable: &nullable})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumn_RenameOntoExisting(t *testing.T) {
	svc, mock := newService(t, postgres.Dialect{}, blogReader())

	name := "author_id"
	_, err := svc.UpdateColumn(context.Background(), "posts", "title", ColumnChanges{Name: &name})
	assert.True(t, errs.HasCode(err, errs.CodeColumnAlreadyExists))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveColumn_DropsForeignKeyFirst(t *testing.T) {
	svc, mock := newService(t, mysql.Dialect{}, blogReader())

	mock.ExpectExec(`ALTER TABLE "posts" DROP FOREIGN KEY "posts_author_id_fkey"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "posts" DROP COLUMN "author_id" CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.RemoveColumn(context.Background(), "posts", "author_id")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables(t *testing.T) {
	ctx := context.Background()

	t.Run("rename", func(t *testing.T) {
		r := blogReader()
		svc, mock := newService(t, sqlserver.Dialect{}, r)
		mock.ExpectExec(`EXEC sp_rename @p1, @p2`).WithArgs("posts", "articles").WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.schema.Table(ctx, "posts")
		require.NoError(t, err)
		posts := r.tables["posts"]
		delete(r.tables, "posts")
		r.set(schema.NewTable("articles", posts.Kind(), []schema.Column{idColumn, titleColumn}))

		snap, err := svc.RenameTable(ctx, "posts", "articles")
		require.NoError(t, err)
		assert.False(t, snap.Database.HasTable("posts"))
		require.NotNil(t, snap.Table)
		assert.Equal(t, "articles", snap.Table.Name())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rename onto existing", func(t *testing.T) {
		svc, _ := newService(t, mysql.Dialect{}, blogReader())
		_, err := svc.RenameTable(ctx, "posts", "users")
		assert.True(t, errs.HasCode(err, errs.CodeTableAlreadyExists))
	})

	t.Run("add existing", func(t *testing.T) {
		svc, _ := newService(t, mysql.Dialect{}, blogReader())
		_, err := svc.AddTable(ctx, schema.NewTable("users", schema.KindTable, []schema.Column{idColumn}))
		assert.True(t, errs.HasCode(err, errs.CodeTableAlreadyExists))
	})

	t.Run("add", func(t *testing.T) {
		r := blogReader()
		svc, mock := newService(t, mysql.Dialect{}, r)
		tags := schema.NewTable("tags", schema.KindTable, []schema.Column{
			idColumn, {Name: "post_id", Type: "integer", Fk: "posts"},
		})
		mock.ExpectExec(`CREATE TABLE "tags" ("id" integer NOT NULL AUTO_INCREMENT,"post_id" integer NOT NULL,` +
			`CONSTRAINT "tags_pkey" PRIMARY KEY ("id"),` +
			`CONSTRAINT "tags_post_id_fkey" FOREIGN KEY ("post_id") REFERENCES "posts" ("id"))`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.schema.Database(ctx)
		require.NoError(t, err)
		r.set(tags)

		snap, err := svc.AddTable(ctx, tags)
		require.NoError(t, err)
		assert.True(t, snap.Database.HasTable("tags"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("remove", func(t *testing.T) {
		r := blogReader()
		svc, mock := newService(t, mysql.Dialect{}, r)
		mock.ExpectExec(`DROP TABLE "users" CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.schema.Table(ctx, "users")
		require.NoError(t, err)
		delete(r.tables, "users")

		snap, err := svc.RemoveTable(ctx, "users")
		require.NoError(t, err)
		assert.False(t, snap.Database.HasTable("users"))
		assert.Nil(t, snap.Table)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
