package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

func TestOffsetLimit(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, " LIMIT 20 OFFSET 10", d.OffsetLimit(10, 20))
	assert.Equal(t, "", d.OffsetLimit(10, -1))
}

func TestInsertReturning(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, ` RETURNING "id"`, d.InsertReturning(`"id"`))
	assert.Equal(t, "", d.InsertReturning(""))
	assert.Equal(t, "", d.InsertOutput(`"id"`))
	assert.Equal(t, "", d.LastInsertIDQuery())
}

func TestValueWrappers(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "decode(?, 'base64')", d.BinaryParam())
	assert.Equal(t, `encode("data"::bytea, 'base64') as "data"`, d.BinarySelect(`"data"`))
}

func TestIgnoredTables(t *testing.T) {
	assert.Contains(t, Dialect{}.IgnoredTables(), "spatial_ref_sys")
	assert.Equal(t, "table", Dialect{}.TableKind("r"))
	assert.Equal(t, "view", Dialect{}.TableKind("v"))
}

func TestDefinitions(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, `ALTER TABLE "posts" RENAME TO "articles"`, d.RenameTable("posts", "articles").SQL)
	assert.Equal(t, `ALTER TABLE "posts" RENAME COLUMN "title" TO "name"`, d.RenameColumn("posts", "title", "name", "").SQL)
	assert.Equal(t, `ALTER TABLE "posts" ALTER COLUMN "name" TYPE varchar(100)`, d.RetypeColumn("posts", "title", "name", "varchar(100)").SQL)
	assert.Equal(t, `ALTER TABLE "posts" ALTER COLUMN "title" DROP NOT NULL`, d.SetNullable("posts", "title", "", true).SQL)
	assert.Equal(t, `ALTER TABLE "posts" ALTER COLUMN "title" SET NOT NULL`, d.SetNullable("posts", "title", "", false).SQL)
	assert.Equal(t, `ALTER TABLE "posts" ADD CONSTRAINT "posts_pkey" PRIMARY KEY ("id")`, d.AddPrimaryKey("posts", "id").SQL)
	assert.Equal(t, `ALTER TABLE "posts" DROP CONSTRAINT "posts_pkey"`, d.DropPrimaryKey("posts", "id").SQL)

	seq := d.CreateSequence("posts", "id")
	require.Len(t, seq, 1)
	assert.Equal(t, `CREATE SEQUENCE "posts_id_seq" OWNED BY "posts"."id"`, seq[0].SQL)

	probe, build := d.RestartSequence("posts", "id")
	assert.Empty(t, probe)
	assert.Equal(t, `SELECT setval('"posts_id_seq"', (SELECT max("id")+1 FROM "posts"))`, build(nil)[0].SQL)

	assert.Equal(t, `ALTER TABLE "posts" ALTER COLUMN "id" SET DEFAULT nextval('"posts_id_seq"')`, d.SetAutoIncrement("posts", "id", "").SQL)
	assert.Equal(t, `ALTER TABLE "posts" ALTER COLUMN "id" DROP DEFAULT`, d.DropAutoIncrement("posts", "id", "").SQL)
	assert.Equal(t, "", d.NullClause(false, true))
	assert.Equal(t, " NOT NULL", d.NullClause(false, false))
}

func TestFormatDSN(t *testing.T) {
	cfg := database.DefaultConfig(database.DriverPostgres, "blog")
	cfg.Username = "app"
	cfg.Password = "s3cr@t"

	connCfg, err := pgx.ParseConfig(FormatDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "localhost", connCfg.Host)
	assert.Equal(t, uint16(5432), connCfg.Port)
	assert.Equal(t, "blog", connCfg.Database)
	assert.Equal(t, "s3cr@t", connCfg.Password)
}

func TestClassify(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, errs.ErrKindConnectionFailed, d.Classify(&pgconn.PgError{Code: "08006"}))
	assert.Equal(t, errs.ErrKindPermissionDenied, d.Classify(&pgconn.PgError{Code: "28P01"}))
	assert.Equal(t, errs.ErrKindConflict, d.Classify(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, errs.ErrKindConflict, d.Classify(&pgconn.PgError{Code: "42P07"}))
	assert.Equal(t, errs.ErrKindQueryFailed, d.Classify(&pgconn.PgError{Code: "42601"}))
	assert.Equal(t, errs.ErrKindConnectionFailed, d.Classify(errors.New("tls handshake")))
}
