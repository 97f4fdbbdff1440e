package sqlserver

import (
	"net/url"
	"testing"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

func TestOffsetLimit(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, " OFFSET 10 ROWS FETCH NEXT 20 ROWS ONLY", d.OffsetLimit(10, 20))
	assert.Equal(t, "", d.OffsetLimit(-1, -1))
}

func TestInsertOutput(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, ` OUTPUT INSERTED."id"`, d.InsertOutput(`"id"`))
	assert.Equal(t, "", d.InsertReturning(`"id"`))
}

func TestValueWrappers(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "1=0", d.FalseLiteral())
	assert.Equal(t, ` ESCAPE '\'`, d.LikeEscape())
	assert.Equal(t, `"geom".STContains(geometry::STGeomFromText(?,0))=1`, d.SpatialPredicate("Contains", `"geom"`, true))
	assert.Equal(t, `"geom".STIsValid()=1`, d.SpatialPredicate("IsValid", `"geom"`, false))
	assert.Equal(t, `REPLACE("geom".STAsText(),' (','(') as "geom"`, d.GeometrySelect(`"geom"`))
}

func TestTableKind(t *testing.T) {
	assert.Equal(t, "table", Dialect{}.TableKind("U "))
	assert.Equal(t, "view", Dialect{}.TableKind("V "))
	assert.Equal(t, "", Dialect{}.TableKind("S "))
}

func TestDefinitions(t *testing.T) {
	d := Dialect{}

	st := d.RenameColumn("posts", "title", "name", "")
	assert.Equal(t, "EXEC sp_rename ?, ?, 'COLUMN'", st.SQL)
	assert.Equal(t, []any{"posts.title", "name"}, st.Args)

	probe, build := d.RestartSequence("posts", "id")
	assert.Equal(t, `SELECT coalesce(max("id"),0)+1 FROM "posts"`, probe)
	assert.Equal(t, `ALTER SEQUENCE "posts_id_seq" RESTART WITH 42`, build(int64(42))[0].SQL)

	assert.Equal(t, `ALTER TABLE "posts" ADD CONSTRAINT "posts_id_def" DEFAULT NEXT VALUE FOR "posts_id_seq" FOR "id"`,
		d.SetAutoIncrement("posts", "id", "").SQL)
	assert.Equal(t, `ALTER TABLE "posts" DROP CONSTRAINT "posts_id_def"`, d.DropAutoIncrement("posts", "id", "").SQL)
	assert.Equal(t, " IDENTITY(1,1)", d.AutoIncrementClause(false))
	assert.Equal(t, "", d.AutoIncrementClause(true))
	assert.Equal(t, "", d.DropCascade())
	assert.Equal(t, "ADD", d.AddColumnKeyword())
}

func TestFormatDSN(t *testing.T) {
	cfg := database.DefaultConfig(database.DriverSQLServer, "blog")
	cfg.Username = "sa"
	cfg.Password = "p@ss"

	u, err := url.Parse(FormatDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "localhost:1433", u.Host)
	assert.Equal(t, "blog", u.Query().Get("database"))
	assert.Equal(t, "10", u.Query().Get("dial timeout"))
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
}

func TestClassify(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, errs.ErrKindConflict, d.Classify(mssql.Error{Number: errUniqueConstraint}))
	assert.Equal(t, errs.ErrKindConnectionFailed, d.Classify(mssql.Error{Number: errLoginFailed}))
	assert.Equal(t, errs.ErrKindQueryFailed, d.Classify(mssql.Error{Number: 102}))
}
