package mysql

import (
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

func TestOffsetLimit(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, " LIMIT 10, 20", d.OffsetLimit(10, 20))
	assert.Equal(t, "", d.OffsetLimit(-1, 20))
	assert.Equal(t, "", d.OffsetLimit(0, -1))
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		columnType string
		dataType   string
		precision  int
		scale      int
	}{
		{"tinyint(1)", "tinyint", 1, 0},
		{"decimal(10,2)", "decimal", 10, 2},
		{"int(11) unsigned", "int", 11, 0},
		{"longtext", "longtext", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.columnType, func(t *testing.T) {
			dataType, precision, scale, ok := Dialect{}.ColumnType(tt.columnType)
			require.True(t, ok)
			assert.Equal(t, tt.dataType, dataType)
			assert.Equal(t, tt.precision, precision)
			assert.Equal(t, tt.scale, scale)
		})
	}
}

func TestTableKind(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "table", d.TableKind("BASE TABLE"))
	assert.Equal(t, "view", d.TableKind("VIEW"))
	assert.Equal(t, "", d.TableKind("SYSTEM VIEW"))
}

func TestValueWrappers(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, `TO_BASE64("data") as "data"`, d.BinarySelect(`"data"`))
	assert.Equal(t, `ST_AsText("geom") as "geom"`, d.GeometrySelect(`"geom"`))
	assert.Equal(t, `ST_Contains("geom", ST_GeomFromText(?))=TRUE`, d.SpatialPredicate("Contains", `"geom"`, true))
	assert.Equal(t, `ST_IsValid("geom")=TRUE`, d.SpatialPredicate("IsValid", `"geom"`, false))
}

func TestDefinitions(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, `RENAME TABLE "posts" TO "articles"`, d.RenameTable("posts", "articles").SQL)
	assert.Equal(t, `ALTER TABLE "posts" CHANGE "title" "name" varchar(255) NOT NULL`,
		d.RenameColumn("posts", "title", "name", "varchar(255) NOT NULL").SQL)
	assert.Equal(t, `ALTER TABLE "posts" DROP FOREIGN KEY "posts_user_id_fkey"`, d.DropForeignKey("posts", "user_id").SQL)
	assert.Equal(t, `ALTER TABLE "posts" DROP PRIMARY KEY`, d.DropPrimaryKey("posts", "id").SQL)
	assert.Nil(t, d.CreateSequence("posts", "id"))
	probe, build := d.RestartSequence("posts", "id")
	assert.Empty(t, probe)
	assert.Empty(t, build(nil))
}

func TestFormatDSN(t *testing.T) {
	cfg := database.DefaultConfig(database.DriverMySQL, "blog")
	cfg.Username = "app"
	cfg.Password = "secret"
	cfg.ConnectTimeout = 5 * time.Second

	parsed, err := gomysql.ParseDSN(FormatDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Equal(t, "blog", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "'ANSI,ONLY_FULL_GROUP_BY'", parsed.Params["sql_mode"])
}

func TestClassify(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, errs.ErrKindPermissionDenied, d.Classify(&gomysql.MySQLError{Number: errAccessDenied}))
	assert.Equal(t, errs.ErrKindConflict, d.Classify(&gomysql.MySQLError{Number: errDuplicateEntry}))
	assert.Equal(t, errs.ErrKindQueryFailed, d.Classify(&gomysql.MySQLError{Number: 1064}))
	assert.Equal(t, errs.ErrKindConnectionFailed, d.Classify(errors.New("dial tcp: refused")))
}
