package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/restdb/internal/condition"
	"github.com/koustreak/restdb/internal/database/mysql"
	"github.com/koustreak/restdb/internal/sqlgen"
)

func render(c condition.Condition) (string, []any) {
	return sqlgen.New(mysql.Dialect{}).Where(c)
}

func TestQueryContext_NilRestrictsNothing(t *testing.T) {
	qc := FromContext(context.Background())
	assert.Nil(t, qc)

	posts := blogSchema().table("posts")
	assert.True(t, condition.IsNone(qc.Condition(posts)))
	assert.Empty(t, qc.Values(posts))
}

func TestQueryContext_Immutable(t *testing.T) {
	s := blogSchema()
	posts := s.table("posts")
	title := posts.Column("title")

	base := (*QueryContext)(nil).With("posts", condition.ColumnCondition{Column: title, Operator: "eq", Value: "a"})
	narrowed := base.With("posts", condition.ColumnCondition{Column: title, Operator: "sw", Value: "b"})

	sql, args := render(base.Condition(posts))
	assert.Equal(t, ` WHERE "title" = ?`, sql)
	assert.Equal(t, []any{"a"}, args)

	sql, args = render(narrowed.Condition(posts))
	assert.Equal(t, ` WHERE ("title" = ? AND "title" LIKE ?)`, sql)
	assert.Equal(t, []any{"a", "b%"}, args)

	assert.True(t, condition.IsNone(narrowed.Condition(s.table("users"))))
}

func TestQueryContext_Tenancy(t *testing.T) {
	s := blogSchema()
	qc := (*QueryContext)(nil).
		WithScope(ColumnScope("user_id", "3")).
		WithValue("user_id", "3")

	sql, args := render(qc.Condition(s.table("posts")))
	assert.Equal(t, ` WHERE "user_id" = ?`, sql)
	assert.Equal(t, []any{"3"}, args)
	assert.Equal(t, Record{"user_id": "3"}, qc.Values(s.table("posts")))

	assert.True(t, condition.IsNone(qc.Condition(s.table("tags"))))
	assert.Empty(t, qc.Values(s.table("tags")))
}

func TestQueryContext_RoundTrip(t *testing.T) {
	qc := (*QueryContext)(nil).WithValue("tenant", 1)
	ctx := NewContext(context.Background(), qc)
	assert.Same(t, qc, FromContext(ctx))
}
