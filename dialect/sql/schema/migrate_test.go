package schema

import (
	"context"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

func users() *schema.Model {
	return schema.New("users",
		field.Int("id").AsPrimaryKey().AutoIncrement(),
		field.String("name"),
	)
}

func profiles() *schema.Model {
	return schema.New("profiles",
		field.Int("id").AsPrimaryKey().AutoIncrement(),
		field.Int("user_id").References("users", "id"),
	)
}

func comments() *schema.Model {
	return schema.New("comments",
		field.Int("id").AsPrimaryKey().AutoIncrement(),
		field.Int("profile_id").References("profiles", "id"),
		field.Int("author_id").References("users", "id"),
	)
}

func TestResolveOrder(t *testing.T) {
	t.Parallel()
	tables := func(ms []*schema.Model) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Table
		}
		return out
	}

	// Dependents registered first still come out after their targets.
	ordered, err := resolve([]*schema.Model{comments(), profiles(), users()})
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "profiles", "comments"}, tables(ordered))

	// Independent tables keep registration order.
	a := schema.New("a", field.Int("id").AsPrimaryKey())
	b := schema.New("b", field.Int("id").AsPrimaryKey())
	ordered, err = resolve([]*schema.Model{b, a})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, tables(ordered))
}

func TestResolveSelfReference(t *testing.T) {
	t.Parallel()
	m := schema.New("employees",
		field.Int("id").AsPrimaryKey().AutoIncrement(),
		field.Int("manager_id").References("employees", "id").Nillable(),
	)
	ordered, err := resolve([]*schema.Model{m})
	require.NoError(t, err)
	assert.Len(t, ordered, 1)
}

func TestResolveUnknownTarget(t *testing.T) {
	t.Parallel()
	_, err := resolve([]*schema.Model{profiles()})
	require.True(t, IsUnresolvedForeignKey(err))
	assert.Contains(t, err.Error(), "users.id")

	bad := schema.New("profiles",
		field.Int("id").AsPrimaryKey(),
		field.Int("user_id").References("users", "uid"),
	)
	_, err = resolve([]*schema.Model{bad, users()})
	assert.True(t, IsUnresolvedForeignKey(err), "unknown column on a known table")
}

func TestResolveCycle(t *testing.T) {
	t.Parallel()
	a := schema.New("a",
		field.Int("id").AsPrimaryKey(),
		field.Int("b_id").References("b", "id"),
	)
	b := schema.New("b",
		field.Int("id").AsPrimaryKey(),
		field.Int("a_id").References("a", "id"),
	)
	_, err := resolve([]*schema.Model{a, b})
	require.Error(t, err)
	assert.True(t, IsUnresolvedForeignKey(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestCreateIssuesOrderedDDL(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	drv := sql.OpenDB(dialect.SQLite, db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users .+").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS profiles .+FOREIGN KEY\\(user_id\\) REFERENCES users\\(id\\).+").
		WillReturnResult(sqlmock.NewResult(0, 0))

	m, err := NewMigrate(drv)
	require.NoError(t, err)
	require.NoError(t, m.Create(context.Background(), profiles(), users()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStopsOnFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	drv := sql.OpenDB(dialect.SQLite, db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users .+").
		WillReturnError(fmt.Errorf("disk full"))

	m, err := NewMigrate(drv)
	require.NoError(t, err)
	err = m.Create(context.Background(), users(), profiles())

	var step *StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, "users", step.Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIdempotent(t *testing.T) {
	t.Parallel()
	drv, err := sql.Open(dialect.SQLite, "file:migrate_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer drv.Close()
	drv.DB().SetMaxOpenConns(1)

	m, err := NewMigrate(drv)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, users(), profiles(), comments()))
	// Second run against the existing schema is a no-op.
	require.NoError(t, m.Create(ctx, users(), profiles(), comments()))
}
