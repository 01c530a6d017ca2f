package quill_test

import (
	"context"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/syssam/quill"
	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

type User struct {
	ID    int
	Name  string
	Email string
	Age   int
	Role  string
}

var userSchema = schema.New("users",
	field.Int("id").AsPrimaryKey().AutoIncrement(),
	field.String("name").MaxLen(50),
	field.String("email").SetUnique(),
	field.Int("age"),
	field.String("role").SetDefault("user"),
)

func (u *User) Schema() *schema.Model { return userSchema }
func (u *User) Values() []any         { return []any{u.ID, u.Name, u.Email, u.Age, u.Role} }
func (u *User) Pointers() []any       { return []any{&u.ID, &u.Name, &u.Email, &u.Age, &u.Role} }

type Profile struct {
	ID     int
	UserID int
	Bio    string
}

var profileSchema = schema.New("profiles",
	field.Int("id").AsPrimaryKey().AutoIncrement(),
	field.Int("user_id").References("users", "id"),
	field.Text("bio").SetDefault(""),
)

func (p *Profile) Schema() *schema.Model { return profileSchema }
func (p *Profile) Values() []any         { return []any{p.ID, p.UserID, p.Bio} }
func (p *Profile) Pointers() []any       { return []any{&p.ID, &p.UserID, &p.Bio} }

func newClient(t *testing.T, opts ...quill.ClientOption) *quill.Client {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	drv, err := sql.Open(dialect.SQLite, dsn)
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	c, err := quill.NewClient(drv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Register(&User{}, &Profile{}))
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

func createUser(t *testing.T, c *quill.Client, name, email string, age int) *User {
	t.Helper()
	u, err := quill.Create[User](context.Background(), c,
		sql.Set("name", name),
		sql.Set("email", email),
		sql.Set("age", age),
	)
	require.NoError(t, err)
	return u
}

func TestOpen(t *testing.T) {
	c, err := quill.Open(dialect.SQLite, "file:open_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, dialect.SQLite, c.Driver().Dialect())
}

func TestCreate(t *testing.T) {
	c := newClient(t)

	u := createUser(t, c, "ade", "ade@example.com", 24)
	assert.Positive(t, u.ID)
	assert.Equal(t, "ade", u.Name)
	// Unset columns come back with their declared defaults.
	assert.Equal(t, "user", u.Role)

	v := createUser(t, c, "bea", "bea@example.com", 31)
	assert.Greater(t, v.ID, u.ID)
}

func TestCreateValidation(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := quill.Create[User](ctx, c, sql.Set("name", "ade"))
	require.Error(t, err, "email has no default and no value")
	assert.True(t, quill.IsValidationError(err))

	_, err = quill.Create[User](ctx, c, sql.Set("nickname", "ade"))
	assert.True(t, sql.IsInvalidField(err))

	_, err = quill.Create[User](ctx, c,
		sql.Set("name", "ade"), sql.Set("email", "a@x"), sql.Set("age", "old"))
	assert.True(t, sql.IsTypeMismatch(err))
}

func TestGet(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	createUser(t, c, "ade", "ade@example.com", 24)

	u, err := quill.Get[User](ctx, c, sql.EQ("email", "ade@example.com"))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ade", u.Name)

	// No match is not an error.
	u, err = quill.Get[User](ctx, c, sql.EQ("email", "nobody@example.com"))
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFilterAndCount(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	createUser(t, c, "ade", "ade@example.com", 17)
	createUser(t, c, "bea", "bea@example.com", 24)
	createUser(t, c, "cal", "cal@example.com", 31)

	adults, err := quill.Filter[User](ctx, c, sql.GTE("age", 18))
	require.NoError(t, err)
	assert.Len(t, adults, 2)

	both, err := quill.Filter[User](ctx, c,
		sql.And(sql.GTE("age", 18), sql.LT("age", 30)))
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "bea", both[0].Name)

	none, err := quill.Filter[User](ctx, c, sql.GT("age", 99))
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := quill.All[User](ctx, c)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := quill.Count[User](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = quill.Count[User](ctx, c, sql.LT("age", 18))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdate(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := createUser(t, c, "ade", "ade@example.com", 24)

	u.Role = "admin"
	u.Age = 25
	require.NoError(t, c.Update(ctx, u))

	got, err := quill.Get[User](ctx, c, sql.EQ("id", u.ID))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, 25, got.Age)

	ghost := &User{ID: 9999, Name: "x", Email: "x@x", Age: 1, Role: "user"}
	err = c.Update(ctx, ghost)
	assert.True(t, quill.IsNotFound(err))
}

func TestSet(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := createUser(t, c, "ade", "ade@example.com", 24)

	require.NoError(t, quill.Set[User](ctx, c, u.ID, sql.Set("role", "admin")))

	got, err := quill.Get[User](ctx, c, sql.EQ("id", u.ID))
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	// Untouched columns keep their values.
	assert.Equal(t, 24, got.Age)

	err = quill.Set[User](ctx, c, 9999, sql.Set("role", "admin"))
	assert.True(t, quill.IsNotFound(err))
}

func TestSave(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	u := &User{Name: "ade", Email: "ade@example.com", Age: 24, Role: "user"}
	require.NoError(t, c.Save(ctx, u))
	require.Positive(t, u.ID, "insert path assigns the generated key")

	u.Age = 25
	require.NoError(t, c.Save(ctx, u))

	n, err := quill.Count[User](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "second save updates instead of inserting")

	got, err := quill.Get[User](ctx, c, sql.EQ("id", u.ID))
	require.NoError(t, err)
	assert.Equal(t, 25, got.Age)
}

func TestDelete(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := createUser(t, c, "ade", "ade@example.com", 24)

	require.NoError(t, c.Delete(ctx, u))

	got, err := quill.Get[User](ctx, c, sql.EQ("id", u.ID))
	require.NoError(t, err)
	assert.Nil(t, got)

	err = c.Delete(ctx, u)
	assert.True(t, quill.IsNotFound(err), "second delete matches nothing")
}

func TestDeleteMany(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	a := createUser(t, c, "ade", "ade@example.com", 24)
	b := createUser(t, c, "bea", "bea@example.com", 31)
	ghost := &User{ID: 9999, Name: "x", Email: "x@x", Age: 1, Role: "user"}

	err := c.DeleteMany(ctx, a, ghost, b)
	require.True(t, quill.IsNotFound(err))
	assert.Contains(t, err.Error(), "9999")

	// The failure aborts the batch: a is gone, b survived.
	n, err := quill.Count[User](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.DeleteMany(ctx, b))
}

func TestJoin(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	ade := createUser(t, c, "ade", "ade@example.com", 24)
	createUser(t, c, "bea", "bea@example.com", 31)

	_, err := quill.Create[Profile](ctx, c,
		sql.Set("user_id", ade.ID), sql.Set("bio", "gopher"))
	require.NoError(t, err)

	pairs, err := quill.Join[User, Profile](ctx, c,
		sql.EQ("users.id", sql.Col("profiles.user_id")))
	require.NoError(t, err)
	require.Len(t, pairs, 1, "bea has no profile and is excluded")
	assert.Equal(t, "ade", pairs[0].Left.Name)
	assert.Equal(t, "gopher", pairs[0].Right.Bio)

	// Extra conditions narrow the join.
	pairs, err = quill.Join[User, Profile](ctx, c, sql.And(
		sql.EQ("users.id", sql.Col("profiles.user_id")),
		sql.GT("age", 30),
	))
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestRegisterIdempotent(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Register(&User{}))
	assert.Equal(t, 2, c.Registry().Len())

	other := schema.New("users", field.Int("id").AsPrimaryKey())
	assert.Error(t, c.Registry().Register(other))
}

func TestMigrateIdempotent(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	createUser(t, c, "ade", "ade@example.com", 24)

	// A second migration never touches existing tables or data.
	require.NoError(t, c.Migrate(ctx))
	n, err := quill.Count[User](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConcurrentAccess(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			u, err := quill.Create[User](ctx, c,
				sql.Set("name", "user"),
				sql.Set("email", "user"+string(rune('a'+i))+"@example.com"),
				sql.Set("age", 20+i),
			)
			if err != nil {
				return err
			}
			_, err = quill.Get[User](ctx, c, sql.EQ("id", u.ID))
			return err
		})
	}
	require.NoError(t, g.Wait())

	n, err := quill.Count[User](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestCreatePostgresReturning(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	c, err := quill.NewClient(sql.OpenDB(dialect.Postgres, db))
	require.NoError(t, err)
	require.NoError(t, c.Register(&User{}))

	mock.ExpectQuery("INSERT INTO users (name, email, age, role) VALUES ($1, $2, $3, $4) RETURNING id").
		WithArgs("ade", "ade@example.com", 24, "user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	u, err := quill.Create[User](context.Background(), c,
		sql.Set("name", "ade"),
		sql.Set("email", "ade@example.com"),
		sql.Set("age", 24),
	)
	require.NoError(t, err)
	assert.Equal(t, 7, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionErrorWrapping(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := createUser(t, c, "ade", "ade@example.com", 24)

	// A unique constraint violation surfaces as a connection error.
	_, err := quill.Create[User](ctx, c,
		sql.Set("name", "dup"),
		sql.Set("email", u.Email),
		sql.Set("age", 30),
	)
	require.Error(t, err)
	assert.True(t, quill.IsConnectionError(err))
}
