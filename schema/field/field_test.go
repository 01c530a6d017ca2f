package field

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilders(t *testing.T) {
	t.Parallel()
	f := Int("id").AsPrimaryKey().AutoIncrement()
	assert.Equal(t, "id", f.Name)
	assert.Equal(t, TypeInt, f.Type)
	assert.True(t, f.PrimaryKey)
	assert.True(t, f.Increment)

	f = String("email").SetUnique()
	assert.Equal(t, TypeString, f.Type)
	assert.True(t, f.Unique)
	assert.Zero(t, f.Size)

	f = String("name").MaxLen(50)
	assert.Equal(t, 50, f.Size)

	f = Text("bio").Nillable()
	assert.Equal(t, TypeText, f.Type)
	assert.True(t, f.Nullable)

	f = String("role").SetDefault("user")
	assert.Equal(t, "user", f.Default)

	f = Int("user_id").References("users", "id")
	require.NotNil(t, f.Ref)
	assert.Equal(t, "users", f.Ref.Table)
	assert.Equal(t, "id", f.Ref.Column)

	f = Time("created_at").DefaultNow()
	assert.Equal(t, GeneratedNow, f.Generated)

	f = UUID("token").DefaultUUID()
	assert.Equal(t, GeneratedUUID, f.Generated)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		field   *Descriptor
		wantErr bool
	}{
		{name: "plain int", field: Int("n")},
		{name: "serial pk", field: Serial("id").AsPrimaryKey()},
		{name: "increment without pk", field: Int("n").AutoIncrement(), wantErr: true},
		{name: "increment on string", field: &Descriptor{Name: "s", Type: TypeString, PrimaryKey: true, Increment: true}, wantErr: true},
		{name: "now on time", field: Time("at").DefaultNow()},
		{name: "now on date", field: Date("d").DefaultNow()},
		{name: "now on int", field: &Descriptor{Name: "n", Type: TypeInt, Generated: GeneratedNow}, wantErr: true},
		{name: "uuid default on uuid", field: UUID("u").DefaultUUID()},
		{name: "uuid default on text", field: &Descriptor{Name: "s", Type: TypeText, Generated: GeneratedUUID}, wantErr: true},
		{name: "empty name", field: &Descriptor{Type: TypeInt}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAcceptsValue(t *testing.T) {
	t.Parallel()
	assert.True(t, TypeInt.AcceptsValue(42))
	assert.True(t, TypeInt.AcceptsValue(int64(42)))
	assert.False(t, TypeInt.AcceptsValue("42"))
	assert.True(t, TypeFloat64.AcceptsValue(3.14))
	assert.True(t, TypeFloat64.AcceptsValue(3))
	assert.True(t, TypeString.AcceptsValue("hi"))
	assert.False(t, TypeString.AcceptsValue(1))
	assert.True(t, TypeBool.AcceptsValue(true))
	assert.True(t, TypeDate.AcceptsValue("2024-12-25"))
	assert.True(t, TypeDate.AcceptsValue(time.Now()))
	assert.True(t, TypeTime.AcceptsValue(time.Now()))
	assert.True(t, TypeUUID.AcceptsValue(uuid.New()))
	assert.True(t, TypeUUID.AcceptsValue("d2719e2d-14f8-4b54-b41f-1e1f4d4c5a9f"))
	assert.False(t, TypeUUID.AcceptsValue(7))

	// Nullability is the caller's concern.
	assert.True(t, TypeInt.AcceptsValue(nil))
	assert.True(t, TypeString.AcceptsValue(nil))
}
