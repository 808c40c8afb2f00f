package shape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deriveBase struct {
	CreatedAt time.Time
}

type deriveOrg struct {
	ID   string `json:"id"`
	Name string
}

type deriveUser struct {
	deriveBase
	ID        string      `json:"id"`
	FirstName string      `shape:"exp=.name.first"`
	AgeValue  int64       `shape:"alias=age"`
	Org       *deriveOrg  `json:"organization" shape:"alias=org,nested"`
	Teams     []deriveOrg `shape:"nested"`
	Labels    []string    `json:"labels,omitempty"`
	Ignored   string      `json:"-"`
	Skipped   string      `shape:"-"`
	secret    string
}

type deriveBadNested struct {
	Orgs map[string]deriveOrg `shape:"nested"`
}

type deriveBadConflict struct {
	Org deriveOrg `shape:"alias=org,exp=.org"`
}

type Option[T any] struct {
	value T
	some  bool
}

type deriveOptionalHolder struct {
	Org  Option[deriveOrg] `shape:"nested"`
	Note Option[string]
}

type deriveDoubleOption struct {
	Org *Option[deriveOrg] `shape:"nested"`
}

type deriveRenamed struct {
	ID string `json:"id"`
}

type deriveRenamedHolder struct {
	Owner *deriveRenamed `shape:"nested"`
}

type deriveDuplicate struct {
	Name  string
	Alias string `json:"name"`
}

func TestDerive(t *testing.T) {
	rt, err := Derive[deriveUser]()
	require.NoError(t, err)

	assert.Equal(t, "deriveUser", rt.Name)
	want := []FieldSpec{
		{Name: "created_at", GoName: "CreatedAt", Declared: Named("Time")},
		{Name: "id", GoName: "ID", Declared: Opaque("string")},
		{Name: "first_name", GoName: "FirstName", Declared: Opaque("string"), Kind: Expression, Source: ".name.first"},
		{Name: "age_value", GoName: "AgeValue", Declared: Opaque("int64"), Kind: Alias, Source: "age"},
		{Name: "organization", GoName: "Org", Declared: OptionalOf("deriveOrg"), Kind: Alias, Source: "org", Nested: true},
		{Name: "teams", GoName: "Teams", Declared: TypeRef{Name: "deriveOrg", Wrapper: WrapCollection, Expr: "[]shape.deriveOrg"}, Nested: true},
		{Name: "labels", GoName: "Labels", Declared: Opaque("[]string")},
	}
	assert.Equal(t, want, rt.Fields)
}

func TestDerive_Cached(t *testing.T) {
	a, err := Derive[deriveOrg]()
	require.NoError(t, err)
	b, err := Derive[*deriveOrg]()
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := Derive[deriveOrg](WithNaming(NamingNone))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, "Name", c.Fields[1].Name)
}

func TestDerive_Errors(t *testing.T) {
	_, err := Derive[deriveBadNested]()
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "deriveBadNested", de.Type)
	assert.Equal(t, "Orgs", de.Field)

	_, err = Derive[deriveBadConflict]()
	assert.ErrorIs(t, err, ErrDefinition)

	_, err = Derive[int]()
	assert.ErrorIs(t, err, ErrDefinition)

	_, err = Derive[struct{ A string }]()
	assert.ErrorIs(t, err, ErrDefinition)

	rt, err := Derive[struct{ A string }](WithName("Anonymous"))
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", rt.Name)
}

func TestDerive_DuplicateProjectionName(t *testing.T) {
	rt, err := Derive[deriveDuplicate]()
	require.NoError(t, err)

	_, err = Compile(rt)
	assert.ErrorIs(t, err, ErrDefinition)
}

func TestRegisterType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterType[deriveOrg](WithRegistry(r)))
	require.NoError(t, RegisterType[deriveUser](WithRegistry(r)))
	require.NoError(t, r.Validate())

	text, err := r.Shape("deriveUser")
	require.NoError(t, err)
	assert.Equal(t,
		"created_at, id, first_name := .name.first, age_value := .age, "+
			"organization := .org { id, name,  }, teams := .teams { id, name,  }, labels, ",
		text)

	assert.Error(t, RegisterType[deriveOrg](WithRegistry(r)), "重复注册")
}

func TestDerive_OptionUnwrapsOneLayer(t *testing.T) {
	rt, err := Derive[deriveOptionalHolder]()
	require.NoError(t, err)
	require.Len(t, rt.Fields, 2)

	org := rt.Fields[0]
	assert.Equal(t, "deriveOrg", org.NestedType())
	assert.Equal(t, WrapOptional, org.Declared.Wrapper)
	assert.False(t, rt.Fields[1].Declared.IsNamed())

	r := NewRegistry()
	require.NoError(t, RegisterType[deriveOrg](WithRegistry(r)))
	require.NoError(t, RegisterType[deriveOptionalHolder](WithRegistry(r)))
	require.NoError(t, r.Validate())
	text, err := r.Shape("deriveOptionalHolder")
	require.NoError(t, err)
	assert.Equal(t, "org := .org { id, name,  }, note, ", text)

	_, err = Derive[deriveDoubleOption]()
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Org", de.Field)
}

func TestRegisterType_RenamedNestedType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterType[deriveRenamed](WithRegistry(r), WithName("Owner")))
	require.NoError(t, RegisterType[deriveRenamedHolder](WithRegistry(r)))
	require.NoError(t, r.Validate())

	text, err := r.Shape("deriveRenamedHolder")
	require.NoError(t, err)
	assert.Equal(t, "owner := .owner { id,  }, ", text)

	// 同一类型不能再换名字
	_, err = Derive[deriveRenamed](WithName("Other"))
	assert.ErrorIs(t, err, ErrDefinition)
}
