package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("User", func() string { return "id, " }))

	assert.Error(t, r.Register("User", func() string { return "name, " }), "重复注册")
	assert.Error(t, r.Register("", func() string { return "" }))
	assert.Error(t, r.Register("Nil", nil))
	assert.Panics(t, func() { r.MustRegister("User", func() string { return "" }) })

	text, err := r.Shape("User")
	require.NoError(t, err)
	assert.Equal(t, "id, ", text)

	_, err = r.Shape("Missing")
	assert.ErrorIs(t, err, ErrDefinition)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("User", func() string { return "id, " })

	require.NoError(t, r.Unregister("User"))
	_, ok := r.Lookup("User")
	assert.False(t, ok)
	assert.Error(t, r.Unregister("User"))
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("User", func() string { return "" })
	r.MustRegister("Account", func() string { return "" })
	r.MustRegister("Organization", func() string { return "" })

	assert.Equal(t, []string{"Account", "Organization", "User"}, r.Names())
}

func TestRegistry_RegisterModel(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterModel(userType()))
	require.NoError(t, r.RegisterModel(organizationType()))
	require.NoError(t, r.Validate())

	text, err := r.Shape("User")
	require.NoError(t, err)
	assert.Equal(t, "id, first_name := .name.first, age_value := .age, organization := .org { id, name,  }, ", text)

	producer, ok := r.Lookup("User")
	require.True(t, ok)
	assert.Equal(t, text, producer())

	expanded, err := Expand("select User { shape::User }", r)
	require.NoError(t, err)
	assert.Equal(t, "select User { "+text+" }", expanded)
}

func TestRegistry_MixedProducers(t *testing.T) {
	r := NewRegistry()
	// Organization 来自生成的代码，User 来自反射派生
	r.MustRegister("Organization", func() string { return "id, " })
	require.NoError(t, r.RegisterModel(userType()))
	require.NoError(t, r.Validate())

	text, err := r.Shape("User")
	require.NoError(t, err)
	assert.Contains(t, text, "organization := .org { id,  }, ")
}

func TestRegistry_ValidateErrors(t *testing.T) {
	t.Run("unknown nested type", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterModel(userType()))

		err := r.Validate()
		var ue *UnknownTypeError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "Organization", ue.TypeName)

		_, err = r.Shape("User")
		assert.ErrorAs(t, err, &ue)

		producer, _ := r.Lookup("User")
		assert.Panics(t, func() { producer() })
	})

	t.Run("cycle", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterModel(&RecordType{Name: "A", Fields: []FieldSpec{
			{Name: "b", Nested: true, Declared: Named("B")},
		}}))
		require.NoError(t, r.RegisterModel(&RecordType{Name: "B", Fields: []FieldSpec{
			{Name: "a", Nested: true, Declared: CollectionOf("A")},
		}}))

		var ce *CycleError
		require.ErrorAs(t, r.Validate(), &ce)

		// 未校验直接求值时由深度保护终止
		_, err := r.Shape("A")
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("invalid model", func(t *testing.T) {
		r := NewRegistry()
		err := r.RegisterModel(&RecordType{Name: "T", Fields: []FieldSpec{{Name: "a", Kind: Alias}}})
		assert.ErrorIs(t, err, ErrDefinition)
		assert.Empty(t, r.Names())
	})
}
