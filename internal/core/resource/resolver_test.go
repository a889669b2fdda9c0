package resource_test

import (
	"strings"
	"testing"

	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ValidIdentifiers(t *testing.T) {
	tests := []struct {
		schema string
		name   string
	}{
		{"public", "users"},
		{"_private", "t1"},
		{"Sales2024", "Order_Items"},
		{"a", strings.Repeat("x", domain.MaxIdentifierLength)},
	}

	for _, tt := range tests {
		t.Run(tt.schema+"."+tt.name, func(t *testing.T) {
			addr, err := resource.Resolve(tt.schema, tt.name, domain.Table)
			require.NoError(t, err)
			assert.Equal(t, tt.schema, addr.Schema.String())
			assert.Equal(t, tt.name, addr.Name.String())
			assert.Equal(t, domain.Table, addr.Kind)
		})
	}
}

func TestResolve_RejectsUnsafeSegments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"semicolon", "users;drop"},
		{"single quote", "users'"},
		{"double quote", `users"`},
		{"space", "user s"},
		{"tab", "users\t"},
		{"comment", "users--"},
		{"dot", "public.users"},
		{"leading digit", "1users"},
		{"keyword separator", "users OR 1=1"},
		{"unicode letter", "usérs"},
		{"too long", strings.Repeat("a", domain.MaxIdentifierLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resource.Resolve("public", tt.raw, domain.Table)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)

			_, err = resource.Resolve(tt.raw, "users", domain.Function)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
		})
	}
}

func TestResolve_ErrorNamesSegment(t *testing.T) {
	_, err := resource.Resolve("public", "bad;name", domain.Function)
	require.Error(t, err)

	e, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(e.Message, "function: "))
}

type fakeCatalog struct {
	tables    map[string]bool
	functions map[string]bool
}

func (c fakeCatalog) HasTable(schema, name string) bool {
	return c.tables[schema+"."+name]
}

func (c fakeCatalog) HasFunction(schema, name string) bool {
	return c.functions[schema+"."+name]
}

func TestResolver_WithCatalog(t *testing.T) {
	r := resource.NewResolver(fakeCatalog{
		tables:    map[string]bool{"public.users": true},
		functions: map[string]bool{"public.add": true},
	})

	addr, err := r.Resolve("public", "users", domain.Table)
	require.NoError(t, err)
	assert.Equal(t, "public.users", addr.String())

	_, err = r.Resolve("public", "orders", domain.Table)
	assert.ErrorIs(t, err, domain.ErrUnknownResource)

	_, err = r.Resolve("public", "add", domain.Function)
	require.NoError(t, err)

	// a table is not a function
	_, err = r.Resolve("public", "users", domain.Function)
	assert.ErrorIs(t, err, domain.ErrUnknownResource)

	_, err = r.Resolve("public", "us;ers", domain.Table)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}

func TestResolver_WithoutCatalog(t *testing.T) {
	r := resource.NewResolver(nil)

	addr, err := r.Resolve("anything", "goes", domain.Function)
	require.NoError(t, err)
	assert.Equal(t, domain.Function, addr.Kind)
}
