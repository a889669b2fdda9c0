package parser_test

import (
	"net/url"
	"testing"

	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ids []domain.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func TestParse_Empty(t *testing.T) {
	spec, err := parser.Parse("")
	require.NoError(t, err)

	_, hasLimit := spec.Limit()
	_, hasOffset := spec.Offset()
	assert.False(t, hasLimit)
	assert.False(t, hasOffset)
	assert.Empty(t, spec.Columns())
	assert.Empty(t, spec.Filters())
	assert.Empty(t, spec.Sort())
	assert.False(t, spec.Distinct())
}

func TestParse_ReservedKeys(t *testing.T) {
	spec, err := parser.Parse("columns=id,name&limit=2&offset=10&sort=-id")
	require.NoError(t, err)

	limit, ok := spec.Limit()
	require.True(t, ok)
	assert.Equal(t, uint64(2), limit)

	offset, ok := spec.Offset()
	require.True(t, ok)
	assert.Equal(t, uint64(10), offset)

	assert.Equal(t, []string{"id", "name"}, names(spec.Columns()))

	sorts := spec.Sort()
	require.Len(t, sorts, 1)
	assert.Equal(t, "id", sorts[0].Column.String())
	assert.Equal(t, domain.Desc, sorts[0].Direction)
	assert.Equal(t, domain.NullsDefault, sorts[0].Nulls)
}

func TestParse_Distinct(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		distinct bool
		on       []string
	}{
		{"absent", "", false, nil},
		{"true", "distinct=true", true, nil},
		{"false", "distinct=false", false, nil},
		{"distinct_on implies distinct", "distinct_on=a,b", true, []string{"a", "b"}},
		{"distinct_on overrides false", "distinct=false&distinct_on=a", true, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := parser.Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.distinct, spec.Distinct())
			if tt.on == nil {
				assert.Empty(t, spec.DistinctOn())
			} else {
				assert.Equal(t, tt.on, names(spec.DistinctOn()))
			}
		})
	}
}

func TestParse_Sort(t *testing.T) {
	spec, err := parser.Parse("sort=a,-b,c.nullsfirst,-d.nullslast,e.desc")
	require.NoError(t, err)

	want := []struct {
		col   string
		dir   domain.SortDirection
		nulls domain.NullsOrder
	}{
		{"a", domain.Asc, domain.NullsDefault},
		{"b", domain.Desc, domain.NullsDefault},
		{"c", domain.Asc, domain.NullsFirst},
		{"d", domain.Desc, domain.NullsLast},
		{"e", domain.Desc, domain.NullsDefault},
	}

	got := spec.Sort()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.col, got[i].Column.String())
		assert.Equal(t, w.dir, got[i].Direction)
		assert.Equal(t, w.nulls, got[i].Nulls)
	}
}

func TestParse_Filters(t *testing.T) {
	spec, err := parser.Parse("age=gt.18&age=lt.65&name=ilike.%25ann%25&deleted_at=is_null.true&id=in.(1,2,3)")
	require.NoError(t, err)

	filters := spec.Filters()
	require.Len(t, filters, 5)

	assert.Equal(t, "age", filters[0].Column.String())
	assert.Equal(t, domain.Gt, filters[0].Operator)
	assert.Equal(t, "18", filters[0].Operand.Value())

	assert.Equal(t, domain.Lt, filters[1].Operator)
	assert.Equal(t, "65", filters[1].Operand.Value())

	assert.Equal(t, domain.ILike, filters[2].Operator)
	assert.Equal(t, "%ann%", filters[2].Operand.Value())

	assert.Equal(t, domain.IsNull, filters[3].Operator)
	assert.Equal(t, "true", filters[3].Operand.Value())

	assert.Equal(t, domain.In, filters[4].Operator)
	assert.True(t, filters[4].Operand.IsList())
	assert.Equal(t, []string{"1", "2", "3"}, filters[4].Operand.List())
}

func TestParse_AllOperators(t *testing.T) {
	for token, op := range domain.Operators {
		t.Run(token, func(t *testing.T) {
			operand := "x"
			switch op {
			case domain.IsNull:
				operand = "false"
			case domain.In:
				operand = "(x)"
			}
			spec, err := parser.Parse("col=" + token + "." + operand)
			require.NoError(t, err)
			require.Len(t, spec.Filters(), 1)
			assert.Equal(t, op, spec.Filters()[0].Operator)
			assert.Equal(t, token, op.String())
		})
	}
}

func TestParse_InList(t *testing.T) {
	tests := []struct {
		name    string
		operand string
		want    []string
	}{
		{"single", "(a)", []string{"a"}},
		{"several", "(a,b,c)", []string{"a", "b", "c"}},
		{"quoted comma", `(a,"b,c")`, []string{"a", "b,c"}},
		{"quoted parens", `("f(x)",y)`, []string{"f(x)", "y"}},
		{"dots", "(1.5,2.5)", []string{"1.5", "2.5"}},
		{"spaces after commas", "(1, 2, 3)", []string{"1", "2", "3"}},
		{"padded items", "( a , new york )", []string{"a", "new york"}},
		{"quoted spaces kept", `(" b ", c)`, []string{" b ", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := parser.ParseValues(url.Values{"v": {"in." + tt.operand}})
			require.NoError(t, err)
			require.Len(t, spec.Filters(), 1)
			assert.Equal(t, tt.want, spec.Filters()[0].Operand.List())
		})
	}
}

func TestParse_MalformedQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown operator", "age=between.1"},
		{"missing separator", "age=18"},
		{"empty operand", "age=eq."},
		{"negative limit", "limit=-1"},
		{"non numeric limit", "limit=ten"},
		{"non numeric offset", "offset=1.5"},
		{"repeated limit", "limit=1&limit=2"},
		{"repeated sort", "sort=a&sort=b"},
		{"empty columns", "columns="},
		{"duplicate column", "columns=a,a"},
		{"bad distinct", "distinct=yes"},
		{"unterminated in", "id=in.(1,2"},
		{"unterminated quote", `id=in.(1,"2)`},
		{"empty in", "id=in.()"},
		{"in without parens", "id=in.1,2"},
		{"empty in item", "id=in.(1,,2)"},
		{"blank in item", "id=in.(1, ,2)"},
		{"bad is_null", "deleted_at=is_null.maybe"},
		{"empty sort", "sort="},
		{"trailing sort comma", "sort=a,"},
		{"unknown sort modifier", "sort=a.sideways"},
		{"conflicting directions", "sort=-a.asc"},
		{"bad escape", "name=eq.%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedQuery)
		})
	}
}

func TestParse_InvalidIdentifier(t *testing.T) {
	tests := []string{
		"na;me=eq.1",
		"columns=id,na%20me",
		"sort=a-b",
		"distinct_on=1a",
		"bad%27col=eq.x",
	}

	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			_, err := parser.Parse(q)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
		})
	}
}

func TestParse_SpecIsImmutable(t *testing.T) {
	spec, err := parser.Parse("columns=a,b&x=eq.1")
	require.NoError(t, err)

	cols := spec.Columns()
	cols[0] = domain.MustIdentifier("zzz")
	filters := spec.Filters()
	filters[0].Operand = domain.ValueOperand("2")

	assert.Equal(t, "a", spec.Columns()[0].String())
	assert.Equal(t, "1", spec.Filters()[0].Operand.Value())
}

func TestParser_IgnoredKeys(t *testing.T) {
	p := parser.New("allow_unfiltered")

	spec, err := p.Parse("allow_unfiltered=true&id=eq.1")
	require.NoError(t, err)
	assert.Len(t, spec.Filters(), 1)

	_, err = parser.Parse("allow_unfiltered=true")
	assert.ErrorIs(t, err, domain.ErrMalformedQuery)
}

func TestParseFunctionArgs(t *testing.T) {
	args, spec, err := parser.ParseFunctionArgs("a=1&b=hello%20world&limit=5&sort=-total")
	require.NoError(t, err)

	assert.Equal(t, domain.Row{"a": "1", "b": "hello world"}, args)
	limit, ok := spec.Limit()
	require.True(t, ok)
	assert.Equal(t, uint64(5), limit)
	require.Len(t, spec.Sort(), 1)
	assert.Empty(t, spec.Filters())

	_, _, err = parser.ParseFunctionArgs("a=1&a=2")
	assert.ErrorIs(t, err, domain.ErrMalformedQuery)
}

func TestIsReserved(t *testing.T) {
	for _, key := range []string{"limit", "offset", "columns", "distinct", "distinct_on", "sort"} {
		assert.True(t, parser.IsReserved(key), key)
	}
	assert.False(t, parser.IsReserved("name"))
}
