package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := Schemaf("languages", "list of string", "number", "wrong type")
	assert.Equal(t, "schema violation at languages: wrong type (expected list of string, got number)", err.Error())
	assert.True(t, errors.Is(err, ErrSchema))
	assert.False(t, errors.Is(err, ErrSecurity))
}

func TestViolations_Aggregate(t *testing.T) {
	var v Violations
	require.NoError(t, v.Err())

	v.Add(nil)
	v.Add(Schemaf("a", "", "", "missing"))
	v.Add(Securityf("b", "homoglyph"))
	v.Add(fmt.Errorf("plain"))

	require.Len(t, v, 3)
	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSecurity))
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Equal(t, ErrSecurity, v.Kind())
	assert.Contains(t, err.Error(), "3 violations")
}

func TestViolations_AddFlattensNested(t *testing.T) {
	inner := Violations{Semanticf("x", "one"), Semanticf("y", "two")}
	var outer Violations
	outer.Add(fmt.Errorf("wrapped: %w", inner))
	assert.Len(t, outer, 2)
	assert.Equal(t, ErrSemantic, outer.Kind())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"render", fmt.Errorf("ctx: %w", Renderf("a.tmpl", "x", "undefined")), ErrRender},
		{"drift", DriftIOf("a", "unreadable"), ErrDriftIO},
		{"violations", Violations{Schemaf("a", "", "", "x"), Semanticf("b", "y")}, ErrSemantic},
		{"unclassified", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
