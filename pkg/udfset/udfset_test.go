package udfset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFlattensCategoriesIntoFlatTable(t *testing.T) {
	set := Set{
		"math": {
			"double": Source{Arity: 1, Body: "@1 * 2"},
			"square": Source{Arity: 1, Body: "@1 * @1"},
		},
		"string": {
			"shout": Source{Arity: 1, Body: "@1.upper()"},
		},
	}
	defs, err := Load(set)
	require.NoError(t, err)
	require.Len(t, defs, 3)

	double, ok := defs["double"]
	require.True(t, ok)
	assert.Equal(t, 1, double.Arity)
	assert.Equal(t, "double", double.Name)
}

func TestLoadRejectsNameDuplicatedAcrossCategories(t *testing.T) {
	set := Set{
		"a": {"f": Source{Arity: 1, Body: "@1"}},
		"b": {"f": Source{Arity: 1, Body: "@1 + 1"}},
	}
	_, err := Load(set)
	require.Error(t, err)
}

func TestLoadRejectsUnparseableBody(t *testing.T) {
	set := Set{
		"a": {"broken": Source{Arity: 1, Body: "@1 +"}},
	}
	_, err := Load(set)
	require.Error(t, err)
}

func TestCategoriesAndNames(t *testing.T) {
	set := Set{
		"math": {"double": Source{Arity: 1, Body: "@1 * 2"}},
	}
	assert.Equal(t, []string{"math"}, set.Categories())
	assert.Equal(t, []string{"double"}, set.Names("math"))
	assert.Empty(t, set.Names("missing"))
}
