// internal/parser/patterns_test.go
package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-broker/internal/locale"
	"demand-broker/internal/models"
)

// ==========================
// Pattern Cache Tests
// ==========================

func TestPatternCache_GetCompilesOnce(t *testing.T) {
	loads := 0
	cache := NewPatternCacheWithLoader(func(id string) *locale.Settings {
		loads++
		return locale.Load(id)
	})

	first := cache.Get("en")
	second := cache.Get("en")

	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestPatternCache_RebuildPublishesFreshSet(t *testing.T) {
	cache := NewPatternCache()

	before := cache.Get("en")
	after := cache.Rebuild("en")

	assert.NotSame(t, before, after)
	assert.Same(t, after, cache.Get("en"))

	// the set an in-flight parse started with keeps working
	fields, err := Parse(before, "ref:21")
	require.NoError(t, err)
	assert.Equal(t, int64(21), fields.Long(models.FieldReference))
}

func TestPatternCache_ClearForcesRecompile(t *testing.T) {
	loads := 0
	cache := NewPatternCacheWithLoader(func(id string) *locale.Settings {
		loads++
		return locale.Load(id)
	})

	cache.Get("en")
	cache.Clear("en")
	cache.Get("en")

	assert.Equal(t, 2, loads)
}

func TestPatternCache_UnknownLocaleIsEmpty(t *testing.T) {
	cache := NewPatternCache()

	p := cache.Get("zz")

	assert.True(t, p.Empty())
}

func TestCompile_LocalesKeepDistinctGrammars(t *testing.T) {
	cache := NewPatternCache()

	en := cache.Get("en")
	fr := cache.Get("fr")

	fromEn, err := Parse(en, "réf:21")
	require.NoError(t, err)
	assert.False(t, fromEn.Has(models.FieldReference))
	assert.Equal(t, []string{"réf:21"}, fromEn.Strings(models.FieldCriteria))

	fields, err := Parse(fr, "réf:21")
	require.NoError(t, err)
	assert.Equal(t, int64(21), fields.Long(models.FieldReference))
}
