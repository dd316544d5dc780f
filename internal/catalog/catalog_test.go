package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
)

func sample() *catalog.Catalog {
	return catalog.New([]catalog.Band{
		{ID: "band-1", Name: "Band A"},
		{ID: "band-2", Name: "Band B"},
		{ID: "3ic", Name: "Individual Contributor 3"},
		{ID: "band-1", Name: "shadowed"},
	})
}

func TestCatalog_Lookup(t *testing.T) {
	c := sample()

	assert.Equal(t, 3, c.Len())
	b, ok := c.Lookup("band-1")
	assert.True(t, ok)
	assert.Equal(t, "Band A", b.Name)

	assert.True(t, c.Contains("3ic"))
	assert.False(t, c.Contains("band-9"))
	assert.Equal(t, "Band B", c.Name("band-2"))
	assert.Equal(t, "band-9", c.Name("band-9"))
}

func TestCatalog_BandsIsACopy(t *testing.T) {
	c := sample()
	bands := c.Bands()
	bands[0].Name = "changed"
	assert.Equal(t, "Band A", c.Name("band-1"))
}

func TestCatalog_Search(t *testing.T) {
	c := sample()

	assert.Len(t, c.Search(""), 3)

	got := c.Search("contrib")
	if assert.Len(t, got, 1) {
		assert.Equal(t, "3ic", got[0].ID)
	}

	assert.Empty(t, c.Search("zzz"))
}
