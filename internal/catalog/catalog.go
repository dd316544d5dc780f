// Package catalog holds the flat list of bands a tree may assign. The list is
// supplied by configuration; the tree engine only refers to bands by id.
package catalog

import (
	"github.com/sahilm/fuzzy"
)

// Band is a terminal classification.
type Band struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Catalog is an immutable, ordered set of bands. Replace it wholesale on
// reload rather than mutating it.
type Catalog struct {
	bands []Band
	byID  map[string]int
}

// New copies bands into a catalog. Later duplicates of an id are ignored;
// config validation rejects them before this point.
func New(bands []Band) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(bands))}
	for _, b := range bands {
		if _, dup := c.byID[b.ID]; dup {
			continue
		}
		c.byID[b.ID] = len(c.bands)
		c.bands = append(c.bands, b)
	}
	return c
}

// Bands returns the bands in configured order.
func (c *Catalog) Bands() []Band {
	out := make([]Band, len(c.bands))
	copy(out, c.bands)
	return out
}

// Len returns the number of bands.
func (c *Catalog) Len() int { return len(c.bands) }

// Lookup returns the band with the given id.
func (c *Catalog) Lookup(id string) (Band, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Band{}, false
	}
	return c.bands[i], true
}

// Contains reports whether id names a band.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Name returns the display name for id, falling back to the id itself.
func (c *Catalog) Name(id string) string {
	if b, ok := c.Lookup(id); ok {
		return b.Name
	}
	return id
}

// Search fuzzy-matches query against band names and ids, best match first.
// An empty query returns every band.
func (c *Catalog) Search(query string) []Band {
	if query == "" {
		return c.Bands()
	}
	keys := make([]string, len(c.bands))
	for i, b := range c.bands {
		keys[i] = b.Name + " " + b.ID
	}
	matches := fuzzy.Find(query, keys)
	out := make([]Band, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.bands[m.Index])
	}
	return out
}
