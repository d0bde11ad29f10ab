package relation

import (
	"errors"
	"sync"

	dberr "parajoin/pkg/error"
	"parajoin/pkg/logging"
	"parajoin/pkg/primitives"
)

// Catalog numbers relations in the order they were added. Queries refer
// to relations by that number.
type Catalog struct {
	mu        sync.RWMutex
	relations []*Relation
	paths     []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Add registers rel and returns its id.
func (c *Catalog) Add(rel *Relation, path string) primitives.RelationID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := primitives.RelationID(len(c.relations))
	c.relations = append(c.relations, rel)
	c.paths = append(c.paths, path)
	return id
}

// AddFile loads the relation file at path and registers it.
func (c *Catalog) AddFile(path string) (primitives.RelationID, error) {
	rel, err := Load(path)
	if err != nil {
		return 0, err
	}
	id := c.Add(rel, path)
	logging.WithRelation(uint32(id)).Debug("relation loaded",
		"path", path, "rows", rel.Size(), "columns", rel.ColumnCount())
	return id, nil
}

// Get returns relation id.
func (c *Catalog) Get(id primitives.RelationID) (*Relation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if int(id) >= len(c.relations) {
		return nil, dberr.New(dberr.ErrCategoryUser, dberr.CodeRelationNotFound, "unknown relation").
			WithDetail("relation %d requested, catalog holds %d", id, len(c.relations)).
			WithOperation("Get", "Catalog")
	}
	return c.relations[id], nil
}

// Path is the file relation id was loaded from, empty for in-memory ones.
func (c *Catalog) Path(id primitives.RelationID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if int(id) >= len(c.paths) {
		return ""
	}
	return c.paths[id]
}

// Len is the number of registered relations.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.relations)
}

// Close releases every relation.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, r := range c.relations {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.relations = nil
	c.paths = nil
	return errors.Join(errs...)
}
