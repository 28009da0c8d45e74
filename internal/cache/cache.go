package cache

import (
	"sort"
	"sync"

	"github.com/OCAP2/missionsim/pkg/core"
)

// EntityCache holds the entities registered for the current run, keyed by
// object id, so per tick rows can be stamped with database ids without a
// lookup query.
type EntityCache struct {
	mu       sync.RWMutex
	entities map[string]core.Entity
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		entities: make(map[string]core.Entity),
	}
}

// Reset drops every entity; called when a new run starts.
func (c *EntityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[string]core.Entity)
}

func (c *EntityCache) Add(e core.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[e.ObjectID] = e
}

func (c *EntityCache) Get(objectID string) (core.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[objectID]
	return e, ok
}

// ID returns the database id of objectID, or 0 when it is not cached.
func (c *EntityCache) ID(objectID string) uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entities[objectID].ID
}

// SetID records the database id assigned to an already cached entity.
func (c *EntityCache) SetID(objectID string, id uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[objectID]
	if !ok {
		return false
	}
	e.ID = id
	c.entities[objectID] = e
	return true
}

func (c *EntityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// Snapshot returns a copy of the cache contents.
func (c *EntityCache) Snapshot() map[string]core.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]core.Entity, len(c.entities))
	for k, v := range c.entities {
		out[k] = v
	}
	return out
}

// Teams returns the distinct team ids, sorted.
func (c *EntityCache) Teams() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range c.entities {
		seen[e.TeamID] = struct{}{}
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}
