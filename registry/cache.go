package registry

import (
	"context"
	"sync"
)

// Cache memoizes handler lists per event type. Concurrent first accesses for
// the same key may each perform the registry lookup; the computed list is
// deterministic for a given type, so duplicate computation is harmless and
// the cache stays monotonic once a key is populated.
type Cache struct {
	registry HandlerRegistry
	entries  sync.Map // eventType -> []string
}

// NewCache builds a cache over the given registry.
func NewCache(registry HandlerRegistry) (*Cache, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	return &Cache{registry: registry}, nil
}

// Resolve returns the ordered handler identities for an event type,
// performing the registry lookup on first sight of the type.
func (c *Cache) Resolve(ctx context.Context, eventType string) ([]string, error) {
	if cached, ok := c.entries.Load(eventType); ok {
		return cached.([]string), nil
	}

	handlers, err := c.registry.HandlersFor(ctx, eventType)
	if err != nil {
		return nil, err
	}

	// First successful computation wins; a concurrent racer that already
	// stored the same list keeps its entry.
	cached, _ := c.entries.LoadOrStore(eventType, handlers)

	return cached.([]string), nil
}

// Len reports how many event types have been resolved so far.
func (c *Cache) Len() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})

	return count
}
