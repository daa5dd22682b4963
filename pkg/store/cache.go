package store

// cache is a fixed-capacity id to record map. Once full it stops admitting
// new ids; existing ids can still be replaced. It is not safe for concurrent
// use; the owning store guards it.
type cache[T any] struct {
	limit int
	items map[string]T
}

func newCache[T any](limit int) *cache[T] {
	return &cache[T]{limit: limit, items: make(map[string]T)}
}

func (c *cache[T]) get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

// put stores v under id and reports whether it is now cached.
func (c *cache[T]) put(id string, v T) bool {
	if _, ok := c.items[id]; !ok && len(c.items) >= c.limit {
		return false
	}
	c.items[id] = v
	return true
}

func (c *cache[T]) has(id string) bool {
	_, ok := c.items[id]
	return ok
}

func (c *cache[T]) full() bool { return len(c.items) >= c.limit }

func (c *cache[T]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

func (c *cache[T]) len() int { return len(c.items) }

func (c *cache[T]) each(fn func(id string, v T)) {
	for id, v := range c.items {
		fn(id, v)
	}
}
