package hashmap

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

var _ HashMap[string, int] = (*ConcurrentMap[int])(nil)

// ConcurrentMap is a sharded HashMap keyed by strings.
type ConcurrentMap[V any] struct {
	backend cmap.ConcurrentMap[string, V]
}

// NewConcurrentMap creates a ConcurrentMap. The shard count is global to the backing library
// and is applied to every map created afterwards.
func NewConcurrentMap[V any](shards int) *ConcurrentMap[V] {
	if shards > 0 {
		cmap.SHARD_COUNT = shards
	}

	return &ConcurrentMap[V]{
		backend: cmap.New[V](),
	}
}

func (m *ConcurrentMap[V]) Delete(key string) {
	m.backend.Remove(key)
}

func (m *ConcurrentMap[V]) Load(key string) (V, bool) {
	return m.backend.Get(key)
}

func (m *ConcurrentMap[V]) LoadAndDelete(key string) (retVal V, retExists bool) {
	m.backend.RemoveCb(key, func(key string, val V, exists bool) bool {
		retVal = val
		retExists = exists
		return true
	})
	return
}

func (m *ConcurrentMap[V]) LoadOrStore(key string, value V) (V, bool) {
	if m.backend.SetIfAbsent(key, value) {
		return value, false
	}

	return m.Load(key)
}

func (m *ConcurrentMap[V]) Range(cb func(string, V) bool) {
	next := true
	for item := range m.backend.IterBuffered() {
		if next {
			next = cb(item.Key, item.Val)
		}
		// iterate over all items to drain the channel
	}
}

func (m *ConcurrentMap[V]) Store(key string, val V) {
	m.backend.Set(key, val)
}

func (m *ConcurrentMap[V]) Len() int {
	return m.backend.Count()
}

// Keys returns a snapshot of the keys currently in the map.
func (m *ConcurrentMap[V]) Keys() []string {
	return m.backend.Keys()
}
