// Package cmap provides a concurrent map implementation for kvstash.
package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration.
// Note: This acquires locks shard by shard, so the view may not be consistent.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !fn(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Values returns all values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// Item is a key-value pair returned by Items.
type Item[K comparable, V any] struct {
	Key   K
	Value V
}

// Items returns all key-value pairs as a slice.
func (m *Map[K, V]) Items() []Item[K, V] {
	items := make([]Item[K, V], 0, m.Count())
	m.Range(func(key K, value V) bool {
		items = append(items, Item[K, V]{Key: key, Value: value})
		return true
	})
	return items
}

// GetOrSet returns the existing value for a key, or sets and returns the given value if absent.
// The second return reports whether the key already existed.
func (m *Map[K, V]) GetOrSet(key K, value V) (V, bool) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.items[key]; ok {
		return existing, true
	}

	shard.items[key] = value
	return value, false
}

// SetIfAbsent sets the value only if the key does not exist.
// Returns true if the value was set, false if the key already exists.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.items[key]; ok {
		return false
	}

	shard.items[key] = value
	return true
}

// Pop removes a key and returns its value.
// Returns the value and true if the key existed, zero value and false otherwise.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	val, ok := shard.items[key]
	if ok {
		delete(shard.items, key)
	}
	return val, ok
}
