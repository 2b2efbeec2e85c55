package main

import "sync"

type cacheEntry struct {
	value       Item
	accessCount uint64
}

// Cache - кеш фиксированной ёмкости перед PositionStore.
// Вытеснение LFU: уходит запись с наименьшим accessCount, при равенстве - с наименьшим ключом.
type Cache struct {
	mu       sync.Mutex
	m        map[int]*cacheEntry
	capacity int

	// onEvict вызывается под блокировкой, не должен обращаться к кешу
	onEvict func(key int)
}

func NewCache(capacity int) *Cache {
	return &Cache{
		m:        make(map[int]*cacheEntry, capacity),
		capacity: capacity,
	}
}

// Lookup увеличивает accessCount при попадании. Промах ничего не меняет.
func (c *Cache) Lookup(key int) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return Empty, false
	}
	e.accessCount++
	return e.value, true
}

// Insert вытесняет одну запись до вставки, если кеш полон и ключа в нём нет.
// Перезапись существующего ключа сбрасывает accessCount в 1.
func (c *Cache) Insert(key int, value Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; !ok && len(c.m) >= c.capacity {
		c.evictLocked()
	}
	c.m[key] = &cacheEntry{value: value, accessCount: 1}
}

func (c *Cache) evictLocked() {
	victim, found := 0, false
	var minCount uint64
	for k, e := range c.m {
		if !found || e.accessCount < minCount || (e.accessCount == minCount && k < victim) {
			victim, minCount, found = k, e.accessCount, true
		}
	}
	if !found {
		return
	}
	delete(c.m, victim)
	if c.onEvict != nil {
		c.onEvict(victim)
	}
}

// InvalidateAll переписывает значения всех резидентных ключей из source.
// Ключи за пределами source остаются как есть: хранилище не сжимается, так что
// такой ключ мог попасть в кеш только как пустое значение после чтения вне диапазона.
func (c *Cache) InvalidateAll(source []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.m {
		if k >= 0 && k < len(source) {
			e.value = source[k]
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// accessCount нужен тестам и отладке; 0 если ключа нет
func (c *Cache) accessCount(key int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.m[key]; ok {
		return e.accessCount
	}
	return 0
}
