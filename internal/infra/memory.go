package infra

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryKV is an in-process KV with TTL semantics, used when Redis is not
// configured and in tests. Expiry is checked lazily on read.
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]memItem
	// now is swappable in tests.
	now func() time.Time
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryKV) get(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !it.expiresAt.IsZero() && m.now().After(it.expiresAt) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.get(key)
	if !ok {
		return nil, nil
	}
	return it.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := memItem{value: value}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryKV) IncrByFloat(_ context.Context, key string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur float64
	if it, ok := m.get(key); ok {
		cur, _ = strconv.ParseFloat(string(it.value), 64)
	}
	cur += delta
	prev := m.items[key]
	m.items[key] = memItem{
		value:     []byte(strconv.FormatFloat(cur, 'f', -1, 64)),
		expiresAt: prev.expiresAt,
	}
	return cur, nil
}

func (m *MemoryKV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if it, ok := m.get(key); ok {
		cur, _ = strconv.ParseInt(string(it.value), 10, 64)
	}
	cur += delta
	prev := m.items[key]
	m.items[key] = memItem{
		value:     []byte(strconv.FormatInt(cur, 10)),
		expiresAt: prev.expiresAt,
	}
	return cur, nil
}

func (m *MemoryKV) ExpireNX(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.get(key)
	if !ok || !it.expiresAt.IsZero() {
		return nil
	}
	it.expiresAt = m.now().Add(ttl)
	m.items[key] = it
	return nil
}

// MemoryPubSub is an in-process pub/sub bus with the same fan-out contract
// as the Redis adapter. Single-process only.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]func([]byte)
	nextID int
}

// NewMemoryPubSub creates an empty in-memory bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]map[int]func([]byte))}
}

func (b *MemoryPubSub) Publish(_ context.Context, channel string, message []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), 0, len(b.subs[channel]))
	for _, h := range b.subs[channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(message)
	}
	return nil
}

func (b *MemoryPubSub) Subscribe(_ context.Context, channel string, handler func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]func([]byte))
	}
	id := b.nextID
	b.nextID++
	b.subs[channel][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}, nil
}

// MemoryQueue is an in-process broker list used by tests and keyless dev.
type MemoryQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	lists map[string][][]byte
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{lists: make(map[string][][]byte)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *MemoryQueue) LPush(_ context.Context, key string, value []byte) error {
	q.mu.Lock()
	q.lists[key] = append([][]byte{value}, q.lists[key]...)
	q.mu.Unlock()
	q.cond.Broadcast()
	return nil
}

func (q *MemoryQueue) BRPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	// Wake the cond periodically so timeout and ctx cancellation are honored.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(20 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				q.cond.Broadcast()
			case <-stop:
				return
			}
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if list := q.lists[key]; len(list) > 0 {
			v := list[len(list)-1]
			q.lists[key] = list[:len(list)-1]
			return v, nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil, nil
		}
		q.cond.Wait()
	}
}

// BLMove pops from the tail of src and pushes to the head of dst atomically,
// mirroring Redis BLMOVE RIGHT LEFT.
func (q *MemoryQueue) BLMove(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(20 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				q.cond.Broadcast()
			case <-stop:
				return
			}
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if list := q.lists[src]; len(list) > 0 {
			v := list[len(list)-1]
			q.lists[src] = list[:len(list)-1]
			q.lists[dst] = append([][]byte{v}, q.lists[dst]...)
			return v, nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil, nil
		}
		q.cond.Wait()
	}
}

// LRem removes the first occurrence of value from the list.
func (q *MemoryQueue) LRem(_ context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[key]
	for i, v := range list {
		if string(v) == string(value) {
			q.lists[key] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len reports the current length of a list; test helper.
func (q *MemoryQueue) Len(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[key])
}
