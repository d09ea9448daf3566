package infra

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/spaolacci/murmur3"
)

const (
	DefaultCapacity = 10000
	DefaultTTL      = 60 * time.Second
)

// BoundedCache guarda domain.Entry por chave com capacidade fixa (LRU) e
// TTL com expiração preguiçosa. As chaves são distribuídas em shards por
// murmur3; cada shard tem sua trava, usada tanto para mutar entradas quanto
// para promover/expulsar na lista LRU. A capacidade vale para o cache
// inteiro: só se expulsa quando o total passa de capacity, a partir da
// cauda do shard que recebeu a escrita. Com um shard só, o LRU é exato.
type BoundedCache struct {
	shards       []*cacheShard
	capacity     int64
	size         atomic.Int64
	ttl          time.Duration
	now          func() time.Time
	janitorEvery time.Duration

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

type cacheShard struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // frente = usado mais recentemente
	size  *atomic.Int64
}

type cacheItem struct {
	key       string
	entry     *domain.Entry
	expiresAt time.Time
}

type CacheStats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

type CacheOption func(*cacheSettings)

type cacheSettings struct {
	ttl          time.Duration
	shards       int
	now          func() time.Time
	janitorEvery time.Duration
}

func WithTTL(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.ttl = d }
}

// WithShards define o número de shards (lock striping). A capacidade
// continua global; a ordem LRU passa a ser por shard.
func WithShards(n int) CacheOption {
	return func(s *cacheSettings) { s.shards = n }
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(s *cacheSettings) { s.now = now }
}

// WithJanitorEvery define o intervalo da limpeza periódica (0 desliga).
func WithJanitorEvery(d time.Duration) CacheOption {
	return func(s *cacheSettings) { s.janitorEvery = d }
}

// NewBoundedCache cria o cache. capacity <= 0 usa DefaultCapacity.
func NewBoundedCache(capacity int, opts ...CacheOption) *BoundedCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	st := cacheSettings{ttl: DefaultTTL, shards: 1, now: time.Now, janitorEvery: DefaultTTL}
	for _, opt := range opts {
		opt(&st)
	}
	if st.ttl <= 0 {
		st.ttl = DefaultTTL
	}
	if st.now == nil {
		st.now = time.Now
	}
	n := max(1, min(st.shards, capacity))

	c := &BoundedCache{
		shards:       make([]*cacheShard, n),
		capacity:     int64(capacity),
		ttl:          st.ttl,
		now:          st.now,
		janitorEvery: st.janitorEvery,
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			items: make(map[string]*list.Element, capacity/n),
			order: list.New(),
			size:  &c.size,
		}
	}
	return c
}

func (c *BoundedCache) TTL() time.Duration { return c.ttl }

func (c *BoundedCache) shardIndex(key string) int {
	if len(c.shards) == 1 {
		return 0
	}
	return int(murmur3.Sum32([]byte(key)) % uint32(len(c.shards)))
}

func (c *BoundedCache) shardFor(key string) *cacheShard {
	return c.shards[c.shardIndex(key)]
}

// lookup devolve o elemento vivo de key. Expirado é removido. Chamar com
// s.mu segurado.
func (c *BoundedCache) lookup(s *cacheShard, key string, now time.Time) *list.Element {
	el, ok := s.items[key]
	if !ok {
		return nil
	}
	if !now.Before(el.Value.(*cacheItem).expiresAt) {
		s.remove(el)
		c.expirations.Add(1)
		return nil
	}
	return el
}

// Get devolve uma cópia da entrada e a promove no LRU.
func (c *BoundedCache) Get(key string) (*domain.Entry, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el := c.lookup(s, key, c.now())
	if el == nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	s.order.MoveToFront(el)
	return el.Value.(*cacheItem).entry.Clone(), true
}

// Has não promove a chave no LRU.
func (c *BoundedCache) Has(key string) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	return c.lookup(s, key, c.now()) != nil
}

// Set guarda uma cópia de e com o TTL padrão, substituindo o que houver.
func (c *BoundedCache) Set(key string, e *domain.Entry) {
	if e == nil {
		return
	}
	i := c.shardIndex(key)
	s := c.shards[i]
	s.mu.Lock()
	c.store(s, key, e.Clone(), c.ttl, c.now())
	s.mu.Unlock()

	c.trim(i)
}

// Update roda fn de forma atômica em relação a qualquer outra operação na
// mesma chave. A entrada passada para fn é a guardada (não uma cópia); fn
// não deve retê-la depois de retornar. O TTL efetivo é max(ttl, TTL padrão).
func (c *BoundedCache) Update(key string, ttl time.Duration, fn func(e *domain.Entry) *domain.Entry) {
	i := c.shardIndex(key)
	c.update(c.shards[i], key, ttl, fn)
	c.trim(i)
}

func (c *BoundedCache) update(s *cacheShard, key string, ttl time.Duration, fn func(e *domain.Entry) *domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.now()
	var cur *domain.Entry
	if el := c.lookup(s, key, now); el != nil {
		cur = el.Value.(*cacheItem).entry
	}

	next := fn(cur)
	if next == nil {
		if el, ok := s.items[key]; ok {
			s.remove(el)
		}
		return
	}
	c.store(s, key, next, max(ttl, c.ttl), now)
}

func (c *BoundedCache) store(s *cacheShard, key string, e *domain.Entry, ttl time.Duration, now time.Time) {
	expiresAt := now.Add(ttl)
	if el, ok := s.items[key]; ok {
		it := el.Value.(*cacheItem)
		it.entry = e
		it.expiresAt = expiresAt
		s.order.MoveToFront(el)
		return
	}

	s.items[key] = s.order.PushFront(&cacheItem{key: key, entry: e, expiresAt: expiresAt})
	s.size.Add(1)
}

// trim expulsa entradas até o total voltar a caber em capacity. Começa pela
// cauda do shard first, preservando a entrada recém-escrita (frente), e só
// passa aos outros shards se ele não tiver mais o que expulsar. Chamar sem
// nenhuma trava de shard segurada.
func (c *BoundedCache) trim(first int) {
	n := len(c.shards)
	for i := 0; i < n && c.size.Load() > c.capacity; i++ {
		keep := 0
		if i == 0 {
			keep = 1
		}
		s := c.shards[(first+i)%n]
		s.mu.Lock()
		for c.size.Load() > c.capacity && s.order.Len() > keep {
			s.remove(s.order.Back())
			c.evictions.Add(1)
		}
		s.mu.Unlock()
	}
}

func (s *cacheShard) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*cacheItem).key)
	s.size.Add(-1)
}

func (c *BoundedCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.size.Add(-int64(len(s.items)))
		clear(s.items)
		s.order.Init()
		s.mu.Unlock()
	}
}

// Len conta as entradas guardadas, inclusive expiradas ainda não varridas.
func (c *BoundedCache) Len() int {
	return int(c.size.Load())
}

// Sweep remove todas as entradas expiradas e devolve quantas saíram.
func (c *BoundedCache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.order.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*cacheItem).expiresAt) {
				s.remove(el)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	c.expirations.Add(uint64(removed))
	return removed
}

func (c *BoundedCache) Stats() CacheStats {
	return CacheStats{
		Entries:     c.Len(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// StartJanitor varre entradas expiradas periodicamente até ctx terminar.
// A expiração preguiçosa já garante a semântica; o janitor só devolve
// memória de chaves que nunca mais foram acessadas.
func (c *BoundedCache) StartJanitor(ctx context.Context) {
	if c.janitorEvery <= 0 {
		return
	}

	t := time.NewTicker(c.janitorEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

var _ domain.EntryCache = (*BoundedCache)(nil)
