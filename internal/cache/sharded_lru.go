package cache

import (
	"hash/fnv"
	"time"
)

const defaultShardCount = 16

// Cache is the common interface for LRU and ShardedLRU caches.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	PutIfAbsent(key K, value V) bool
	Delete(key K)
	Len() int
	Stats() (hits, misses int64)
}

var _ Cache[string, int] = (*LRU[string, int])(nil)

// ShardedLRU spreads keys over several LRU shards so that request paths
// keyed by client address do not serialize on a single mutex.
type ShardedLRU[K comparable, V any] struct {
	shards   []*LRU[K, V]
	keyToStr func(K) string
}

// NewShardedLRU creates a ShardedLRU with defaultShardCount shards.
// totalCapacity is distributed evenly across shards.
func NewShardedLRU[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string) *ShardedLRU[K, V] {
	return NewShardedLRUWithCount[K, V](totalCapacity, ttl, keyFn, defaultShardCount)
}

// NewShardedLRUWithCount creates a ShardedLRU with a specified shard count.
func NewShardedLRUWithCount[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string, shardCount int) *ShardedLRU[K, V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	perShard := totalCapacity / shardCount
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]*LRU[K, V], shardCount)
	for i := range shards {
		shards[i] = NewLRU[K, V](perShard, ttl)
	}
	return &ShardedLRU[K, V]{shards: shards, keyToStr: keyFn}
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	h := fnv.New32a()
	h.Write([]byte(s.keyToStr(key)))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *ShardedLRU[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

func (s *ShardedLRU[K, V]) Put(key K, value V) {
	s.shard(key).Put(key, value)
}

func (s *ShardedLRU[K, V]) PutIfAbsent(key K, value V) bool {
	return s.shard(key).PutIfAbsent(key, value)
}

func (s *ShardedLRU[K, V]) Delete(key K) {
	s.shard(key).Delete(key)
}

// Len returns the total number of items across all shards.
func (s *ShardedLRU[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

// Stats returns aggregated hit and miss counts across all shards.
func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return
}

var _ Cache[string, int] = (*ShardedLRU[string, int])(nil)
