package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// OfflineStore 离线存储适配器
// 实现与 Redis 适配器相同的窄接口，在连接不可用时被显式选择，
// 持有最近一次同步留下的缓存数据，读路径继续可用
type OfflineStore struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	indexes map[string]map[string]float64
}

// NewOfflineStore 创建离线存储
func NewOfflineStore() *OfflineStore {
	return &OfflineStore{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]map[string]float64),
	}
}

func (s *OfflineStore) HashSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hashSetLocked(key, fields)
	return nil
}

func (s *OfflineStore) hashSetLocked(key string, fields map[string]string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
}

func (s *OfflineStore) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *OfflineStore) HashGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	result := make([]map[string]string, len(keys))
	for i, key := range keys {
		data, _ := s.HashGetAll(ctx, key)
		result[i] = data
	}
	return result, nil
}

func (s *OfflineStore) HashIncr(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hashIncrLocked(key, field, delta), nil
}

func (s *OfflineStore) hashIncrLocked(key, field string, delta int64) int64 {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	current, _ := strconv.ParseInt(h[field], 10, 64)
	current += delta
	h[field] = strconv.FormatInt(current, 10)
	return current
}

func (s *OfflineStore) IndexAdd(_ context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexAddLocked(key, member, score)
	return nil
}

func (s *OfflineStore) indexAddLocked(key, member string, score float64) {
	idx, ok := s.indexes[key]
	if !ok {
		idx = make(map[string]float64)
		s.indexes[key] = idx
	}
	idx[member] = score
}

func (s *OfflineStore) IndexRemove(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexes[key]
	for _, m := range members {
		delete(idx, m)
	}
	return nil
}

// sortedEntries 按 score 升序返回索引全部条目，score 相同时按 member 排序
func (s *OfflineStore) sortedEntries(key string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexes[key]
	entries := make([]Entry, 0, len(idx))
	for m, score := range idx {
		entries = append(entries, Entry{Member: m, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	return entries
}

func (s *OfflineStore) IndexRevRange(_ context.Context, key string, offset, count int64) ([]string, error) {
	entries := s.sortedEntries(key)

	// 倒序
	members := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		members = append(members, entries[i].Member)
	}

	if offset >= int64(len(members)) {
		return nil, nil
	}
	members = members[offset:]
	if count > 0 && count < int64(len(members)) {
		members = members[:count]
	}
	return members, nil
}

func (s *OfflineStore) IndexRangeByScore(_ context.Context, key string, min float64, exclusive bool) ([]Entry, error) {
	var out []Entry
	for _, e := range s.sortedEntries(key) {
		if e.Score > min || (!exclusive && e.Score == min) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *OfflineStore) IndexTail(_ context.Context, key string, count int64) ([]Entry, error) {
	entries := s.sortedEntries(key)
	if count > 0 && int64(len(entries)) > count {
		entries = entries[int64(len(entries))-count:]
	}
	return entries, nil
}

func (s *OfflineStore) ApplyBatch(_ context.Context, batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range batch.Hashes {
		if len(h.Fields) > 0 {
			s.hashSetLocked(h.Key, h.Fields)
		}
	}
	for _, idx := range batch.Indexes {
		s.indexAddLocked(idx.Key, idx.Member, idx.Score)
	}
	for _, inc := range batch.Incrs {
		s.hashIncrLocked(inc.Key, inc.Field, inc.Delta)
	}
	return nil
}

func (s *OfflineStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.hashes, key)
		delete(s.indexes, key)
	}
	return nil
}

// Ping 离线存储总是可达
func (s *OfflineStore) Ping(_ context.Context) error {
	return nil
}
