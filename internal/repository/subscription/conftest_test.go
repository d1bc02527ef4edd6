package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/nxx-sync/nxx/internal/domain/channel"
)

// mockStore implements the consumer interface for tests. It keeps sets and hashes in
// memory; the fn fields override individual commands.
type mockStore struct {
	mu     sync.Mutex
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
	calls  []string

	smembersFn func(ctx context.Context, key string) ([]string, error)
	saddFn     func(ctx context.Context, key string, members ...string) (int64, error)
	hgetAllFn  func(ctx context.Context, key string) (map[string]string, error)
}

func newMockStore() *mockStore {
	return &mockStore{
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string]string),
	}
}

func (m *mockStore) record(cmd, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd+" "+key)
}

func (m *mockStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	m.record("SADD", key)
	if m.saddFn != nil {
		return m.saddFn(ctx, key, members...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	var added int64
	for _, mem := range members {
		if _, dup := set[mem]; !dup {
			set[mem] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *mockStore) SRem(_ context.Context, key string, members ...string) (int64, error) {
	m.record("SREM", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key]
	var removed int64
	for _, mem := range members {
		if _, ok := set[mem]; ok {
			delete(set, mem)
			removed++
		}
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return removed, nil
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	m.record("SMEMBERS", key)
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *mockStore) SCard(_ context.Context, key string) (int64, error) {
	m.record("SCARD", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.record("HSET", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.record("HGETALL", key)
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) HDel(_ context.Context, key string, fields ...string) error {
	m.record("HDEL", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return nil
}

func (m *mockStore) members(key string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[key]
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms), ms
}

func postChannel(t *testing.T) channel.Channel {
	t.Helper()
	ch, err := channel.New("A", "post", "")
	if err != nil {
		t.Fatalf("channel.New: %v", err)
	}
	return ch
}

func publishedChannel(t *testing.T) channel.Channel {
	t.Helper()
	ch, err := postChannel(t).WithFilter(map[string]any{"status": "published"})
	if err != nil {
		t.Fatalf("WithFilter: %v", err)
	}
	return ch
}
