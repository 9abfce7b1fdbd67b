package cache

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

func TestKeyDeterministic(t *testing.T) {
	// Same inputs, different map construction order.
	ctx1 := map[string]any{}
	ctx1["branch"] = "main"
	ctx1["mr_id"] = 42
	ctx2 := map[string]any{}
	ctx2["mr_id"] = 42
	ctx2["branch"] = "main"

	k1 := Key("def main():\n    pass\n", "python_code", ctx1)
	k2 := Key("def main():\n    pass\n", "python_code", ctx2)
	assert.Equal(t, k1, k2, "context map order must not affect the key")
}

func TestKeySensitivity(t *testing.T) {
	content := "def main():\n    pass\n"
	base := Key(content, "python_code", nil)

	assert.NotEqual(t, base, Key(content+" ", "python_code", nil),
		"a one-character content change must change the key")
	assert.NotEqual(t, base, Key(content, "security", nil),
		"the agent id must participate in the key")
	assert.NotEqual(t, base, Key(content, "python_code", map[string]any{"branch": "main"}),
		"the request context must participate in the key")
}

func TestRoundTrip(t *testing.T) {
	c := New(time.Hour)
	defer c.Close()

	key := Key("content", "python_code", nil)
	want := &agent.Result{Confidence: 0.8, Findings: []agent.Finding{
		{Kind: agent.KindIssue, Category: "style", Line: 3, Description: "unused import"},
	}}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, want)
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, c.Len())
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(time.Hour, WithClock(func() time.Time { return now }))

	key := Key("content", "general", nil)
	c.Put(key, &agent.Result{Confidence: 0.5})

	now = now.Add(59 * time.Minute)
	_, ok := c.Get(key)
	assert.True(t, ok, "entry must survive inside the TTL")

	now = now.Add(time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry at exactly the TTL boundary is expired")
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on access")
}

func TestInvalidate(t *testing.T) {
	c := New(time.Hour)
	k1 := Key("a", "python_code", nil)
	k2 := Key("b", "python_code", nil)
	c.Put(k1, &agent.Result{})
	c.Put(k2, &agent.Result{})

	removed := c.Invalidate(func(key string) bool { return key == k1 })
	assert.Equal(t, 1, removed)
	_, ok := c.Get(k1)
	assert.False(t, ok)
	_, ok = c.Get(k2)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(24*time.Hour, WithClock(func() time.Time { return now }))

	c.Put(Key("old", "general", nil), &agent.Result{})
	now = now.Add(2 * time.Hour)
	c.Put(Key("new", "general", nil), &agent.Result{})

	assert.Equal(t, 1, c.Clear(time.Hour), "only entries older than the age are removed")
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, 1, c.Clear(0), "zero age removes everything")
	assert.Equal(t, 0, c.Len())
}

// fakeStore records calls and optionally fails, standing in for the
// SQLite store in tests.
type fakeStore struct {
	entries map[string]StoredEntry
	saveErr error
	loadErr error
	deleted []string
	closed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]StoredEntry)}
}

func (s *fakeStore) Load(ctx context.Context) (map[string]StoredEntry, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.entries, nil
}

func (s *fakeStore) Save(ctx context.Context, key string, value *agent.Result, storedAt time.Time) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries[key] = StoredEntry{Value: value, StoredAt: storedAt}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.entries, key)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func TestStoreWarmStart(t *testing.T) {
	now := time.Unix(100000, 0)
	store := newFakeStore()
	store.entries["fresh"] = StoredEntry{Value: &agent.Result{Confidence: 0.7}, StoredAt: now.Add(-time.Minute)}
	store.entries["stale"] = StoredEntry{Value: &agent.Result{Confidence: 0.2}, StoredAt: now.Add(-2 * time.Hour)}

	c := New(time.Hour, WithStore(store), WithClock(func() time.Time { return now }))
	defer c.Close()

	got, ok := c.Get("fresh")
	require.True(t, ok)
	assert.InDelta(t, 0.7, got.Confidence, 0.001)

	_, ok = c.Get("stale")
	assert.False(t, ok, "entries past the TTL are not loaded")
}

func TestStoreErrorsAreNonFatal(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("disk gone")
	store.saveErr = errors.New("disk still gone")

	c := New(time.Hour, WithStore(store))
	key := Key("content", "general", nil)

	// Put succeeds in memory even when persistence fails.
	c.Put(key, &agent.Result{Confidence: 0.9})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
}

func TestStoreFailureLoggedAsCacheError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	store := newFakeStore()
	store.saveErr = errors.New("disk gone")
	c := New(time.Hour, WithStore(store))

	c.Put(Key("content", "general", nil), &agent.Result{})

	assert.Contains(t, buf.String(), "persisting entry failed: disk gone")
}

func TestCloseReleasesStore(t *testing.T) {
	store := newFakeStore()
	c := New(time.Hour, WithStore(store))
	require.NoError(t, c.Close())
	assert.True(t, store.closed)
}
