package authguard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_040, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
	hashes       map[string]string
	failUpdate   error
}

func newMockUserProvider(users ...UserRecord) *mockUserProvider {
	up := &mockUserProvider{
		users:        make(map[string]UserRecord, len(users)),
		byIdentifier: make(map[string]string, len(users)),
		hashes:       make(map[string]string),
	}
	for _, u := range users {
		up.users[u.UserID] = u
		up.byIdentifier[u.Identifier] = u.UserID
	}
	return up
}

func (m *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return ErrUserNotFound
	}
	if m.failUpdate != nil {
		return m.failUpdate
	}
	m.hashes[userID] = newHash
	return nil
}

func (m *mockUserProvider) setFailUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdate = err
}

func (m *mockUserProvider) hash(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[userID]
}

type captureDelivery struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

func (c *captureDelivery) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.fail
}

func (c *captureDelivery) last(t *testing.T) Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("expected a delivered message")
	}
	return c.sent[len(c.sent)-1]
}

func (c *captureDelivery) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Encryption.Secret = testSecret
	cfg.Hashing.Memory = 8 * 1024
	cfg.Hashing.Time = 1
	cfg.Hashing.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

var testAlice = UserRecord{
	UserID:     "u1",
	Identifier: "alice",
	Email:      "alice@example.com",
	Phone:      "+15550100",
}

type testHarness struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	clock    *testClock
	users    *mockUserProvider
	delivery *captureDelivery
}

func newTestHarness(t *testing.T, mutate func(*Config, *Builder)) *testHarness {
	t.Helper()

	mr, rdb := newTestRedis(t)
	h := &testHarness{
		mr:       mr,
		clock:    newTestClock(),
		users:    newMockUserProvider(testAlice),
		delivery: &captureDelivery{},
	}

	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithLogger(zaptest.NewLogger(t)).
		WithClock(h.clock.Now).
		WithUserProvider(h.users).
		WithDeliveryChannel(h.delivery)
	if mutate != nil {
		mutate(&cfg, b)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func withIP(ip string) context.Context {
	return WithClientIP(context.Background(), ip)
}

func isHexLower(s string) bool {
	return strings.Trim(s, "0123456789abcdef") == ""
}
