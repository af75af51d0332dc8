package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("session not found")

// Session is what the dashboard remembers about a signed-in admin.
type Session struct {
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	UpstreamToken string `json:"upstream_token"`
}

type Store interface {
	Save(ctx context.Context, id string, s Session, ttl time.Duration) error
	Load(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// NewStore keeps sessions in Redis when client is non-nil and in process
// memory otherwise.
func NewStore(client *redis.Client) Store {
	if client == nil {
		return NewMemoryStore()
	}
	return &RedisStore{client: client}
}

type RedisStore struct {
	client *redis.Client
}

func sessionKey(id string) string { return "session:" + id }

func (r *RedisStore) Save(ctx context.Context, id string, s Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKey(id), b, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	b, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memSession
	now   func() time.Time
}

type memSession struct {
	s   Session
	exp time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memSession), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, id string, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[id] = memSession{s: s, exp: exp}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	if !it.exp.IsZero() && m.now().After(it.exp) {
		delete(m.items, id)
		return Session{}, ErrNoSession
	}
	return it.s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type ctxKey struct{}

// Current pairs a verified token id with its stored session.
type Current struct {
	ID string
	Session
}

func WithCurrent(ctx context.Context, c Current) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (Current, bool) {
	c, ok := ctx.Value(ctxKey{}).(Current)
	return c, ok
}
