package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("account locked")

type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

// Lockout counts failed logins per email. After Attempts failures inside
// Window the email is locked for Window.
type Lockout interface {
	Check(ctx context.Context, email string) error
	Fail(ctx context.Context, email string) (int, error)
	Reset(ctx context.Context, email string) error
	Attempts() int
}

func NewLockout(client *redis.Client, attempts int, window time.Duration) Lockout {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if client == nil {
		return NewMemoryLockout(attempts, window)
	}
	return &RedisLockout{client: client, attempts: attempts, window: window, now: time.Now}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type RedisLockout struct {
	client   *redis.Client
	attempts int
	window   time.Duration
	now      func() time.Time
}

func failKey(email string) string { return "lockout:fail:" + normEmail(email) }
func lockKey(email string) string { return "lockout:until:" + normEmail(email) }

func (r *RedisLockout) Attempts() int { return r.attempts }

func (r *RedisLockout) Check(ctx context.Context, email string) error {
	v, err := r.client.Get(ctx, lockKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lockout check: %w", err)
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	until := time.Unix(sec, 0)
	if r.now().Before(until) {
		return &LockedError{Until: until}
	}
	return nil
}

// Fail records one failure and returns the attempt number. The failure that
// reaches the limit returns a LockedError.
func (r *RedisLockout) Fail(ctx context.Context, email string) (int, error) {
	n, err := r.client.Incr(ctx, failKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("lockout incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, failKey(email), r.window).Err(); err != nil {
			return int(n), fmt.Errorf("lockout expire: %w", err)
		}
	}
	if int(n) < r.attempts {
		return int(n), nil
	}
	until := r.now().Add(r.window)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, lockKey(email), until.Unix(), r.window)
		p.Del(ctx, failKey(email))
		return nil
	})
	if err != nil {
		return int(n), fmt.Errorf("lockout lock: %w", err)
	}
	return int(n), &LockedError{Until: until}
}

func (r *RedisLockout) Reset(ctx context.Context, email string) error {
	return r.client.Del(ctx, failKey(email), lockKey(email)).Err()
}

type MemoryLockout struct {
	mu       sync.Mutex
	attempts int
	window   time.Duration
	entries  map[string]*lockEntry
	now      func() time.Time
}

type lockEntry struct {
	count  int
	first  time.Time
	locked time.Time
}

func NewMemoryLockout(attempts int, window time.Duration) *MemoryLockout {
	return &MemoryLockout{attempts: attempts, window: window, entries: make(map[string]*lockEntry), now: time.Now}
}

func (m *MemoryLockout) Attempts() int { return m.attempts }

func (m *MemoryLockout) Check(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[normEmail(email)]
	if ok && m.now().Before(e.locked) {
		return &LockedError{Until: e.locked}
	}
	return nil
}

func (m *MemoryLockout) Fail(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	key := normEmail(email)
	e, ok := m.entries[key]
	if !ok || now.Sub(e.first) > m.window || (!e.locked.IsZero() && !now.Before(e.locked)) {
		e = &lockEntry{first: now}
		m.entries[key] = e
	}
	e.count++
	n := e.count
	if n < m.attempts {
		return n, nil
	}
	e.locked = now.Add(m.window)
	e.count = 0
	return n, &LockedError{Until: e.locked}
}

func (m *MemoryLockout) Reset(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, normEmail(email))
	return nil
}
