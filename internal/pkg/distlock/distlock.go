// Package distlock provides the distributed lock the send-due job holds so
// only one scheduler instance drains due prospects at a time. Redis is the
// preferred backend; when no Redis client is configured the lock falls back
// to a PostgreSQL advisory lock on the record store connection.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is the interface for a distributed mutual-exclusion lock. A Lock
// instance belongs to a single goroutine; concurrent holders need separate
// instances.
type Lock interface {
	// Acquire tries to take the lock. Returns true on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// New creates a lock using the best available backend: Redis when a client
// is provided, otherwise a PG advisory lock.
func New(redisClient *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if redisClient != nil {
		return NewRedisLock(redisClient, name, ttl)
	}
	return NewPGAdvisoryLock(db, name)
}

// =============================================================================
// PostgreSQL advisory lock
// =============================================================================
// Session-scoped: the lock is released automatically if the DB connection
// drops, which gives crash-safety comparable to a Redis TTL.

// PGAdvisoryLock implements Lock with pg_try_advisory_lock.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic lock ID from the job name.
func NewPGAdvisoryLock(db *sql.DB, name string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte("outreach:" + name))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire tries the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// =============================================================================
// Redis lock
// =============================================================================

// RedisLock implements Lock with SET NX plus a random ownership token, so a
// crashed holder's expired lock can never be released by a later holder.
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewRedisLock creates a Redis-backed lock for the named job.
func NewRedisLock(client *redis.Client, name string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    fmt.Sprintf("outreach:lock:%s", name),
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// Acquire tries to take the lock. Returns true on success.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release deletes the lock only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}
