package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisOptions configures the connection pool behind a RedisStore.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	MaxIdle      int
	MaxActive    int
	IdleTimeout  time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisPool returns a pool that dials opts.Addr lazily.
func NewRedisPool(opts RedisOptions) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     opts.MaxIdle,
		MaxActive:   opts.MaxActive,
		IdleTimeout: opts.IdleTimeout,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", opts.Addr,
				redis.DialPassword(opts.Password),
				redis.DialDatabase(opts.DB),
				redis.DialConnectTimeout(opts.DialTimeout),
				redis.DialReadTimeout(opts.ReadTimeout),
				redis.DialWriteTimeout(opts.WriteTimeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// RedisStore maps namespaces onto Redis hashes and sets onto Redis sets.
type RedisStore struct {
	pool      *redis.Pool
	opTimeout time.Duration
}

func NewRedisStore(pool *redis.Pool, opTimeout time.Duration) *RedisStore {
	return &RedisStore{pool: pool, opTimeout: opTimeout}
}

// do runs one command on a pooled connection under the per-operation
// timeout. Every failure comes back as a *BackendError.
func (s *RedisStore) do(ctx context.Context, op, namespace, key, cmd string, args ...interface{}) (interface{}, error) {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, backendErr(op, namespace, key, err)
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, cmd, args...)
	if err != nil {
		return nil, backendErr(op, namespace, key, err)
	}
	return reply, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace, id string, data []byte) error {
	_, err := s.do(ctx, "put", namespace, id, "HSET", namespace, id, data)
	return err
}

func (s *RedisStore) Get(ctx context.Context, namespace, id string) ([]byte, error) {
	reply, err := s.do(ctx, "get", namespace, id, "HGET", namespace, id)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrNotFound
	}
	data, err := redis.Bytes(reply, nil)
	if err != nil {
		return nil, backendErr("get", namespace, id, err)
	}
	return data, nil
}

func (s *RedisStore) Exists(ctx context.Context, namespace, id string) (bool, error) {
	reply, err := s.do(ctx, "exists", namespace, id, "HEXISTS", namespace, id)
	if err != nil {
		return false, err
	}
	ok, err := redis.Bool(reply, nil)
	if err != nil {
		return false, backendErr("exists", namespace, id, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace, id string) (bool, error) {
	reply, err := s.do(ctx, "delete", namespace, id, "HDEL", namespace, id)
	if err != nil {
		return false, err
	}
	n, err := redis.Int(reply, nil)
	if err != nil {
		return false, backendErr("delete", namespace, id, err)
	}
	return n > 0, nil
}

func (s *RedisStore) ListIDs(ctx context.Context, namespace string) ([]string, error) {
	return s.strings(ctx, "list", namespace, "HKEYS")
}

func (s *RedisStore) SetAdd(ctx context.Context, set, member string) error {
	_, err := s.do(ctx, "sadd", set, member, "SADD", set, member)
	return err
}

func (s *RedisStore) SetRemove(ctx context.Context, set, member string) error {
	_, err := s.do(ctx, "srem", set, member, "SREM", set, member)
	return err
}

func (s *RedisStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	return s.strings(ctx, "smembers", set, "SMEMBERS")
}

func (s *RedisStore) strings(ctx context.Context, op, key, cmd string) ([]string, error) {
	reply, err := s.do(ctx, op, key, "", cmd, key)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return []string{}, nil
	}
	values, err := redis.Strings(reply, nil)
	if err != nil {
		return nil, backendErr(op, key, "", err)
	}
	return values, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	reply, err := s.do(ctx, "ping", "", "", "PING")
	if err != nil {
		return err
	}
	if status, _ := redis.String(reply, nil); status != "PONG" {
		return backendErr("ping", "", "", fmt.Errorf("unexpected reply %v", reply))
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.pool.Close()
}
