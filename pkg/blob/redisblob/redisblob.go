// Package redisblob stores blobs as Redis hashes with a monotonically
// increasing revision field.
package redisblob

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"MacoPull/pkg/blob"
)

const (
	fieldData = "data"
	fieldRev  = "rev"
)

type Store struct {
	client *redis.Client
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New wraps an existing client. Keys are "<prefix>:<path>".
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, blob.Token, error) {
	vals, err := s.client.HMGet(ctx, s.key(path), fieldData, fieldRev).Result()
	if err != nil {
		return nil, "", fmt.Errorf("redis blob: get %s: %w", path, err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	rev, _ := vals[1].(string)
	return []byte(data), blob.Token(rev), nil
}

func (s *Store) Put(ctx context.Context, path string, data []byte, ifMatch blob.Token, _ ...blob.WriteOption) (blob.Token, error) {
	key := s.key(path)
	var next blob.Token
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, fieldRev).Result()
		if errors.Is(err, redis.Nil) {
			cur = ""
		} else if err != nil {
			return err
		}
		if blob.Token(cur) != ifMatch {
			return blob.ErrPreconditionFailed
		}
		next = nextRev(cur)
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fieldData, data, fieldRev, string(next))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, blob.ErrPreconditionFailed), errors.Is(err, redis.TxFailedErr):
		return "", blob.ErrPreconditionFailed
	default:
		return "", fmt.Errorf("redis blob: put %s: %w", path, err)
	}
}

func (s *Store) Overwrite(ctx context.Context, path string, data []byte, _ ...blob.WriteOption) (blob.Token, error) {
	key := s.key(path)
	var rev *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rev = p.HIncrBy(ctx, key, fieldRev, 1)
		p.HSet(ctx, key, fieldData, data)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis blob: overwrite %s: %w", path, err)
	}
	return blob.Token(strconv.FormatInt(rev.Val(), 10)), nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(path)).Result()
	if err != nil {
		return false, fmt.Errorf("redis blob: exists %s: %w", path, err)
	}
	return n > 0, nil
}

func (s *Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + ":" + path
}

func nextRev(cur string) blob.Token {
	n, _ := strconv.ParseInt(cur, 10, 64)
	return blob.Token(strconv.FormatInt(n+1, 10))
}
