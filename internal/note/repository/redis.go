package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/gogotex/gonotes/internal/note"
)

// RedisRepo stores notes as JSON under "<prefix><id>" and keeps the ids in a
// set for listing. SaveIfVersion is an optimistic WATCH/MULTI/EXEC
// transaction on the note key.
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepo creates a Redis-based note repository. Prefix may be empty.
func NewRedisRepo(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "note:"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) key(id string) string { return r.prefix + id }

func (r *RedisRepo) indexKey() string { return "index:" + r.prefix }

func (r *RedisRepo) Create(ctx context.Context, n *note.Note) (string, error) {
	prepareCreate(n)
	b, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	ok, err := r.client.SetNX(ctx, r.key(n.ID), b, 0).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAlreadyExists
	}
	if err := r.client.SAdd(ctx, r.indexKey(), n.ID).Err(); err != nil {
		return "", err
	}
	return n.ID, nil
}

func (r *RedisRepo) Load(ctx context.Context, id string) (*note.Note, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, note.ErrNotFound
		}
		return nil, err
	}
	var n note.Note
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *RedisRepo) List(ctx context.Context) ([]*note.Note, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	out := []*note.Note{}
	for _, id := range ids {
		n, err := r.Load(ctx, id)
		if errors.Is(err, note.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *RedisRepo) SaveIfVersion(ctx context.Context, id string, expectedVersion uint64, f note.Fields) (*note.Note, error) {
	key := r.key(id)
	var saved *note.Note
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return note.ErrNotFound
			}
			return err
		}
		var cur note.Note
		if err := json.Unmarshal(b, &cur); err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return &note.VersionMismatchError{ID: id, Expected: expectedVersion, Actual: cur.Version}
		}
		next := cur.Apply(f)
		nb, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nb, 0)
			return nil
		})
		if err != nil {
			return err
		}
		saved = next
		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// the key changed between WATCH and EXEC
		cur, lerr := r.Load(ctx, id)
		if lerr != nil {
			return nil, lerr
		}
		return nil, &note.VersionMismatchError{ID: id, Expected: expectedVersion, Actual: cur.Version}
	}
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *RedisRepo) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return note.ErrNotFound
	}
	return r.client.SRem(ctx, r.indexKey(), id).Err()
}
