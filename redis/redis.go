package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolftalk/wolftalk/api"
)

// Redis provides caching in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const (
	postPrefix       = "post"
	departmentPrefix = "posts:department"
	maxSize          = 10
)

func departmentKey(id int64) string { return fmt.Sprintf("%s:%d", departmentPrefix, id) }
func postKey(id int64) string       { return fmt.Sprintf("%s:%d", postPrefix, id) }
func likedKey(key string) string    { return key + ":liked" }
func dislikedKey(key string) string { return key + ":disliked" }

// ListPosts returns a department's cached posts sorted by timestamp in
// descending order.
func (r *Redis) ListPosts(ctx context.Context, departmentID int64) ([]api.Post, error) {
	keys, err := r.cli.ZRevRange(ctx, departmentKey(departmentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	type cmds struct {
		hash            *redis.MapStringStringCmd
		liked, disliked *redis.StringSliceCmd
	}
	res := make([]cmds, len(keys))
	_, err = r.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			res[i] = cmds{
				hash:     pipe.HGetAll(ctx, key),
				liked:    pipe.SMembers(ctx, likedKey(key)),
				disliked: pipe.SMembers(ctx, dislikedKey(key)),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	out := make([]api.Post, 0, len(keys))
	for _, c := range res {
		var p post
		if err := c.hash.Scan(&p); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if p.ID == 0 {
			// Evicted between the range and the pipeline.
			continue
		}
		p.LikedBy = c.liked.Val()
		p.DislikedBy = c.disliked.Val()
		out = append(out, p.APIPost())
	}
	return out, nil
}

func writePost(ctx context.Context, pipe redis.Pipeliner, key string, p *post) {
	pipe.HSet(ctx, key, p)
	pipe.Del(ctx, likedKey(key), dislikedKey(key))
	if len(p.LikedBy) > 0 {
		pipe.SAdd(ctx, likedKey(key), toAny(p.LikedBy)...)
	}
	if len(p.DislikedBy) > 0 {
		pipe.SAdd(ctx, dislikedKey(key), toAny(p.DislikedBy)...)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// InsertPost adds the post to Redis with post:POST_ID as the key and adds the
// key to its department's sorted set.
func (r *Redis) InsertPost(ctx context.Context, p api.Post) error {
	if p.DepartmentID == nil {
		return errors.New("redis insert post: no department")
	}
	m := fromAPI(p)
	key := postKey(m.ID)
	set := departmentKey(m.DepartmentID)

	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writePost(ctx, pipe, key, m)
			pipe.ZAdd(ctx, set, redis.Z{
				Score:  float64(m.CreatedAt),
				Member: key,
			})
			return nil
		})
		return err
	}, key)

	if err != nil {
		return fmt.Errorf("redis insert post: %w", err)
	}

	// Simulate an eviction strategy by removing the oldest key in case the max cache size is exceeded.
	err = r.evictOldest(ctx, set)
	if err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// UpdatePost replaces a cached post and its vote sets. Posts that are not
// cached are left uncached.
func (r *Redis) UpdatePost(ctx context.Context, p api.Post) error {
	m := fromAPI(p)
	key := postKey(m.ID)

	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writePost(ctx, pipe, key, m)
			return nil
		})
		return err
	}, key)

	if err != nil {
		return fmt.Errorf("redis update post: %w", err)
	}
	return nil
}

// DeletePost removes a post and its vote sets from the cache.
func (r *Redis) DeletePost(ctx context.Context, p api.Post) error {
	key := postKey(p.ID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if p.DepartmentID != nil {
			pipe.ZRem(ctx, departmentKey(*p.DepartmentID), key)
		}
		pipe.Del(ctx, key, likedKey(key), dislikedKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete post: %w", err)
	}
	return nil
}

func (r *Redis) evictOldest(ctx context.Context, set string) error {
	vals, err := r.cli.ZRange(ctx, set, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}

	for _, key := range vals {
		_ = r.cli.ZRem(ctx, set, key).Err()
		_ = r.cli.Del(ctx, key, likedKey(key), dislikedKey(key)).Err()
	}

	return nil
}
