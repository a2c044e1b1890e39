package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperr "sudooom.campus.chat/internal/errors"
)

// RedisStore 基于 Redis 的实时存储适配器
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储适配器
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client 暴露底层客户端（健康检查用）
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// mapErr 把底层错误映射到统一错误分类
// 超时与连接失败都归为瞬时错误，读路径据此降级
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.ErrTimeout.Wrap(err)
	}
	return apperr.ErrConnectionUnavailable.Wrap(err)
}

func (s *RedisStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return mapErr(s.client.HSet(ctx, key, fields).Err())
}

func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

func (s *RedisStore) HashGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, mapErr(err)
	}

	result := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			data = map[string]string{}
		}
		result[i] = data
	}
	return result, nil
}

func (s *RedisStore) HashIncr(ctx context.Context, key, field string, delta int64) (int64, error) {
	v, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	return v, nil
}

func (s *RedisStore) IndexAdd(ctx context.Context, key, member string, score float64) error {
	return mapErr(s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (s *RedisStore) IndexRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return mapErr(s.client.ZRem(ctx, key, args...).Err())
}

func (s *RedisStore) IndexRevRange(ctx context.Context, key string, offset, count int64) ([]string, error) {
	if count <= 0 {
		count = -1
	}
	var stop int64 = -1
	if count > 0 {
		stop = offset + count - 1
	}
	members, err := s.client.ZRevRange(ctx, key, offset, stop).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return members, nil
}

func (s *RedisStore) IndexRangeByScore(ctx context.Context, key string, min float64, exclusive bool) ([]Entry, error) {
	minArg := strconv.FormatFloat(min, 'f', -1, 64)
	if exclusive {
		minArg = "(" + minArg
	}

	zs, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: minArg,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, mapErr(err)
	}

	return zToEntries(zs), nil
}

func (s *RedisStore) IndexTail(ctx context.Context, key string, count int64) ([]Entry, error) {
	start := int64(0)
	if count > 0 {
		start = -count
	}

	zs, err := s.client.ZRangeWithScores(ctx, key, start, -1).Result()
	if err != nil {
		return nil, mapErr(err)
	}

	return zToEntries(zs), nil
}

func (s *RedisStore) ApplyBatch(ctx context.Context, batch Batch) error {
	if len(batch.Hashes) == 0 && len(batch.Indexes) == 0 && len(batch.Incrs) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, h := range batch.Hashes {
		if len(h.Fields) > 0 {
			pipe.HSet(ctx, h.Key, h.Fields)
		}
	}
	for _, idx := range batch.Indexes {
		pipe.ZAdd(ctx, idx.Key, redis.Z{Score: idx.Score, Member: idx.Member})
	}
	for _, inc := range batch.Incrs {
		pipe.HIncrBy(ctx, inc.Key, inc.Field, inc.Delta)
	}

	_, err := pipe.Exec(ctx)
	return mapErr(err)
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return mapErr(s.client.Del(ctx, keys...).Err())
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx).Err())
}

func zToEntries(zs []redis.Z) []Entry {
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		entries = append(entries, Entry{Member: member, Score: z.Score})
	}
	return entries
}
