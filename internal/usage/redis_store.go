package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"reup-suggest-backend/internal/suggest"
)

// RedisStore keeps one hash per (user, task): count and last_used (unix ms).
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL expires counters of tasks that stop being used. Zero keeps them forever.
	TTL time.Duration
}

// recordScript bumps the counter and keeps the newest timestamp.
var recordScript = redis.NewScript(`
local prev = tonumber(redis.call('HGET', KEYS[1], 'last_used') or '0')
redis.call('HINCRBY', KEYS[1], 'count', 1)
if tonumber(ARGV[1]) > prev then
	redis.call('HSET', KEYS[1], 'last_used', ARGV[1])
end
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "suggest:usage", ttl: opts.TTL}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(owner int, taskID string) string {
	return r.prefix + ":" + strconv.Itoa(owner) + ":" + taskID
}

func (r *RedisStore) Record(ctx context.Context, owner int, taskID string, at time.Time) error {
	err := recordScript.Run(ctx, r.client,
		[]string{r.key(owner, taskID)},
		at.UnixMilli(), r.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (r *RedisStore) Stats(ctx context.Context, owner int, taskIDs []string) (map[string]suggest.UsageStat, error) {
	ids := uniqueIDs(taskIDs)
	out := make(map[string]suggest.UsageStat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, r.key(owner, id), "count", "last_used")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read usage: %w", err)
	}

	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		st, ok := parseStat(vals)
		if ok {
			out[ids[i]] = st
		}
	}
	return out, nil
}

func parseStat(vals []interface{}) (suggest.UsageStat, bool) {
	if len(vals) != 2 || vals[0] == nil {
		return suggest.UsageStat{}, false
	}
	countStr, _ := vals[0].(string)
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return suggest.UsageStat{}, false
	}

	st := suggest.UsageStat{Count: count}
	if lastStr, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(lastStr, 10, 64); err == nil {
			st.LastUsed = time.UnixMilli(ms).UTC()
		}
	}
	return st, true
}
