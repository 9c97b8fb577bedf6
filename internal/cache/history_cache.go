package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docchat/internal/model"
)

const (
	historyKeyPrefix    = "docchat:history:"
	generationKeyPrefix = "docchat:history-gen:"

	generationTTL = 24 * time.Hour
)

// setIfGeneration stores the history only while the session's generation
// still matches the one the reader observed before loading rows.
var setIfGeneration = redisv9.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// HistoryCache keeps a JSON copy of a session's turns in Redis. Every write
// to a session bumps its generation; a fill carrying an older generation is
// dropped, so a slow reader cannot put back rows that predate a write.
type HistoryCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewHistoryCache(client *redisv9.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &HistoryCache{client: client, ttl: ttl}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID string) ([]model.Turn, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(sessionID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var turns []model.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return turns, true, nil
}

// Generation reports the session's write counter. Sessions never written
// through the cache are at generation 0.
func (c *HistoryCache) Generation(ctx context.Context, sessionID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(sessionID)).Int64()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get history generation failed: %w", err)
	}
	return gen, nil
}

// SetHistory fills the entry if generation is still current and reports
// whether it did.
func (c *HistoryCache) SetHistory(ctx context.Context, sessionID string, generation int64, turns []model.Turn) (bool, error) {
	payload, err := json.Marshal(turns)
	if err != nil {
		return false, fmt.Errorf("marshal history cache failed: %w", err)
	}
	keys := []string{historyKey(sessionID), generationKey(sessionID)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys,
		strconv.FormatInt(generation, 10), payload, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set history failed: %w", err)
	}
	return stored == 1, nil
}

// DeleteHistory drops the entry and bumps the generation in one transaction.
func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionID string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(sessionID))
	pipe.Expire(ctx, generationKey(sessionID), generationTTL)
	pipe.Del(ctx, historyKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

func generationKey(sessionID string) string {
	return generationKeyPrefix + sessionID
}
