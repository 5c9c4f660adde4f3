package prediction

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

const (
	defaultScanCount = 1000
	pipelineBatch    = 500
)

// RedisConfig holds settings for reading predictions from Redis.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	MaxLen    int   // items fetched per list; 0 = all
	ScanCount int64 // SCAN COUNT hint
}

// RedisSource reads recommendation lists stored as Redis LISTs, one key per
// user ("<prefix><user_id>") or per impression ("<prefix><user_id>:<impr_id>").
// It never writes.
type RedisSource struct {
	client    *redis.Client
	prefix    string
	maxLen    int
	scanCount int64
}

// NewRedisSource connects to Redis. Returns error if connection fails.
func NewRedisSource(cfg RedisConfig) (*RedisSource, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ServiceUnavailableError("redis", err)
	}

	return newRedisSource(client, cfg), nil
}

func newRedisSource(client *redis.Client, cfg RedisConfig) *RedisSource {
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &RedisSource{
		client:    client,
		prefix:    cfg.KeyPrefix,
		maxLen:    cfg.MaxLen,
		scanCount: scanCount,
	}
}

// Load scans every key under the prefix and fetches the head of each list.
// Records are ordered by key.
func (s *RedisSource) Load(ctx context.Context) ([]Record, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	stop := int64(-1)
	if s.maxLen > 0 {
		stop = int64(s.maxLen - 1)
	}

	records := make([]Record, 0, len(keys))
	for start := 0; start < len(keys); start += pipelineBatch {
		end := min(start+pipelineBatch, len(keys))
		batch := keys[start:end]

		pipe := s.client.Pipeline()
		cmds := make([]*redis.StringSliceCmd, len(batch))
		for i, key := range batch {
			cmds[i] = pipe.LRange(ctx, key, 0, stop)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, errors.ServiceUnavailableError("redis", fmt.Errorf("fetching lists: %w", err))
		}

		for i, key := range batch {
			userID, imprID, err := ParseKey(s.prefix, key)
			if err != nil {
				return nil, err
			}
			records = append(records, Record{
				UserID:  userID,
				ImprID:  imprID,
				RecList: cmds[i].Val(),
			})
		}
	}

	return records, nil
}

func (s *RedisSource) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.ServiceUnavailableError("redis", fmt.Errorf("scanning keys: %w", err))
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Close closes the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

// ParseKey splits a prediction key into user ID and optional impression ID.
func ParseKey(prefix, key string) (string, *int64, error) {
	if !strings.HasPrefix(key, prefix) {
		return "", nil, errors.ValidationError(fmt.Sprintf("key %q does not start with prefix %q", key, prefix))
	}
	rest := strings.TrimPrefix(key, prefix)

	userID, imprPart, hasImpr := strings.Cut(rest, ":")
	if userID == "" {
		return "", nil, errors.ValidationError(fmt.Sprintf("key %q has no user id", key))
	}
	if !hasImpr {
		return userID, nil, nil
	}

	imprID, err := strconv.ParseInt(imprPart, 10, 64)
	if err != nil {
		return "", nil, errors.ValidationError(fmt.Sprintf("key %q has invalid impression id %q", key, imprPart))
	}
	return userID, &imprID, nil
}

// Key builds the Redis key for a prediction record.
func Key(prefix string, rec Record) string {
	if rec.ImprID != nil {
		return fmt.Sprintf("%s%s:%d", prefix, rec.UserID, *rec.ImprID)
	}
	return prefix + rec.UserID
}
