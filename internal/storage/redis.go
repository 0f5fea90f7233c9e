package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/constants"
)

// ErrNotFound is returned when a key is not found in Redis.
var ErrNotFound = redis.Nil

// Redis wraps the Redis client.
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter connects to Redis with tracing hooks installed.
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the Redis client connection.
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// JDVectorKey builds the cache key of a JD embedding.
func JDVectorKey(model, jdHash string) string {
	return fmt.Sprintf(constants.KeyJDVector, model, jdHash)
}

// SetJDVector caches a JD embedding along with the model that produced it.
func (r *Redis) SetJDVector(ctx context.Context, key string, vector []float32, model string, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	if ttl <= 0 {
		ttl = constants.JDVectorCacheDuration
	}

	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, key, "vector", vectorJSON, "model_version", model)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set JD vector cache: %w", err)
	}
	return nil
}

// GetJDVector returns a cached JD embedding. A miss is reported as
// ErrNotFound.
func (r *Redis) GetJDVector(ctx context.Context, key string) ([]float32, string, error) {
	if r.Client == nil {
		return nil, "", fmt.Errorf("redis client is not initialized")
	}
	vals, err := r.Client.HMGet(ctx, key, "vector", "model_version").Result()
	if err != nil {
		return nil, "", err
	}
	if len(vals) < 2 || vals[0] == nil {
		return nil, "", ErrNotFound
	}
	vectorJSON, ok := vals[0].(string)
	if !ok || vectorJSON == "" {
		return nil, "", fmt.Errorf("malformed vector cache entry %s", key)
	}
	var vector []float32
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, "", fmt.Errorf("unmarshal vector: %w", err)
	}
	model, _ := vals[1].(string)
	return vector, model, nil
}

// CheckAndSetSubmission records analysisID for a content hash unless one is
// already recorded, in which case the existing ID is returned.
func (r *Redis) CheckAndSetSubmission(ctx context.Context, contentHash, analysisID string, ttl time.Duration) (bool, string, error) {
	if r.Client == nil {
		return false, "", fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeySubmissionDedup, contentHash)
	ok, err := r.Client.SetNX(ctx, key, analysisID, ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("record submission hash: %w", err)
	}
	if ok {
		return false, "", nil
	}
	existing, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			return false, "", nil
		}
		return true, "", fmt.Errorf("read existing submission: %w", err)
	}
	return true, existing, nil
}

// ForgetSubmission removes a content hash record, used when a submission
// could not be persisted.
func (r *Redis) ForgetSubmission(ctx context.Context, contentHash string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, fmt.Sprintf(constants.KeySubmissionDedup, contentHash)).Err()
}

// AnalysisLockKey builds the lock key of one analysis.
func AnalysisLockKey(analysisID string) string {
	return fmt.Sprintf(constants.KeyAnalysisLock, analysisID)
}

// AcquireLock sets lockKey if absent. It returns the holder token, or ""
// when another holder owns the lock.
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockValue := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// ReleaseLock deletes lockKey only if lockValue still holds it.
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	res, err := releaseLockScript.Run(ctx, r.Client, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}
	released, ok := res.(int64)
	return ok && released == 1, nil
}
