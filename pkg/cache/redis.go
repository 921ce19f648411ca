package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"tradeflow/conf"
)

var redisClient *redis.Client

// InitRedis 初始化redisClient
func InitRedis(redisCfg conf.RedisConfig) error {
	redisClient = redis.NewClient(&redis.Options{
		DB:           redisCfg.Db,
		Addr:         redisCfg.Addr,
		Password:     redisCfg.Password,
		PoolSize:     redisCfg.PoolSize,
		MinIdleConns: redisCfg.MinIdleConns,
		IdleTimeout:  time.Duration(redisCfg.IdleTimeout) * time.Second,
	})
	_, err := redisClient.Ping(context.TODO()).Result()
	return err
}

func GetRedisClient() *redis.Client {
	return redisClient
}

const engineStatusPrefix = "Engine_Status:"

// PublishEngineStatus 把引擎状态快照写入redis，供看板轮询
// redis未启用时静默跳过
func PublishEngineStatus(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Set(ctx, engineStatusPrefix+userID, payload, ttl).Err()
}

func GetEngineStatus(ctx context.Context, userID string) ([]byte, error) {
	if redisClient == nil {
		return nil, redis.Nil
	}
	return redisClient.Get(ctx, engineStatusPrefix+userID).Bytes()
}

func CloseRedis() {
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
