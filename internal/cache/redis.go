package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"warehouse-service/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisClient struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisClient(addr, password string, db int, log *zap.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully", zap.String("addr", addr))

	return &RedisClient{
		client: rdb,
		log:    log,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// StockCache хранит снимки ячеек в JSON под ключом stock:<product>:<location>
// и поколение ключа под stockgen:<product>:<location>. После коммита ключ удаляется,
// а поколение растёт; заполняется кэш на чтении через Fill.
type StockCache struct {
	rc  *RedisClient
	ttl time.Duration
}

// genTTL заведомо больше любого чтения из БД между Get и Fill.
const genTTL = 24 * time.Hour

// fillScript: SET только если поколение совпадает с прочитанным в Get.
var fillScript = redis.NewScript(`
local g = redis.call('GET', KEYS[2])
if not g then g = '0' end
if g ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewStockCache(rc *RedisClient, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StockCache{rc: rc, ttl: ttl}
}

func stockKey(productID, locationID uuid.UUID) string {
	return fmt.Sprintf("stock:%s:%s", productID, locationID)
}

func genKey(productID, locationID uuid.UUID) string {
	return fmt.Sprintf("stockgen:%s:%s", productID, locationID)
}

func (c *StockCache) Get(ctx context.Context, productID, locationID uuid.UUID) (service.StockLevel, bool, int64, error) {
	key := stockKey(productID, locationID)
	vals, err := c.rc.client.MGet(ctx, key, genKey(productID, locationID)).Result()
	if err != nil {
		return service.StockLevel{}, false, 0, err
	}

	var gen int64
	if g, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(g, 10, 64); err != nil {
			return service.StockLevel{}, false, 0, fmt.Errorf("stock cache generation %q: %w", g, err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return service.StockLevel{}, false, gen, nil
	}
	var level service.StockLevel
	if err := json.Unmarshal([]byte(raw), &level); err != nil {
		// битый снимок не должен ломать чтение: считаем промахом
		c.rc.log.Warn("stock cache entry corrupted", zap.String("key", key), zap.Error(err))
		return service.StockLevel{}, false, gen, nil
	}
	return level, true, gen, nil
}

func (c *StockCache) Fill(ctx context.Context, productID, locationID uuid.UUID, level service.StockLevel, gen int64) (bool, error) {
	raw, err := json.Marshal(level)
	if err != nil {
		return false, err
	}
	n, err := fillScript.Run(ctx, c.rc.client,
		[]string{stockKey(productID, locationID), genKey(productID, locationID)},
		strconv.FormatInt(gen, 10), string(raw), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *StockCache) Invalidate(ctx context.Context, productID, locationID uuid.UUID) error {
	gk := genKey(productID, locationID)
	_, err := c.rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gk)
		pipe.Expire(ctx, gk, genTTL)
		pipe.Del(ctx, stockKey(productID, locationID))
		return nil
	})
	return err
}
