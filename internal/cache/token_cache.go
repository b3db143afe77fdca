package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/madfrog2047/Maskbook/internal/config"
	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/errors"
)

const (
	// tokenKey token:网络:代币地址 -> 元数据JSON
	tokenKey = "token:%s:%s"
)

// TokenCache ERC20代币元数据的redis旁路缓存
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenCache(cfg *config.RedisConfig) (*TokenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		MinIdleConns: 4,
		PoolTimeout:  time.Second * 30,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.New(errors.ErrRedisConnect, "连接Redis失败: "+cfg.Addr(), err)
	}

	ttl := time.Duration(cfg.TokenCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &TokenCache{client: client, ttl: ttl}, nil
}

func (c *TokenCache) Close() error {
	return c.client.Close()
}

// Get 读取缓存的代币元数据，未命中返回nil
func (c *TokenCache) Get(ctx context.Context, network models.Network, address string) (*models.ERC20TokenRecord, error) {
	key := fmt.Sprintf(tokenKey, network, address)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var token models.ERC20TokenRecord
	if err := json.Unmarshal(data, &token); err != nil {
		// 缓存损坏时当作未命中，由数据库回填
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}
	return &token, nil
}

// Set 写入代币元数据
func (c *TokenCache) Set(ctx context.Context, token *models.ERC20TokenRecord) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(tokenKey, token.Network, token.Address)
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate 删除缓存项，元数据变更或软删除后调用
func (c *TokenCache) Invalidate(ctx context.Context, network models.Network, address string) error {
	return c.client.Del(ctx, fmt.Sprintf(tokenKey, network, address)).Err()
}
