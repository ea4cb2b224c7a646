package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisDownloadTokens struct {
	client *redis.Client
}

func NewRedisDownloadTokens(client *redis.Client) *RedisDownloadTokens {
	return &RedisDownloadTokens{client: client}
}

func (r *RedisDownloadTokens) Issue(ctx context.Context, grant DownloadGrant, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(grant)
	if err != nil {
		return "", fmt.Errorf("marshal grant failed: %w", err)
	}

	ok, err := r.client.SetNX(ctx, downloadKey(token), data, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("download token collision")
	}
	return token, nil
}

func (r *RedisDownloadTokens) Redeem(ctx context.Context, token string) (*DownloadGrant, error) {
	data, err := r.client.GetDel(ctx, downloadKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}

	var grant DownloadGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("unmarshal grant failed: %w", err)
	}
	return &grant, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func downloadKey(token string) string {
	return fmt.Sprintf("download:%s", token)
}
