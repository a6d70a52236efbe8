package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/picklefed/court-reservation/internal/application"
)

// 世代キーはスナップショットより長く残す
const minGenerationTTL = 24 * time.Hour

// AvailabilityCache はコート・日付の空き状況を世代つきのキーにJSONで保存する
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

// Get は現在の世代と、その世代の空き状況を取得する。キャッシュミス時の snapshot は nil
func (c *AvailabilityCache) Get(ctx context.Context, courtID, date string) (*application.AvailabilitySnapshot, int64, error) {
	gen, err := c.generation(ctx, courtID, date)
	if err != nil {
		return nil, 0, err
	}
	raw, err := c.client.Get(ctx, snapshotKey(courtID, date, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, nil
		}
		return nil, gen, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var snap application.AvailabilitySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, gen, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return &snap, gen, nil
}

// Set は空き状況を gen の世代として保存する。無効化後の古い世代は読まれない
func (c *AvailabilityCache) Set(ctx context.Context, gen int64, snap *application.AvailabilitySnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("キャッシュの変換に失敗: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(snap.CourtID, snap.Date, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は世代を進めてコート・日付のキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, courtID, date string) error {
	key := generationKey(courtID, date)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.generationTTL())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) generation(ctx context.Context, courtID, date string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(courtID, date)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("キャッシュ世代の取得に失敗: %w", err)
	}
	return gen, nil
}

func (c *AvailabilityCache) generationTTL() time.Duration {
	if ttl := 2 * c.ttl; ttl > minGenerationTTL {
		return ttl
	}
	return minGenerationTTL
}

func generationKey(courtID, date string) string {
	return fmt.Sprintf("availability:gen:%s:%s", courtID, date)
}

func snapshotKey(courtID, date string, gen int64) string {
	return fmt.Sprintf("availability:%s:%s:%d", courtID, date, gen)
}

var _ application.AvailabilityCache = (*AvailabilityCache)(nil)
