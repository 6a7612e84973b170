// Package badge は未読バッジ数のキャッシュと権威再集計を提供する。
//
// キャッシュは確定値（confirmed）と楽観的差分（delta）を別フィールドで持つ。
// ファンアウトはdeltaのみを加算し、権威ストアからの再集計がconfirmedを
// 上書きしてdeltaをゼロに戻す。表示値は常にconfirmed + delta。
package badge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brcolf/naarscars/internal/model"
)

const (
	keyPrefix = "badge:"

	fieldConfirmedMessages = "confirmed_messages"
	fieldConfirmedBell     = "confirmed_bell"
	fieldDeltaMessages     = "delta_messages"
	fieldDeltaBell         = "delta_bell"
)

// cacheTTL はバッジキーの有効期限。書き込みのたびに更新される。
const cacheTTL = 7 * 24 * time.Hour

// Cache は未読バッジ数のRedisキャッシュ。
type Cache struct {
	client *redis.Client
}

// NewCache はCacheを作成する。
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(userID string) string {
	return keyPrefix + userID
}

// ApplyDelta は楽観的差分を加算し、加算後の表示値を返す。
func (c *Cache) ApplyDelta(ctx context.Context, userID string, deltaMessages, deltaBell int) (model.Counts, error) {
	key := cacheKey(userID)

	pipe := c.client.TxPipeline()
	if deltaMessages != 0 {
		pipe.HIncrBy(ctx, key, fieldDeltaMessages, int64(deltaMessages))
	}
	if deltaBell != 0 {
		pipe.HIncrBy(ctx, key, fieldDeltaBell, int64(deltaBell))
	}
	pipe.Expire(ctx, key, cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Counts{}, fmt.Errorf("バッジ差分の加算に失敗しました: %w", err)
	}

	return c.Read(ctx, userID)
}

// SetConfirmed は確定値を上書きし、差分をゼロに戻す。
func (c *Cache) SetConfirmed(ctx context.Context, userID string, counts model.Counts) error {
	key := cacheKey(userID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldConfirmedMessages, counts.UnreadMessages,
		fieldConfirmedBell, counts.UnreadNotifications,
		fieldDeltaMessages, 0,
		fieldDeltaBell, 0,
	)
	pipe.Expire(ctx, key, cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("バッジ確定値の書き込みに失敗しました: %w", err)
	}
	return nil
}

// Read は表示値（confirmed + delta、負値は0に丸める）を返す。
// キーが存在しない場合はゼロ値を返す。
func (c *Cache) Read(ctx context.Context, userID string) (model.Counts, error) {
	fields, err := c.client.HGetAll(ctx, cacheKey(userID)).Result()
	if err != nil {
		return model.Counts{}, fmt.Errorf("バッジキャッシュの読み取りに失敗しました: %w", err)
	}

	counts := model.Counts{
		UnreadMessages:      clampNonNegative(fieldInt(fields, fieldConfirmedMessages) + fieldInt(fields, fieldDeltaMessages)),
		UnreadNotifications: clampNonNegative(fieldInt(fields, fieldConfirmedBell) + fieldInt(fields, fieldDeltaBell)),
	}
	return counts, nil
}

func fieldInt(fields map[string]string, name string) int {
	v, err := strconv.Atoi(fields[name])
	if err != nil {
		return 0
	}
	return v
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
