package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "events:user:"

// RedisStream はRedis pub/subによるStream実装。
type RedisStream struct {
	client *redis.Client
	logger *slog.Logger
}

// compile-time interface check
var _ Stream = (*RedisStream)(nil)

// NewRedisStream はRedisStreamを作成する。
func NewRedisStream(client *redis.Client, logger *slog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		logger: logger,
	}
}

// Publish はイベントをJSONにエンコードしてユーザーチャネルへ配信する。
func (s *RedisStream) Publish(ctx context.Context, event Event) error {
	if event.UserID == "" {
		return fmt.Errorf("イベントの宛先ユーザーIDが空です")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗しました: %w", err)
	}

	if err := s.client.Publish(ctx, userChannelPrefix+event.UserID, payload).Err(); err != nil {
		return fmt.Errorf("イベントの配信に失敗しました: %w", err)
	}
	return nil
}

// Subscribe はユーザーチャネルを購読し、デコード済みイベントのチャネルを返す。
func (s *RedisStream) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	sub := s.client.Subscribe(ctx, userChannelPrefix+userID)

	// 購読確立を待つ。失敗した場合は早期に返す。
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("チャネルの購読に失敗しました: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("イベントのデコードに失敗しました",
					"channel", msg.Channel,
					"error", err)
				continue
			}
			select {
			case out <- event:
			default:
				// 受信側が詰まっている場合はイベントを捨てる。
				// バッジ数は再集計で回復するため欠落は許容できる。
				s.logger.Warn("購読チャネルが満杯のためイベントを破棄しました",
					"user_id", userID,
					"type", event.Type)
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}

// LiveUserIDs はアクティブなユーザーチャネル名からユーザーIDを抽出して返す。
func (s *RedisStream) LiveUserIDs(ctx context.Context) ([]string, error) {
	channels, err := s.client.PubSubChannels(ctx, userChannelPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("アクティブチャネルの取得に失敗しました: %w", err)
	}

	userIDs := make([]string, 0, len(channels))
	for _, ch := range channels {
		userIDs = append(userIDs, strings.TrimPrefix(ch, userChannelPrefix))
	}
	return userIDs, nil
}
