// Package events はリアルタイムイベント配信の抽象化を提供する。
//
// 具体的なトランスポート（Redis pub/sub、WebSocket等）は実装の詳細であり、
// ファンアウトとバッジ再集計はStreamインターフェースにのみ依存する。
package events

import "context"

// EventType はイベントの種別を表す。
type EventType string

const (
	// EventTypeCounts は未読バッジ数の更新イベント。
	EventTypeCounts EventType = "counts"
	// EventTypeNotification は新規通知の到着イベント。
	EventTypeNotification EventType = "notification"
	// EventTypeMessage は新規メッセージの到着イベント。
	EventTypeMessage EventType = "message"
	// EventTypeRequestUpdate は依頼の状態変化イベント。
	EventTypeRequestUpdate EventType = "request_update"
)

// Event は1ユーザー宛の配信イベントを表す。
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	SubjectID string    `json:"subject_id,omitempty"`

	// countsイベントのみ使用する。
	UnreadMessages      int `json:"unread_messages,omitempty"`
	UnreadNotifications int `json:"unread_notifications,omitempty"`
}

// Stream はイベント配信のインターフェース。
type Stream interface {
	// Publish はイベントを該当ユーザーの購読者へ配信する。
	// 購読者がいない場合も成功として扱う。
	Publish(ctx context.Context, event Event) error

	// Subscribe は指定ユーザー宛イベントの受信チャネルを返す。
	// 返されたクローズ関数で購読を解除する。
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)

	// LiveUserIDs は現在ライブ購読を持つユーザーIDを返す。
	// バッジ再集計ワーカーがポーリング周期の選択に使う。
	LiveUserIDs(ctx context.Context) ([]string, error)
}
