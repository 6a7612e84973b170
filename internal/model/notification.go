// Package model はドメインモデルを定義する。
package model

import "time"

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// NotificationTypeMessage はダイレクトメッセージ着信の通知。
	// ベルフィード（お知らせ一覧）には決して含まれず、未読数も別集計される。
	NotificationTypeMessage NotificationType = "message"
	// NotificationTypeRideUpdate は依頼内容の変更通知。
	NotificationTypeRideUpdate NotificationType = "ride_update"
	// NotificationTypeClaim は依頼の引き受け/取り下げ通知。
	NotificationTypeClaim NotificationType = "claim"
	// NotificationTypeReview はレビュー依頼の通知。
	NotificationTypeReview NotificationType = "review"
	// NotificationTypeAnnouncement は管理者からのお知らせ。ピン留め可能。
	NotificationTypeAnnouncement NotificationType = "announcement"
)

// Notification は1ユーザー宛の通知レコードを表す。
//
// ファンアウトが作成し、既読化（Read）以外では変更されない。
// バッジ集計は通知を読み取り専用で参照する。
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	SubjectID string // 通知が指す依頼/会話/お知らせのID
	Body      string // サニタイズ済み本文
	Read      bool
	Pinned    bool // announcement種別のみ使用する
	CreatedAt time.Time
}

// Counts はユーザーの未読バッジ数を表す。
// メッセージとそれ以外の通知は必ず分離して数える。
type Counts struct {
	UnreadMessages      int
	UnreadNotifications int
}
