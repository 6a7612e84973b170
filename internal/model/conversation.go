// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation は参加者間のメッセージスレッドを表す。
//
// 依頼の引き受けから生まれた会話はSubjectRequestIDで依頼に紐付く。
// (投稿者, 引き受け者, 依頼)の組につき会話は常に1つ。
// 2回目以降のget-or-createは既存の会話を返す（冪等）。
type Conversation struct {
	ID               string
	SubjectRequestID *string
	// ParticipantKeyは参加者ID集合の正規化キー（ソート済み、":"区切り）。
	// ダイレクトメッセージの重複スレッド防止に一意制約を張る。
	ParticipantKey string
	ParticipantIDs []string
	CreatedAt      time.Time
}

// HasParticipant は指定ユーザーが会話の参加者かを返す。
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ParticipantKeyFor は参加者ID集合から正規化キーを生成する。
// 順序に依存しない同一性判定のため、IDをソートしてから連結する。
func ParticipantKeyFor(participantIDs []string) string {
	ids := make([]string, len(participantIDs))
	copy(ids, participantIDs)
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Message は会話内の1メッセージを表す。Bodyはサニタイズ済み。
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	CreatedAt      time.Time
}
