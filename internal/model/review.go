// Package model はドメインモデルを定義する。
package model

import "time"

// Review は完了した依頼に対する相互レビューを表す。
//
// 依頼の完了時に投稿者と引き受け者の双方へレビュー依頼が通知され、
// 各自が提出またはスキップできる。(依頼, レビュアー)の組につき1件まで。
type Review struct {
	ID         string
	RequestID  string
	ReviewerID string
	RevieweeID string
	Rating     int // 1〜5
	Comment    string
	CreatedAt  time.Time
}
