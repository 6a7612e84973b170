// Package model はドメインモデルを定義する。
package model

import "time"

// InviteCode は招待制サインアップ用の招待コードを表す。
//
// 1コードにつき1回だけ使用できる。消費は条件付きUPDATE
// （WHERE used_by IS NULL）で行い、同時の使用試行のうち
// 成功するのは常に1つだけ。
type InviteCode struct {
	ID        string
	Code      string
	CreatedBy string
	UsedBy    *string
	UsedAt    *time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable はコードが未使用かつ有効期限内かを返す。
func (i *InviteCode) Usable(now time.Time) bool {
	return i.UsedBy == nil && now.Before(i.ExpiresAt)
}
