// Package model はドメインモデルを定義する。
package model

import "time"

// User はコミュニティの利用ユーザーを表す。
//
// PhoneVerifiedは引き受け操作の前提条件。未検証のユーザーは
// 依頼を引き受けられない（MISSING_PHONE_NUMBERエラー）。
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Phone         string
	PhoneVerified bool
	IsAdmin       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session はユーザーのログインセッションを表す。
// IDがベアラートークンとしてクライアントに渡される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordReset はパスワード再設定用のワンタイムトークンを表す。
type PasswordReset struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
