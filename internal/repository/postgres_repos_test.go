package repository

import (
	"testing"
)

// 各リポジトリのコンストラクタが初期化されることを検証する。
// SQLを伴う動作はテスト用DBが必要なため、ここでは生成のみを確認する。

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresPasswordResetRepo_Initializes(t *testing.T) {
	repo := NewPostgresPasswordResetRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresRequestRepo_Initializes(t *testing.T) {
	repo := NewPostgresRequestRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresConversationRepo_Initializes(t *testing.T) {
	repo := NewPostgresConversationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresMessageRepo_Initializes(t *testing.T) {
	repo := NewPostgresMessageRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresNotificationRepo_Initializes(t *testing.T) {
	repo := NewPostgresNotificationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresInviteRepo_Initializes(t *testing.T) {
	repo := NewPostgresInviteRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresReviewRepo_Initializes(t *testing.T) {
	repo := NewPostgresReviewRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
