// Package model はドメインモデルを定義する。
package model

import "time"

// RequestKind は依頼の種別（ライド/お願いごと）を表す。
type RequestKind string

const (
	// RequestKindRide は送迎依頼。
	RequestKindRide RequestKind = "ride"
	// RequestKindFavor はお願いごと依頼。
	RequestKindFavor RequestKind = "favor"
)

// RequestStatus は依頼のライフサイクル状態を表す。
//
// 状態遷移:
//
//	open --claim--> pending/confirmed --unclaim--> open
//	pending/confirmed --complete--> completed (終端)
//
// completedから他の状態への遷移は存在しない。
type RequestStatus string

const (
	// RequestStatusOpen は未引き受けの状態。claimant_idはNULL。
	RequestStatusOpen RequestStatus = "open"
	// RequestStatusPending は引き受け済みで投稿者の確認待ちの状態（favor）。
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusConfirmed は引き受けが確定した状態（ride）。
	RequestStatusConfirmed RequestStatus = "confirmed"
	// RequestStatusCompleted は完了した終端状態。レビュー関連以外は不変。
	RequestStatusCompleted RequestStatus = "completed"
)

// Request はライド/お願いごとの依頼を表す。両種別は同一の形を共有する。
//
// 不変条件: ClaimantIDが非nil ⟺ Status != open。
// 引き受けは条件付きUPDATE（WHERE status = 'open'）で行われるため、
// 同時の引き受け試行のうち成功するのは常に1つだけ。
type Request struct {
	ID          string
	Kind        RequestKind
	PosterID    string
	ClaimantID  *string
	Status      RequestStatus
	Title       string
	Description string
	// Origin/Destinationはride種別のみ使用する。favorでは空。
	Origin      string
	Destination string
	NeededAt    *time.Time

	// 完了後のレビュー追跡。completed後も更新可能な唯一のフィールド群。
	Reviewed        bool
	ReviewSkipped   bool
	ReviewSkippedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claimed は依頼が引き受け済み（pendingまたはconfirmed）かを返す。
func (r *Request) Claimed() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusConfirmed
}

// ClaimedStatus は種別に応じた引き受け後の状態を返す。
// rideは即時confirmed、favorは投稿者確認待ちのpendingになる。
func (k RequestKind) ClaimedStatus() RequestStatus {
	if k == RequestKindRide {
		return RequestStatusConfirmed
	}
	return RequestStatusPending
}

// ValidRequestKind は種別文字列が有効かを返す。
func ValidRequestKind(s string) bool {
	return s == string(RequestKindRide) || s == string(RequestKindFavor)
}
