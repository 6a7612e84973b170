// Package conversation は会話の束ねとメッセージ送信のドメインロジックを提供する。
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/repository"
)

// Binder は会話の取得または冪等な作成を行う。
//
// 同一の依頼・同一の参加者組に対する会話は高々1つである。同時作成レースは
// データベースの一意制約で裁定され、敗者側は既存の会話を再クエリして返す。
type Binder struct {
	convRepo repository.ConversationRepository
}

// NewBinder はBinderの新しいインスタンスを生成する。
func NewBinder(convRepo repository.ConversationRepository) *Binder {
	return &Binder{convRepo: convRepo}
}

// GetOrCreateForRequest は依頼に紐付く会話を返す。存在しなければ作成する。
func (b *Binder) GetOrCreateForRequest(ctx context.Context, requestID string, participantIDs []string) (*model.Conversation, error) {
	conv, err := b.convRepo.FindBySubjectRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	return b.create(ctx, &requestID, participantIDs, func() (*model.Conversation, error) {
		return b.convRepo.FindBySubjectRequest(ctx, requestID)
	})
}

// GetOrCreateDirect は参加者組のダイレクトメッセージ会話を返す。
// 存在しなければ作成する。
func (b *Binder) GetOrCreateDirect(ctx context.Context, participantIDs []string) (*model.Conversation, error) {
	key := model.ParticipantKeyFor(participantIDs)

	conv, err := b.convRepo.FindByParticipantKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	return b.create(ctx, nil, participantIDs, func() (*model.Conversation, error) {
		return b.convRepo.FindByParticipantKey(ctx, key)
	})
}

// create は会話を作成する。一意制約違反（レースの敗者）の場合は
// 勝者が作成した会話を再クエリして返す。
func (b *Binder) create(ctx context.Context, subjectRequestID *string, participantIDs []string, requery func() (*model.Conversation, error)) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:               uuid.New().String(),
		SubjectRequestID: subjectRequestID,
		ParticipantKey:   model.ParticipantKeyFor(participantIDs),
		ParticipantIDs:   participantIDs,
		CreatedAt:        time.Now().UTC(),
	}

	err := b.convRepo.Create(ctx, conv)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("会話の作成に失敗しました: %w", err)
	}

	existing, err := requery()
	if err != nil {
		return nil, fmt.Errorf("既存会話の再クエリに失敗しました: %w", err)
	}
	if existing == nil {
		// 勝者の挿入がまだ可視でないか、直後に削除された。呼び出し側のリトライに委ねる。
		return nil, fmt.Errorf("会話の作成が競合しましたが既存会話が見つかりません")
	}
	return existing, nil
}
