package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
	"github.com/brcolf/naarscars/internal/security"
)

// Notifier はメッセージ着信通知のファンアウトインターフェース。
type Notifier interface {
	NotifyMessage(ctx context.Context, recipientIDs []string, conversationID, body string) ([]*model.Notification, error)
}

// Limiter は連打抑止のインターフェース。
type Limiter interface {
	Allow(actorID string, action ratelimit.Action) bool
}

// Service はメッセージ送信のサービス層。
type Service struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	binder    *Binder
	limiter   Limiter
	sanitizer security.ContentSanitizerService
	notifier  Notifier
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	binder *Binder,
	limiter Limiter,
	sanitizer security.ContentSanitizerService,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		binder:    binder,
		limiter:   limiter,
		sanitizer: sanitizer,
		notifier:  notifier,
		logger:    logger,
	}
}

// StartDirect は2者間のダイレクトメッセージ会話を返す。存在しなければ作成する。
func (s *Service) StartDirect(ctx context.Context, userID, otherUserID string) (*model.Conversation, error) {
	if userID == otherUserID {
		return nil, model.NewNotParticipantError()
	}
	return s.binder.GetOrCreateDirect(ctx, []string{userID, otherUserID})
}

// Get は会話を取得する。参加者本人以外には存在を明かさない。
func (s *Service) Get(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, model.NewConversationNotFoundError(conversationID)
	}
	return conv, nil
}

// List は指定ユーザーが参加する会話一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Conversation, error) {
	conversations, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	return conversations, nil
}

// SendMessage はメッセージを送信し、他参加者への着信通知を引き継ぐ。
//
// メッセージの挿入だけが耐久的な操作であり、着信通知のファンアウト失敗は
// 送信自体を失敗させない。
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, body string) (*model.Message, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil {
		return nil, model.NewConversationNotFoundError(conversationID)
	}
	if !conv.HasParticipant(senderID) {
		return nil, model.NewNotParticipantError()
	}

	sanitized := strings.TrimSpace(s.sanitizer.SanitizeMessage(body))
	if sanitized == "" {
		return nil, model.NewEmptyMessageError()
	}

	// クールダウン消費は送信が確定する検証の後
	if !s.limiter.Allow(senderID, ratelimit.ActionMessage) {
		return nil, model.NewRateLimitedError("メッセージ送信")
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           sanitized,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}

	recipients := make([]string, 0, len(conv.ParticipantIDs)-1)
	for _, id := range conv.ParticipantIDs {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	if _, err := s.notifier.NotifyMessage(ctx, recipients, conv.ID, sanitized); err != nil {
		s.logger.Warn("メッセージ着信通知のファンアウトに失敗しました",
			"conversation_id", conv.ID,
			"message_id", msg.ID,
			"error", err)
	}

	return msg, nil
}

// ListMessages は会話のメッセージを新しい順にカーソル付きで返す。
func (s *Service) ListMessages(ctx context.Context, conversationID, userID string, cursor time.Time, limit int) ([]*model.Message, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, model.NewConversationNotFoundError(conversationID)
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return messages, nil
}
