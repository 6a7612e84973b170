package events

import (
	"context"
	"sync"
)

// MemoryStream はプロセス内完結のStream実装。テストと単一プロセス構成で使う。
type MemoryStream struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
}

// compile-time interface check
var _ Stream = (*MemoryStream)(nil)

// NewMemoryStream はMemoryStreamを作成する。
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{
		subscribers: make(map[string][]chan Event),
	}
}

// Publish はイベントを該当ユーザーの全購読チャネルへ送る。
func (s *MemoryStream) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			// 満杯のチャネルには送らない。Redis実装と同じ欠落許容の方針。
		}
	}
	return nil
}

// Subscribe は指定ユーザー宛イベントの受信チャネルを登録して返す。
func (s *MemoryStream) Subscribe(_ context.Context, userID string) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[userID] = append(s.subscribers[userID], ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subscribers[userID]
			for i, c := range subs {
				if c == ch {
					s.subscribers[userID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(s.subscribers[userID]) == 0 {
				delete(s.subscribers, userID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

// LiveUserIDs は購読中のユーザーIDを返す。
func (s *MemoryStream) LiveUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userIDs := make([]string, 0, len(s.subscribers))
	for userID := range s.subscribers {
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}
