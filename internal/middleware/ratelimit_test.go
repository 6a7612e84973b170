package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// バースト分は通る
	for i := 0; i < 2; i++ {
		if w := doRequest(); w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3リクエスト目は429
	w := doRequest()
	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	// Retry-Afterヘッダーの検証: rate=1 req/sec なので1秒
	retryAfter := resp.Header.Get("Retry-After")
	if sec, err := strconv.Atoi(retryAfter); err != nil || sec < 1 {
		t.Errorf("Retry-After = %q, want a positive integer", retryAfter)
	}

	// レスポンスボディの検証
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %q, want %q", body["code"], "RATE_LIMITED")
	}
}

// TestRateLimitMiddleware_IsolatesUsers はユーザーごとに独立して
// レート制限が適用されることを検証する。
func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	// user-1がバーストを使い切る
	if status := doRequest("user-1"); status != http.StatusOK {
		t.Errorf("user-1 first request: status = %d, want %d", status, http.StatusOK)
	}
	if status := doRequest("user-1"); status != http.StatusTooManyRequests {
		t.Errorf("user-1 second request: status = %d, want %d", status, http.StatusTooManyRequests)
	}

	// user-2には影響しない
	if status := doRequest("user-2"); status != http.StatusOK {
		t.Errorf("user-2 request: status = %d, want %d", status, http.StatusOK)
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestRateLimiter_CleanupRemovesStaleEntries は最終アクセスから一定期間
// 経過したエントリがクリーンアップで削除されることを検証する。
func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		CleanupInterval: 10 * time.Millisecond,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.getOrCreateLimiter("user-1")
	if rl.LimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.LimiterCount())
	}

	// ttl = CleanupInterval * 2 = 20ms を超えるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for rl.LimiterCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("stale limiter entry was not cleaned up")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRateLimiter_GetOrCreateLimiter_ReturnsSameInstance(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	l1 := rl.getOrCreateLimiter("user-1")
	l2 := rl.getOrCreateLimiter("user-1")

	if l1 != l2 {
		t.Error("expected the same limiter instance for the same user")
	}
	if rl.LimiterCount() != 1 {
		t.Errorf("limiter count = %d, want 1", rl.LimiterCount())
	}
}
