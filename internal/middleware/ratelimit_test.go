package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newLimitedHandler(mw func(http.Handler) http.Handler, count *int) http.Handler {
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*count++
		w.WriteHeader(http.StatusOK)
	}))
}

func requestFrom(method, path, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	return req
}

// TestRateLimitMiddleware_AllowsRequestsWithinBurst はバースト内のリクエストが全て通ることを検証する。
func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	count := 0
	handler := newLimitedHandler(rl.GeneralMiddleware(), &count)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "/posts", "10.0.0.1:5000"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
	if count != 5 {
		t.Errorf("handler call count = %d, want 5", count)
	}
}

// TestRateLimitMiddleware_Returns429WhenLimitExceeded は上限超過時に429とRetry-Afterを返すことを検証する。
func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rateOf(0.5),
		GeneralBurst:    2,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	count := 0
	handler := newLimitedHandler(rl.GeneralMiddleware(), &count)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, requestFrom(http.MethodGet, "/posts", "10.0.0.2:5000"))
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if count != 2 {
		t.Errorf("handler call count = %d, want 2", count)
	}
	retryAfter, err := strconv.Atoi(last.Header().Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want 2", last.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(last.Body).Decode(&body); err != nil {
		t.Fatalf("429 response should be JSON: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
}

// TestRateLimitMiddleware_IsolatesClients は接続元ごとにレート制限が独立していることを検証する。
func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rateOf(0.01),
		GeneralBurst:    1,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	count := 0
	handler := newLimitedHandler(rl.GeneralMiddleware(), &count)

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, requestFrom(http.MethodGet, "/", "10.0.0.3:1111"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, requestFrom(http.MethodGet, "/", "10.0.0.3:2222"))
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, requestFrom(http.MethodGet, "/", "10.0.0.4:1111"))

	if w1.Code != http.StatusOK {
		t.Errorf("first client first request: status = %d, want 200", w1.Code)
	}
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("same IP different port should share limit: status = %d, want 429", w2.Code)
	}
	if w3.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", w3.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestLoginRateLimit_IndependentFromGeneralLimit はログイン用の制限がAPI全般と独立していることを検証する。
func TestLoginRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		LoginRate:       rateOf(0.01),
		LoginBurst:      2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	loginCount, generalCount := 0, 0
	login := newLimitedHandler(rl.LoginMiddleware(), &loginCount)
	general := newLimitedHandler(rl.GeneralMiddleware(), &generalCount)

	for i := 0; i < 3; i++ {
		login.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodPost, "/login", "10.0.0.5:1"))
	}
	w := httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom(http.MethodGet, "/posts", "10.0.0.5:1"))

	if loginCount != 2 {
		t.Errorf("login handler count = %d, want 2", loginCount)
	}
	if w.Code != http.StatusOK {
		t.Errorf("general request after login limit: status = %d, want 200", w.Code)
	}
	if rl.LoginLimiterCount() != 1 {
		t.Errorf("login limiter count = %d, want 1", rl.LoginLimiterCount())
	}
}

// TestRateLimiter_CleanupRemovesExpiredEntries はアクセスのないエントリがクリーンアップされることを検証する。
func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		LoginRate:       1,
		LoginBurst:      1,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer rl.Stop()

	count := 0
	handler := newLimitedHandler(rl.GeneralMiddleware(), &count)
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/", "10.0.0.6:1"))

	if rl.GeneralLimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）
	deadline := time.Now().Add(2 * time.Second)
	for rl.GeneralLimiterCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if n := rl.GeneralLimiterCount(); n != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", n)
	}
}

// TestNewRateLimiterConfig は1分あたりの回数から設定が生成されることを検証する。
func TestNewRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 || cfg.LoginBurst != 10 {
		t.Errorf("bursts = (%d, %d), want (120, 10)", cfg.GeneralBurst, cfg.LoginBurst)
	}
	if float64(cfg.GeneralRate) != 2.0 {
		t.Errorf("GeneralRate = %v, want 2 req/sec", cfg.GeneralRate)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func rateOf(perSecond float64) rate.Limit {
	return rate.Limit(perSecond)
}
