package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/fileteluss/internal/model"
)

func testLimiterConfig(generalBurst, authBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		AuthRate:        1,
		AuthBurst:       authBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// userRequest は認証済みユーザーのリクエストを生成する。
func userRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	return req.WithContext(ContextWithSession(req.Context(), &model.Session{UserID: userID, Status: model.StatusApproved}, nil))
}

// ipRequest は未認証クライアントのリクエストを生成する。
func ipRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_General_AllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(3, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := serve(handler, userRequest("user-1")); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := serve(handler, userRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimiter_General_IndependentPerUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	serve(handler, userRequest("user-a"))
	if w := serve(handler, userRequest("user-a")); w.Code != http.StatusTooManyRequests {
		t.Errorf("user-a second request: status = %d, want 429", w.Code)
	}
	if w := serve(handler, userRequest("user-b")); w.Code != http.StatusOK {
		t.Errorf("user-b first request: status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_Auth_KeyedByClientIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 2))
	defer rl.Stop()

	handler := rl.AuthMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		// ポートが異なっても同一IPとして扱う
		if w := serve(handler, ipRequest("203.0.113.7:"+strconv.Itoa(40000+i))); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if w := serve(handler, ipRequest("203.0.113.7:40009")); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", w.Code)
	}
	if w := serve(handler, ipRequest("198.51.100.1:40000")); w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
	if rl.AuthLimiterCount() != 2 {
		t.Errorf("AuthLimiterCount() = %d, want 2", rl.AuthLimiterCount())
	}
}

func TestRateLimiter_AuthAndGeneralAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	auth := rl.AuthMiddleware()(okHandler())

	serve(auth, ipRequest("192.0.2.1:1234"))
	if w := serve(auth, ipRequest("192.0.2.1:1234")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("auth limit not applied: status = %d", w.Code)
	}
	if w := serve(general, ipRequest("192.0.2.1:1234")); w.Code != http.StatusOK {
		t.Errorf("general limiter affected by auth limiter: status = %d", w.Code)
	}
}

func TestRateLimiter_Cleanup_EvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()

	serve(rl.GeneralMiddleware()(okHandler()), userRequest("idle-user"))
	serve(rl.AuthMiddleware()(okHandler()), ipRequest("192.0.2.9:1"))

	// 最終アクセスを過去に移動する
	past := time.Now().Add(-time.Hour)
	for _, cl := range rl.general.limiters {
		cl.lastAccess = past
	}
	for _, cl := range rl.auth.limiters {
		cl.lastAccess = past
	}

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 || rl.AuthLimiterCount() != 0 {
		t.Errorf("counts after cleanup = %d, %d, want 0, 0", rl.GeneralLimiterCount(), rl.AuthLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(60, 6)
	if float64(cfg.GeneralRate) != 1.0 || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d, want 1/60", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if float64(cfg.AuthRate) != 0.1 || cfg.AuthBurst != 6 {
		t.Errorf("auth = %v/%d, want 0.1/6", cfg.AuthRate, cfg.AuthBurst)
	}

	def := NewRateLimiterConfig(0, -1)
	if def.GeneralBurst != 120 || def.AuthBurst != 10 {
		t.Errorf("defaults = %d/%d, want 120/10", def.GeneralBurst, def.AuthBurst)
	}
}
