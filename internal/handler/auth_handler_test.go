package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/fileteluss/internal/auth"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/model"
)

func newTestAuthHandler(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{CookieSecure: true, Now: fixedClock})
}

func TestAuthHandler_Register_Success(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
			got = in
			return &model.User{ID: "user-1", Email: in.Email, Status: model.StatusPending}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]string{
		"name":             "Alice",
		"email":            "alice@example.com",
		"password":         "secret1",
		"confirm_password": "secret1",
	}))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Name != "Alice" || got.ConfirmPassword != "secret1" {
		t.Errorf("input = %+v", got)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body["message"] != auth.RegistrationMessage {
		t.Errorf("message = %v, want %q", body["message"], auth.RegistrationMessage)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("registration must not issue a session cookie")
	}
}

func TestAuthHandler_Register_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate", model.NewDuplicateEmailError(), http.StatusConflict, model.ErrCodeDuplicateEmail},
		{"mismatch", model.NewPasswordMismatchError(), http.StatusBadRequest, model.ErrCodePasswordMismatch},
		{"too short", model.NewPasswordTooShortError(6), http.StatusBadRequest, model.ErrCodePasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
					return nil, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]string{"email": "a@example.com"}))
			w := httptest.NewRecorder()
			newTestAuthHandler(svc).Register(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_Register_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, "not-an-object"))
	w := httptest.NewRecorder()
	newTestAuthHandler(&mockAuthService{}).Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_Login_SetsCookieAndReturnsSession(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return &auth.LoginResult{
				Credential: &model.Credential{
					UserID:    "user-1",
					SessionID: "sess-1",
					Token:     "signed-token",
					ExpiresAt: fixedNow.Add(time.Hour),
				},
				Session: testSession(model.RoleUser, model.FeatureFiles),
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]string{
		"email": "user@example.com", "password": "secret1",
	}))
	w := httptest.NewRecorder()
	newTestAuthHandler(svc).Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "signed-token" || !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("cookie = %+v", cookie)
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
	}

	var body struct {
		Success            bool            `json:"success"`
		Session            sessionResponse `json:"session"`
		AccessibleFeatures []model.Feature `json:"accessible_features"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !body.Success || body.Session.ID != "user-1" {
		t.Errorf("body = %+v", body)
	}
	if len(body.AccessibleFeatures) != 1 || body.AccessibleFeatures[0] != model.FeatureFiles {
		t.Errorf("accessible_features = %v, want [files]", body.AccessibleFeatures)
	}
}

func TestAuthHandler_Login_Denials(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad credentials", model.NewAuthFailedError("Invalid email or password"), http.StatusUnauthorized, model.ErrCodeAuthFailed},
		{"pending", model.NewAccountPendingError(), http.StatusForbidden, model.ErrCodeAccountPending},
		{"rejected", model.NewAccountRejectedError(), http.StatusForbidden, model.ErrCodeAccountRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
					return nil, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]string{"email": "a@example.com"}))
			w := httptest.NewRecorder()
			newTestAuthHandler(svc).Login(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("denied login must not set a cookie")
			}
		})
	}
}

func TestAuthHandler_Logout_RevokesSessionAndClearsCookie(t *testing.T) {
	var revoked string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			revoked = sessionID
			return nil
		},
	}

	req := withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), testSession(model.RoleUser))
	w := httptest.NewRecorder()
	newTestAuthHandler(svc).Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if revoked != "sess-1" {
		t.Errorf("revoked = %q, want %q", revoked, "sess-1")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookies = %+v, want cleared session cookie", cookies)
	}
}

func TestAuthHandler_Logout_AnonymousStillClearsCookie(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}

	w := httptest.NewRecorder()
	newTestAuthHandler(svc).Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if called {
		t.Error("Logout should not be called without a session")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if body := decodeError(t, w); body.Redirect != "/login" {
			t.Errorf("redirect = %q, want /login", body.Redirect)
		}
	})

	t.Run("expired user", func(t *testing.T) {
		s := testSession(model.RoleUser, model.FeatureVideos)
		past := fixedNow.Add(-time.Minute)
		s.AccessExpiry = &past

		w := httptest.NewRecorder()
		h.Me(w, withSession(httptest.NewRequest(http.MethodGet, "/auth/me", nil), s))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body sessionView
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !body.Expired {
			t.Error("expired = false, want true")
		}
	})
}
