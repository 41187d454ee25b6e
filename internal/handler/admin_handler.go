package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/fileteluss/internal/admin"
	"github.com/hitoshi/fileteluss/internal/model"
)

// AdminServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context) ([]userResponse, error)
	Stats(ctx context.Context) (*admin.Stats, error)
	SetStatus(ctx context.Context, email, status string) (*userResponse, error)
	SetFeatures(ctx context.Context, email string, features []string) (*userResponse, error)
	ToggleFeature(ctx context.Context, email, feature string, enabled bool) (*userResponse, error)
	SetRole(ctx context.Context, email, role string) (*userResponse, error)
	SetExpiry(ctx context.Context, email string, expiry *time.Time) (*userResponse, error)
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type statusRequest struct {
	Status string `json:"status"`
}

type featuresRequest struct {
	Features []string `json:"features"`
}

type toggleFeatureRequest struct {
	Enabled bool `json:"enabled"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// expiryRequest のAccessExpiryがnullの場合は期限を削除する。
type expiryRequest struct {
	AccessExpiry *string `json:"access_expiry"`
}

// emailParam はURLパスのメールアドレスを取り出す。
func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if email, err := url.PathUnescape(raw); err == nil {
		return email
	}
	return raw
}

// ListUsers は管理者以外のユーザー一覧を返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}

// GetStats は承認状態ごとのユーザー数を返す。
// GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SetStatus はユーザーの承認状態を変更する。
// PUT /api/admin/users/{email}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	h.respondUser(w)(h.service.SetStatus(r.Context(), emailParam(r), req.Status))
}

// SetFeatures はユーザーの付与機能を置き換える。
// PUT /api/admin/users/{email}/features
func (h *AdminHandler) SetFeatures(w http.ResponseWriter, r *http.Request) {
	var req featuresRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Features == nil {
		req.Features = []string{}
	}
	h.respondUser(w)(h.service.SetFeatures(r.Context(), emailParam(r), req.Features))
}

// ToggleFeature はユーザーの機能を1つ付与または剥奪する。
// PUT /api/admin/users/{email}/features/{feature}
func (h *AdminHandler) ToggleFeature(w http.ResponseWriter, r *http.Request) {
	var req toggleFeatureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	h.respondUser(w)(h.service.ToggleFeature(r.Context(), emailParam(r), chi.URLParam(r, "feature"), req.Enabled))
}

// SetRole はユーザーのロールを変更する。
// PUT /api/admin/users/{email}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	h.respondUser(w)(h.service.SetRole(r.Context(), emailParam(r), req.Role))
}

// SetExpiry はユーザーのアクセス期限を設定する。nullまたは空文字で期限を削除する。
// PUT /api/admin/users/{email}/expiry
func (h *AdminHandler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	var req expiryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var expiry *time.Time
	if req.AccessExpiry != nil && strings.TrimSpace(*req.AccessExpiry) != "" {
		t, err := parseExpiry(*req.AccessExpiry)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid access expiry. Use RFC 3339 or YYYY-MM-DD"))
			return
		}
		expiry = &t
	}
	h.respondUser(w)(h.service.SetExpiry(r.Context(), emailParam(r), expiry))
}

// respondUser は更新結果のユーザーまたはエラーを書き込む関数を返す。
func (h *AdminHandler) respondUser(w http.ResponseWriter) func(*userResponse, error) {
	return func(u *userResponse, err error) {
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// parseExpiry はRFC 3339の日時、またはYYYY-MM-DDの日付（その日の終わりまで有効）を解析する。
func parseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Second).UTC(), nil
}
