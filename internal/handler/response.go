// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/fileteluss/internal/access"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/model"
)

// sessionResponse はログイン中ユーザーのセッション投影のAPIレスポンス。
type sessionResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         model.Role      `json:"role"`
	Status       model.Status    `json:"status"`
	Features     []model.Feature `json:"features"`
	AccessExpiry *time.Time      `json:"access_expiry"`
}

// sessionView はセッションと、そこから導出したアクセス情報のAPIレスポンス。
type sessionView struct {
	Session            sessionResponse `json:"session"`
	AccessibleFeatures []model.Feature `json:"accessible_features"`
	Expired            bool            `json:"expired"`
}

// userResponse は管理画面向けのユーザーレコードのAPIレスポンス。
type userResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         model.Role      `json:"role"`
	Status       model.Status    `json:"status"`
	Features     []model.Feature `json:"features"`
	AccessExpiry *time.Time      `json:"access_expiry"`
	RegisteredAt time.Time       `json:"registered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// toSessionView はSessionからAPIレスポンスに変換する。
func toSessionView(s *model.Session, now time.Time) sessionView {
	features := s.Features
	if features == nil {
		features = []model.Feature{}
	}
	u := &model.User{
		ID:           s.UserID,
		Role:         s.Role,
		Status:       s.Status,
		Features:     features,
		AccessExpiry: s.AccessExpiry,
	}
	return sessionView{
		Session: sessionResponse{
			ID:           s.UserID,
			Name:         s.Name,
			Email:        s.Email,
			Role:         s.Role,
			Status:       s.Status,
			Features:     features,
			AccessExpiry: s.AccessExpiry,
		},
		AccessibleFeatures: access.AccessibleFeatures(u),
		Expired:            access.IsExpired(u, now),
	}
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	features := u.Features
	if features == nil {
		features = []model.Feature{}
	}
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Status:       u.Status,
		Features:     features,
		AccessExpiry: u.AccessExpiry,
		RegisteredAt: u.RegisteredAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequest はリクエストボディの解析失敗を書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send a well-formed JSON request.",
	})
}

// writeUnauthorized は未認証のレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteRedirectResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(), "/login")
}

// maxJSONBodySize はJSONリクエストボディの上限。
const maxJSONBodySize = 1 << 20

// decodeJSON はリクエストボディをJSONとしてvに読み込む。
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize)).Decode(v)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("service failure", slog.String("code", apiErr.Code), slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeFileNotFound, model.ErrCodeVideoNotFound:
		return http.StatusNotFound
	case model.ErrCodeStorageFailure:
		return http.StatusInternalServerError
	case model.ErrCodeAuthFailed, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeAccountPending, model.ErrCodeAccountRejected:
		return http.StatusForbidden
	case model.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeValidationFailed, model.ErrCodePasswordMismatch, model.ErrCodePasswordTooShort,
		model.ErrCodeInvalidVideo, model.ErrCodeInvalidYouTubeURL, model.ErrCodeInvalidFeature,
		model.ErrCodeInvalidRole, model.ErrCodeInvalidStatus:
		return http.StatusBadRequest
	case model.ErrCodeFeatureDenied, model.ErrCodeAccessExpired, model.ErrCodeAdminRequired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
