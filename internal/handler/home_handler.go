package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/fileteluss/internal/files"
	"github.com/hitoshi/fileteluss/internal/middleware"
)

// StorageSummarizer はダッシュボードに表示する保存ファイルの集計を提供する。
type StorageSummarizer interface {
	Summary(ctx context.Context, owner files.Owner) (count int, used int64)
}

// HomeHandler はダッシュボードのHTTPハンドラー。
type HomeHandler struct {
	files StorageSummarizer
	now   func() time.Time
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(files StorageSummarizer, now func() time.Time) *HomeHandler {
	if now == nil {
		now = time.Now
	}
	return &HomeHandler{files: files, now: now}
}

type homeResponse struct {
	sessionView
	FileCount   int   `json:"file_count"`
	StorageUsed int64 `json:"storage_used"`
}

// Dashboard はセッション情報と保存ファイルの集計を返す。
// GET /api/home
func (h *HomeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		writeUnauthorized(w)
		return
	}

	resp := homeResponse{sessionView: toSessionView(session, h.now())}
	if h.files != nil {
		resp.FileCount, resp.StorageUsed = h.files.Summary(r.Context(), ownerOf(session))
	}
	writeJSON(w, http.StatusOK, resp)
}
