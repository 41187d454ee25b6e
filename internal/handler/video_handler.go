package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/videos"
)

// VideoServiceInterface は動画ハンドラーが必要とするサービスインターフェース。
type VideoServiceInterface interface {
	List(ctx context.Context) ([]model.Video, error)
	AddYouTube(ctx context.Context, url, title, description string) (*model.Video, error)
	AddLocal(ctx context.Context, in videos.LocalUploadInput) (*model.Video, error)
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (*model.BlobRecord, error)
	PlaybackURL(ctx context.Context, id string, ttl time.Duration) (string, error)
	MaxSize() int64
}

// VideoHandler は動画ライブラリのHTTPハンドラー。
type VideoHandler struct {
	service     VideoServiceInterface
	playbackTTL time.Duration
}

// NewVideoHandler はVideoHandlerを生成する。
// playbackTTLは署名付き再生URLの有効期間。
func NewVideoHandler(service VideoServiceInterface, playbackTTL time.Duration) *VideoHandler {
	if playbackTTL <= 0 {
		playbackTTL = 15 * time.Minute
	}
	return &VideoHandler{service: service, playbackTTL: playbackTTL}
}

type addYouTubeRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListVideos は動画カタログを返す。
// GET /api/videos
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": list,
	})
}

// AddYouTube はYouTube動画をカタログに追加する。
// POST /api/videos/youtube
func (h *VideoHandler) AddYouTube(w http.ResponseWriter, r *http.Request) {
	var req addYouTubeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	v, err := h.service.AddYouTube(r.Context(), req.URL, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// AddLocal はマルチパートの"file"フィールドの動画を保存し、カタログに追加する。
// POST /api/videos/local
func (h *VideoHandler) AddLocal(w http.ResponseWriter, r *http.Request) {
	up, apiErr := readUpload(w, r, "file", h.service.MaxSize())
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}
	defer up.Close()

	v, err := h.service.AddLocal(r.Context(), videos.LocalUploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Type:        up.contentType(),
		Size:        up.header.Size,
		Body:        up.file,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// StreamVideo はローカル動画を配信する。
// 署名付きURLを発行できる構成ではそのURLへリダイレクトする。
// GET /api/videos/{id}/stream
func (h *VideoHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 1. 署名付きURL
	url, err := h.service.PlaybackURL(r.Context(), id, h.playbackTTL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	// 2. ストアから直接配信
	rec, err := h.service.Open(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	rc, err := rec.Open()
	if err != nil {
		slog.Error("failed to open video payload",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, model.NewStorageFailureError("loading video"))
		return
	}
	defer rc.Close()

	// シーク可能なペイロードはRangeリクエストに対応する
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, id, rec.Timestamp, rs)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("video stream interrupted",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteVideo はカタログから動画を削除する。
// DELETE /api/videos/{id}
func (h *VideoHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
