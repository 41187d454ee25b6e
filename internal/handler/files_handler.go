package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/fileteluss/internal/files"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/model"
)

// FileServiceInterface はファイルハンドラーが必要とするサービスインターフェース。
type FileServiceInterface interface {
	Upload(ctx context.Context, owner files.Owner, in files.UploadInput) (*model.FileMetadata, error)
	List(ctx context.Context, owner files.Owner) []*model.FileMetadata
	Get(ctx context.Context, owner files.Owner, id string) (*model.BlobRecord, error)
	Delete(ctx context.Context, owner files.Owner, id string) error
	MaxSize() int64
}

// FileHandler はファイル管理のHTTPハンドラー。
type FileHandler struct {
	service FileServiceInterface
}

// NewFileHandler はFileHandlerを生成する。
func NewFileHandler(service FileServiceInterface) *FileHandler {
	return &FileHandler{service: service}
}

// fileOwner はリクエストのセッションからファイルの操作者を求める。
// セッションがない場合は401を書き込みfalseを返す。
func fileOwner(w http.ResponseWriter, r *http.Request) (files.Owner, bool) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		writeUnauthorized(w)
		return files.Owner{}, false
	}
	return ownerOf(session), true
}

func ownerOf(session *model.Session) files.Owner {
	return files.Owner{UserID: session.UserID, Admin: session.Role == model.RoleAdmin}
}

type fileListResponse struct {
	Files       []*model.FileMetadata `json:"files"`
	Count       int                   `json:"count"`
	StorageUsed int64                 `json:"storage_used"`
}

// ListFiles は保存済みファイルのメタデータ一覧を返す。
// GET /api/files
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	owner, ok := fileOwner(w, r)
	if !ok {
		return
	}
	list := h.service.List(r.Context(), owner)

	var used int64
	for _, m := range list {
		used += m.Size
	}
	writeJSON(w, http.StatusOK, fileListResponse{
		Files:       list,
		Count:       len(list),
		StorageUsed: used,
	})
}

// UploadFile はマルチパートの"file"フィールドを保存する。
// POST /api/files
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	owner, ok := fileOwner(w, r)
	if !ok {
		return
	}

	// 1. マルチパート解析（上限付き）
	up, apiErr := readUpload(w, r, "file", h.service.MaxSize())
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}
	defer up.Close()

	// 2. 保存
	meta, err := h.service.Upload(r.Context(), owner, files.UploadInput{
		Name: up.header.Filename,
		Type: up.contentType(),
		Size: up.header.Size,
		Body: up.file,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, meta)
}

// DownloadFile はファイルのペイロードを添付ファイルとして配信する。
// GET /api/files/{id}
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	owner, ok := fileOwner(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := h.service.Get(r.Context(), owner, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rc, err := rec.Open()
	if err != nil {
		slog.Error("failed to open file payload",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, model.NewStorageFailureError("loading file"))
		return
	}
	defer rc.Close()

	name, contentType := id, "application/octet-stream"
	if rec.Metadata != nil {
		if rec.Metadata.Name != "" {
			name = rec.Metadata.Name
		}
		if rec.Metadata.Type != "" {
			contentType = rec.Metadata.Type
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("file download interrupted",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile はファイルを削除する。
// DELETE /api/files/{id}
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	owner, ok := fileOwner(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
