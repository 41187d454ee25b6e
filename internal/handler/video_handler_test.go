package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/videos"
)

func TestVideoHandler_ListVideos(t *testing.T) {
	svc := &mockVideoService{
		listFn: func(ctx context.Context) ([]model.Video, error) {
			return []model.Video{{ID: "dQw4w9WgXcQ", Title: "Intro", Type: model.VideoTypeYouTube}}, nil
		},
	}

	w := httptest.NewRecorder()
	NewVideoHandler(svc, 0).ListVideos(w, httptest.NewRequest(http.MethodGet, "/api/videos", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Videos []model.Video `json:"videos"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(body.Videos) != 1 || body.Videos[0].Type != model.VideoTypeYouTube {
		t.Errorf("videos = %+v", body.Videos)
	}
}

func TestVideoHandler_AddYouTube(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusCreated},
		{"invalid url", model.NewInvalidYouTubeURLError(), http.StatusBadRequest},
		{"duplicate", model.NewInvalidVideoError("Video already exists"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotURL string
			svc := &mockVideoService{
				addYouTubeFn: func(ctx context.Context, url, title, description string) (*model.Video, error) {
					gotURL = url
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Video{ID: "dQw4w9WgXcQ", Title: title, Type: model.VideoTypeYouTube}, nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/videos/youtube", jsonBody(t, map[string]string{
				"url": "https://youtu.be/dQw4w9WgXcQ", "title": "Intro",
			}))
			w := httptest.NewRecorder()
			NewVideoHandler(svc, 0).AddYouTube(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if gotURL != "https://youtu.be/dQw4w9WgXcQ" {
				t.Errorf("url = %q", gotURL)
			}
		})
	}
}

func TestVideoHandler_AddLocal_ReadsFormFields(t *testing.T) {
	var got videos.LocalUploadInput
	svc := &mockVideoService{
		addLocalFn: func(ctx context.Context, in videos.LocalUploadInput) (*model.Video, error) {
			got = in
			return &model.Video{ID: "local-1", Title: in.Title, Type: model.VideoTypeLocal}, nil
		},
	}

	body, contentType := multipartBody(t, "clip.mp4", "video/mp4", "frames", map[string]string{
		"title":       "Holiday",
		"description": "Beach",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/videos/local", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	NewVideoHandler(svc, 0).AddLocal(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.Title != "Holiday" || got.Description != "Beach" || got.Type != "video/mp4" || got.Size != 6 {
		t.Errorf("input = %+v", got)
	}
}

func TestVideoHandler_StreamVideo_RedirectsToPresignedURL(t *testing.T) {
	var gotTTL time.Duration
	svc := &mockVideoService{
		playbackURLFn: func(ctx context.Context, id string, ttl time.Duration) (string, error) {
			gotTTL = ttl
			return "https://blobs.example.com/videos/" + id + "?sig=1", nil
		},
		openFn: func(ctx context.Context, id string) (*model.BlobRecord, error) {
			t.Error("Open should not be called when a playback URL is available")
			return nil, nil
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/videos/local-1/stream", nil), "id", "local-1")
	w := httptest.NewRecorder()
	NewVideoHandler(svc, 5*time.Minute).StreamVideo(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "https://blobs.example.com/videos/local-1") {
		t.Errorf("Location = %q", loc)
	}
	if gotTTL != 5*time.Minute {
		t.Errorf("ttl = %v, want 5m", gotTTL)
	}
}

// seekableCloser はシーク可能なペイロード。
type seekableCloser struct {
	*strings.Reader
}

func (seekableCloser) Close() error { return nil }

func TestVideoHandler_StreamVideo_ServesRange(t *testing.T) {
	svc := &mockVideoService{
		openFn: func(ctx context.Context, id string) (*model.BlobRecord, error) {
			return model.NewBlobRecord(id, nil, 10, fixedNow, func() (io.ReadCloser, error) {
				return seekableCloser{strings.NewReader("0123456789")}, nil
			}), nil
		},
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/videos/local-1/stream", nil), "id", "local-1")
	req.Header.Set("Range", "bytes=2-4")
	w := httptest.NewRecorder()
	NewVideoHandler(svc, 0).StreamVideo(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusPartialContent)
	}
	if w.Body.String() != "234" {
		t.Errorf("body = %q, want %q", w.Body.String(), "234")
	}
}

func TestVideoHandler_StreamVideo_NotFound(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/videos/x/stream", nil), "id", "x")
	w := httptest.NewRecorder()
	NewVideoHandler(&mockVideoService{}, 0).StreamVideo(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestVideoHandler_DeleteVideo_NotFound(t *testing.T) {
	svc := &mockVideoService{
		deleteFn: func(ctx context.Context, id string) error {
			return model.NewVideoNotFoundError(id)
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/videos/x", nil), "id", "x")
	w := httptest.NewRecorder()
	NewVideoHandler(svc, 0).DeleteVideo(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
