package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/fileteluss/internal/admin"
	"github.com/hitoshi/fileteluss/internal/auth"
	"github.com/hitoshi/fileteluss/internal/files"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/portfolio"
	"github.com/hitoshi/fileteluss/internal/videos"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	logoutFn   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.User{ID: "user-1", Email: in.Email, Status: model.StatusPending}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewAuthFailedError("Invalid email or password")
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockFileService struct {
	uploadFn  func(ctx context.Context, owner files.Owner, in files.UploadInput) (*model.FileMetadata, error)
	listFn    func(ctx context.Context, owner files.Owner) []*model.FileMetadata
	getFn     func(ctx context.Context, owner files.Owner, id string) (*model.BlobRecord, error)
	deleteFn  func(ctx context.Context, owner files.Owner, id string) error
	summaryFn func(ctx context.Context, owner files.Owner) (int, int64)
	maxSize   int64
}

func (m *mockFileService) Upload(ctx context.Context, owner files.Owner, in files.UploadInput) (*model.FileMetadata, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, owner, in)
	}
	return &model.FileMetadata{ID: "file-1", Name: in.Name, Size: in.Size, Type: in.Type, OwnerID: owner.UserID}, nil
}

func (m *mockFileService) List(ctx context.Context, owner files.Owner) []*model.FileMetadata {
	if m.listFn != nil {
		return m.listFn(ctx, owner)
	}
	return []*model.FileMetadata{}
}

func (m *mockFileService) Get(ctx context.Context, owner files.Owner, id string) (*model.BlobRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, owner, id)
	}
	return nil, model.NewFileNotFoundError(id)
}

func (m *mockFileService) Delete(ctx context.Context, owner files.Owner, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, owner, id)
	}
	return nil
}

func (m *mockFileService) Summary(ctx context.Context, owner files.Owner) (int, int64) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, owner)
	}
	return 0, 0
}

func (m *mockFileService) MaxSize() int64 {
	if m.maxSize > 0 {
		return m.maxSize
	}
	return 1 << 20
}

type mockVideoService struct {
	listFn        func(ctx context.Context) ([]model.Video, error)
	addYouTubeFn  func(ctx context.Context, url, title, description string) (*model.Video, error)
	addLocalFn    func(ctx context.Context, in videos.LocalUploadInput) (*model.Video, error)
	deleteFn      func(ctx context.Context, id string) error
	openFn        func(ctx context.Context, id string) (*model.BlobRecord, error)
	playbackURLFn func(ctx context.Context, id string, ttl time.Duration) (string, error)
	maxSize       int64
}

func (m *mockVideoService) List(ctx context.Context) ([]model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Video{}, nil
}

func (m *mockVideoService) AddYouTube(ctx context.Context, url, title, description string) (*model.Video, error) {
	if m.addYouTubeFn != nil {
		return m.addYouTubeFn(ctx, url, title, description)
	}
	return &model.Video{ID: "dQw4w9WgXcQ", Title: title, Description: description, Type: model.VideoTypeYouTube}, nil
}

func (m *mockVideoService) AddLocal(ctx context.Context, in videos.LocalUploadInput) (*model.Video, error) {
	if m.addLocalFn != nil {
		return m.addLocalFn(ctx, in)
	}
	return &model.Video{ID: "local-1", Title: in.Title, Type: model.VideoTypeLocal}, nil
}

func (m *mockVideoService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockVideoService) Open(ctx context.Context, id string) (*model.BlobRecord, error) {
	if m.openFn != nil {
		return m.openFn(ctx, id)
	}
	return nil, model.NewVideoNotFoundError(id)
}

func (m *mockVideoService) PlaybackURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if m.playbackURLFn != nil {
		return m.playbackURLFn(ctx, id, ttl)
	}
	return "", nil
}

func (m *mockVideoService) MaxSize() int64 {
	if m.maxSize > 0 {
		return m.maxSize
	}
	return 1 << 20
}

type mockAdminService struct {
	listUsersFn     func(ctx context.Context) ([]userResponse, error)
	statsFn         func(ctx context.Context) (*admin.Stats, error)
	setStatusFn     func(ctx context.Context, email, status string) (*userResponse, error)
	setFeaturesFn   func(ctx context.Context, email string, features []string) (*userResponse, error)
	toggleFeatureFn func(ctx context.Context, email, feature string, enabled bool) (*userResponse, error)
	setRoleFn       func(ctx context.Context, email, role string) (*userResponse, error)
	setExpiryFn     func(ctx context.Context, email string, expiry *time.Time) (*userResponse, error)
}

func (m *mockAdminService) ListUsers(ctx context.Context) ([]userResponse, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return []userResponse{}, nil
}

func (m *mockAdminService) Stats(ctx context.Context) (*admin.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &admin.Stats{}, nil
}

func (m *mockAdminService) SetStatus(ctx context.Context, email, status string) (*userResponse, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, email, status)
	}
	return &userResponse{Email: email, Status: model.Status(status)}, nil
}

func (m *mockAdminService) SetFeatures(ctx context.Context, email string, features []string) (*userResponse, error) {
	if m.setFeaturesFn != nil {
		return m.setFeaturesFn(ctx, email, features)
	}
	return &userResponse{Email: email}, nil
}

func (m *mockAdminService) ToggleFeature(ctx context.Context, email, feature string, enabled bool) (*userResponse, error) {
	if m.toggleFeatureFn != nil {
		return m.toggleFeatureFn(ctx, email, feature, enabled)
	}
	return &userResponse{Email: email}, nil
}

func (m *mockAdminService) SetRole(ctx context.Context, email, role string) (*userResponse, error) {
	if m.setRoleFn != nil {
		return m.setRoleFn(ctx, email, role)
	}
	return &userResponse{Email: email, Role: model.Role(role)}, nil
}

func (m *mockAdminService) SetExpiry(ctx context.Context, email string, expiry *time.Time) (*userResponse, error) {
	if m.setExpiryFn != nil {
		return m.setExpiryFn(ctx, email, expiry)
	}
	return &userResponse{Email: email, AccessExpiry: expiry}, nil
}

type stubPortfolio struct {
	view portfolio.View
}

func (s stubPortfolio) View() portfolio.View { return s.view }

// --- ヘルパー ---

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func testSession(role model.Role, features ...model.Feature) *model.Session {
	return &model.Session{
		UserID:   "user-1",
		Name:     "Test User",
		Email:    "user@example.com",
		Role:     role,
		Status:   model.StatusApproved,
		Features: features,
	}
}

// withSession はリクエストコンテキストにセッションを注入する。
func withSession(r *http.Request, s *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), s, &model.AuthSession{ID: "sess-1", UserID: s.UserID}))
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

// multipartBody は"file"パートと任意のフィールドを持つマルチパートボディを生成する。
func multipartBody(t *testing.T, filename, contentType, payload string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		h["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := io.Copy(part, strings.NewReader(payload)); err != nil {
			t.Fatalf("write part error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// decodeError はエラーレスポンスのコードを取り出す。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (body=%s)", err, w.Body.String())
	}
	return body
}

func memoryRecord(id string, meta *model.FileMetadata, payload string) *model.BlobRecord {
	return model.NewBlobRecord(id, meta, int64(len(payload)), fixedNow, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(payload)), nil
	})
}
