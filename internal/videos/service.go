// Package videos は動画ライブラリ（YouTube参照とローカル動画）のカタログ管理を提供する。
// カタログはblobstore.Catalogに順序付きリストとして保存し、
// ローカル動画のペイロードは動画コレクションのStoreに同じIDで保存する。
package videos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/fileteluss/internal/blobstore"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/security"
)

// DefaultMaxVideoSize はローカル動画の既定の最大サイズ（6GiB）。
const DefaultMaxVideoSize int64 = 6 << 30

// DefaultDescription は説明が未入力の場合に使用する説明文。
const DefaultDescription = "No description provided"

// DefaultCatalog は初回読み込み時に登録する既定の動画一覧。
func DefaultCatalog() []model.Video {
	return []model.Video{
		{ID: "dQw4w9WgXcQ", Title: "Premium Video Content", Description: "High quality tutorial video", Type: model.VideoTypeYouTube},
		{ID: "jNQXAC9IVRw", Title: "Getting Started Guide", Description: "Learn the basics quickly", Type: model.VideoTypeYouTube},
		{ID: "9bZkp7q19f0", Title: "Advanced Features", Description: "Master advanced techniques", Type: model.VideoTypeYouTube},
	}
}

// URLSigner は保存済みペイロードの一時的な再生URLを発行する。
// S3バックエンドのときのみ設定される。
type URLSigner interface {
	PresignGet(ctx context.Context, id string, ttl time.Duration) (string, error)
}

// LocalUploadInput はローカル動画アップロードの入力値。
type LocalUploadInput struct {
	Title       string
	Description string
	Type        string // MIMEタイプ
	Size        int64  // 宣言サイズ。不明な場合は-1
	Body        io.Reader
}

// Service は動画ライブラリのサービス層。
// カタログの読み込み・更新・保存は1つのミューテックスで直列化する。
// ペイロードの書き込み中はロックを保持せず、pendingでIDを予約する。
type Service struct {
	mu        sync.Mutex
	pending   map[string]struct{}
	catalog   blobstore.Catalog
	store     blobstore.Store
	signer    URLSigner
	sanitizer security.TextSanitizer
	maxSize   int64
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。signerはnilでもよい。
func NewService(
	catalog blobstore.Catalog,
	store blobstore.Store,
	signer URLSigner,
	sanitizer security.TextSanitizer,
	maxSize int64,
	logger *slog.Logger,
) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxVideoSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pending:   make(map[string]struct{}),
		catalog:   catalog,
		store:     store,
		signer:    signer,
		sanitizer: sanitizer,
		maxSize:   maxSize,
		logger:    logger,
		now:       time.Now,
	}
}

// MaxSize はローカル動画の最大サイズを返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

func (s *Service) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.SanitizeText(v)
}

// load はカタログを読み込む。未保存の場合は既定の一覧を保存して返す。
// 呼び出し側でs.muを保持していること。
func (s *Service) load(ctx context.Context) ([]model.Video, error) {
	videos, found, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load video catalog: %w", err)
	}
	if found {
		for i := range videos {
			if videos[i].Type == "" {
				videos[i].Type = model.VideoTypeYouTube
			}
		}
		return videos, nil
	}

	videos = DefaultCatalog()
	if err := s.catalog.Save(ctx, videos); err != nil {
		return nil, fmt.Errorf("failed to seed video catalog: %w", err)
	}
	s.logger.Info("video catalog seeded", slog.Int("count", len(videos)))
	return videos, nil
}

// List はカタログを保存順に返す。
func (s *Service) List(ctx context.Context) ([]model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load(ctx)
	if err != nil {
		return nil, model.NewStorageFailureError("loading videos")
	}
	return videos, nil
}

// find はIDに一致するカタログエントリの位置を返す。見つからない場合は-1。
func find(videos []model.Video, id string) int {
	for i, v := range videos {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// appendEntry はエントリをカタログの末尾に追加して保存する。呼び出し側でs.muを保持していること。
func (s *Service) appendEntry(ctx context.Context, videos []model.Video, v model.Video) error {
	updated := make([]model.Video, 0, len(videos)+1)
	updated = append(updated, videos...)
	updated = append(updated, v)
	if err := s.catalog.Save(ctx, updated); err != nil {
		s.logger.Error("failed to save video catalog",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
		return model.NewStorageFailureError("saving video")
	}
	return nil
}

// AddYouTube はYouTube動画をカタログに追加する。
func (s *Service) AddYouTube(ctx context.Context, url, title, description string) (*model.Video, error) {
	// 1. 入力検証
	title = s.clean(title)
	if title == "" {
		return nil, model.NewValidationError("Please provide a video title")
	}
	if strings.TrimSpace(url) == "" {
		return nil, model.NewValidationError("Please provide a YouTube URL")
	}
	id := ExtractYouTubeID(url)
	if id == "" {
		return nil, model.NewInvalidYouTubeURLError()
	}
	description = s.clean(description)
	if description == "" {
		description = DefaultDescription
	}

	// 2. カタログに追加
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load(ctx)
	if err != nil {
		return nil, model.NewStorageFailureError("loading videos")
	}
	if find(videos, id) >= 0 {
		return nil, model.NewValidationError("This video is already in the library")
	}

	v := model.Video{ID: id, Title: title, Description: description, Type: model.VideoTypeYouTube}
	if err := s.appendEntry(ctx, videos, v); err != nil {
		return nil, err
	}
	s.logger.Info("youtube video added", slog.String("video_id", id))
	return &v, nil
}

// reserveLocalID は local-<unixミリ秒> 形式のIDを生成して予約する。
// 同一ミリ秒のIDがカタログか予約済みにある場合は繰り上げる。呼び出し側でs.muを保持していること。
func (s *Service) reserveLocalID(videos []model.Video) string {
	ms := s.now().UnixMilli()
	for {
		id := fmt.Sprintf("local-%d", ms)
		if _, taken := s.pending[id]; !taken && find(videos, id) < 0 {
			s.pending[id] = struct{}{}
			return id
		}
		ms++
	}
}

// AddLocal はローカル動画を保存し、カタログに追加する。
func (s *Service) AddLocal(ctx context.Context, in LocalUploadInput) (*model.Video, error) {
	// 1. 入力検証（ストレージ呼び出し前）
	title := s.clean(in.Title)
	if title == "" {
		return nil, model.NewValidationError("Please provide a video title")
	}
	if in.Body == nil {
		return nil, model.NewValidationError("Please select a video file")
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(in.Type)), "video/") {
		return nil, model.NewInvalidVideoError("Please select a valid video file.")
	}
	if in.Size > s.maxSize {
		return nil, model.NewFileTooLargeError(s.maxSize)
	}
	description := s.clean(in.Description)
	if description == "" {
		description = DefaultDescription
	}

	// 2. IDを予約する
	s.mu.Lock()
	videos, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, model.NewStorageFailureError("loading videos")
	}
	id := s.reserveLocalID(videos)
	s.mu.Unlock()

	// 3. ロックを保持せずにペイロードを保存（動画コレクションはメタデータを保持しない）
	body := blobstore.NewLimitedReader(in.Body, s.maxSize)
	stored := s.store.Put(ctx, id, body, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)

	if !stored {
		if body.Exceeded() {
			return nil, model.NewFileTooLargeError(s.maxSize)
		}
		return nil, model.NewStorageFailureError("saving video file")
	}

	// 4. 最新のカタログに追加（失敗時はペイロードを削除）
	v := model.Video{ID: id, Title: title, Description: description, Type: model.VideoTypeLocal}
	videos, err = s.load(ctx)
	if err == nil {
		err = s.appendEntry(ctx, videos, v)
	} else {
		err = model.NewStorageFailureError("loading videos")
	}
	if err != nil {
		s.store.Delete(ctx, id)
		return nil, err
	}

	s.logger.Info("local video added", slog.String("video_id", id))
	return &v, nil
}

// Delete はカタログからエントリを削除する。ローカル動画の場合はペイロードも削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load(ctx)
	if err != nil {
		return model.NewStorageFailureError("loading videos")
	}
	idx := find(videos, id)
	if idx < 0 {
		return model.NewVideoNotFoundError(id)
	}

	// カタログを先に保存し、参照の残らないペイロードを削除する
	local := videos[idx].Type == model.VideoTypeLocal
	updated := make([]model.Video, 0, len(videos)-1)
	updated = append(updated, videos[:idx]...)
	updated = append(updated, videos[idx+1:]...)
	if err := s.catalog.Save(ctx, updated); err != nil {
		s.logger.Error("failed to save video catalog",
			slog.String("video_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewStorageFailureError("deleting video")
	}

	if local && !s.store.Delete(ctx, id) {
		s.logger.Warn("failed to delete video payload",
			slog.String("video_id", id),
		)
	}

	s.logger.Info("video deleted", slog.String("video_id", id))
	return nil
}

// localEntry はローカル動画のカタログエントリを返す。
func (s *Service) localEntry(ctx context.Context, id string) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos, err := s.load(ctx)
	if err != nil {
		return nil, model.NewStorageFailureError("loading videos")
	}
	idx := find(videos, id)
	if idx < 0 || videos[idx].Type != model.VideoTypeLocal {
		return nil, model.NewVideoNotFoundError(id)
	}
	v := videos[idx]
	return &v, nil
}

// Open はローカル動画のペイロードを返す。
func (s *Service) Open(ctx context.Context, id string) (*model.BlobRecord, error) {
	if _, err := s.localEntry(ctx, id); err != nil {
		return nil, err
	}
	rec := s.store.Get(ctx, id)
	if rec == nil {
		return nil, model.NewVideoNotFoundError(id)
	}
	return rec, nil
}

// PlaybackURL はローカル動画の一時的な再生URLを返す。
// 署名URLを発行できない構成の場合は空文字列を返し、呼び出し側はOpenで配信する。
func (s *Service) PlaybackURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if _, err := s.localEntry(ctx, id); err != nil {
		return "", err
	}
	if s.signer == nil {
		return "", nil
	}
	url, err := s.signer.PresignGet(ctx, id, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign video: %w", err)
	}
	return url, nil
}
