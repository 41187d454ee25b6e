// Package files は汎用ファイルコレクションのアップロード・一覧・取得・削除を提供する。
package files

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/fileteluss/internal/blobstore"
	"github.com/hitoshi/fileteluss/internal/model"
	"github.com/hitoshi/fileteluss/internal/security"
)

// DefaultMaxFileSize はアップロード可能なファイルの既定の最大サイズ（100MiB）。
const DefaultMaxFileSize int64 = 100 << 20

// idSuffixLength はファイルIDのランダム部の文字数。
const idSuffixLength = 9

// UploadInput はアップロードされたファイルの情報。
type UploadInput struct {
	Name string
	Type string
	Size int64 // 宣言サイズ。不明な場合は-1
	Body io.Reader
}

// Owner はファイル操作を行う利用者。
// 一覧と集計は本人のファイルに限られ、管理者はID指定で他人のファイルも取得・削除できる。
type Owner struct {
	UserID string
	Admin  bool
}

// owns はownerがレコードにアクセスできるかを判定する。所有者のないレコードは管理者のみ。
func (o Owner) owns(meta *model.FileMetadata) bool {
	if o.Admin {
		return true
	}
	return meta != nil && meta.OwnerID != "" && meta.OwnerID == o.UserID
}

// Service はファイル管理のサービス層。
type Service struct {
	store     blobstore.Store
	sanitizer security.TextSanitizer
	maxSize   int64
	logger    *slog.Logger
	now       func() time.Time
	newSuffix func() string
}

// NewService はServiceを生成する。maxSizeが0以下の場合はDefaultMaxFileSizeを使用する。
func NewService(store blobstore.Store, sanitizer security.TextSanitizer, maxSize int64, logger *slog.Logger) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		maxSize:   maxSize,
		logger:    logger,
		now:       time.Now,
		newSuffix: randomSuffix,
	}
}

// MaxSize はアップロード可能な最大サイズを返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// randomSuffix はUUIDの乱数部から9文字のbase36文字列を生成する。
func randomSuffix() string {
	u := uuid.New()
	v := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(v) < idSuffixLength {
		v = strings.Repeat("0", idSuffixLength-len(v)) + v
	}
	return v[:idSuffixLength]
}

// NewFileID は file-<unixミリ秒>-<9文字のbase36> 形式のIDを生成する。
func (s *Service) NewFileID() string {
	return fmt.Sprintf("file-%d-%s", s.now().UnixMilli(), s.newSuffix())
}

// Upload はownerのファイルとして保存し、保存したメタデータを返す。
func (s *Service) Upload(ctx context.Context, owner Owner, in UploadInput) (*model.FileMetadata, error) {
	// 1. 入力検証（ストレージ呼び出し前）
	if owner.UserID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if in.Body == nil {
		return nil, model.NewValidationError("Please select a file")
	}
	if in.Size > s.maxSize {
		return nil, model.NewFileTooLargeError(s.maxSize)
	}
	name := in.Name
	if s.sanitizer != nil {
		name = s.sanitizer.SanitizeFileName(name)
	}

	// 2. メタデータを生成
	id := s.NewFileID()
	size := in.Size
	if size < 0 {
		size = 0
	}
	meta, err := model.NewFileMetadata(id, name, size, in.Type, s.now().UTC())
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}
	meta.OwnerID = owner.UserID

	// 3. 上限付きで保存
	body := blobstore.NewLimitedReader(in.Body, s.maxSize)
	if !s.store.Put(ctx, id, body, meta) {
		if body.Exceeded() {
			return nil, model.NewFileTooLargeError(s.maxSize)
		}
		return nil, model.NewStorageFailureError("saving file")
	}

	s.logger.Info("file uploaded",
		slog.String("file_id", id),
		slog.String("owner_id", owner.UserID),
		slog.Int64("size", meta.Size),
		slog.String("type", meta.Type),
	)
	return meta, nil
}

// metadataOf はレコードのメタデータを返す。メタデータがないレコードは実サイズから補完する。
func metadataOf(rec *model.BlobRecord) *model.FileMetadata {
	if rec.Metadata != nil {
		return rec.Metadata
	}
	return &model.FileMetadata{
		ID:         rec.ID,
		Name:       rec.ID,
		Size:       rec.Size,
		Type:       "application/octet-stream",
		UploadedAt: rec.Timestamp,
	}
}

// owned はownerが所有するレコードを保存順に返す。
func (s *Service) owned(ctx context.Context, owner Owner) []*model.BlobRecord {
	var out []*model.BlobRecord
	for _, rec := range s.store.ListAll(ctx) {
		if rec.Metadata != nil && rec.Metadata.OwnerID == owner.UserID && owner.UserID != "" {
			out = append(out, rec)
		}
	}
	return out
}

// List はownerが保存したファイルのメタデータを保存順に返す。
func (s *Service) List(ctx context.Context, owner Owner) []*model.FileMetadata {
	records := s.owned(ctx, owner)
	out := make([]*model.FileMetadata, 0, len(records))
	for _, rec := range records {
		out = append(out, metadataOf(rec))
	}
	return out
}

// Summary はownerのファイル数と使用容量（バイト）を返す。
func (s *Service) Summary(ctx context.Context, owner Owner) (count int, used int64) {
	records := s.owned(ctx, owner)
	return len(records), blobstore.TotalSize(records)
}

// Get は指定IDのファイルを返す。存在しない場合とownerがアクセスできない場合はFILE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, owner Owner, id string) (*model.BlobRecord, error) {
	rec := s.store.Get(ctx, id)
	if rec == nil || !owner.owns(rec.Metadata) {
		return nil, model.NewFileNotFoundError(id)
	}
	return rec, nil
}

// Delete は指定IDのファイルを削除する。存在しないIDの削除は成功とし、
// 他人のファイルはFILE_NOT_FOUNDとする。
func (s *Service) Delete(ctx context.Context, owner Owner, id string) error {
	if rec := s.store.Get(ctx, id); rec != nil && !owner.owns(rec.Metadata) {
		return model.NewFileNotFoundError(id)
	}
	if !s.store.Delete(ctx, id) {
		return model.NewStorageFailureError("deleting file")
	}
	s.logger.Info("file deleted",
		slog.String("file_id", id),
		slog.String("user_id", owner.UserID),
	)
	return nil
}
