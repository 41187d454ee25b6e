package model

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// FileMetadata は汎用ファイルコレクションに保存するサイドカーメタデータ。
// 動画コレクションではメタデータを保持しない。
type FileMetadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
	// OwnerID はアップロードしたユーザーのID。
	OwnerID    string    `json:"ownerId,omitempty"`
}

// NewFileMetadata はFileMetadataを生成する。必須項目が欠けている場合はエラーを返す。
func NewFileMetadata(id, name string, size int64, mimeType string, uploadedAt time.Time) (*FileMetadata, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("file id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if size < 0 {
		return nil, fmt.Errorf("file size must not be negative: %d", size)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &FileMetadata{
		ID:         id,
		Name:       name,
		Size:       size,
		Type:       mimeType,
		UploadedAt: uploadedAt,
	}, nil
}

// BlobOpener は保存済みペイロードを読み出すストリームを開く関数。
type BlobOpener func() (io.ReadCloser, error)

// BlobRecord はBlobストアに保存された1件のバイナリオブジェクトを表す。
// ペイロード本体は保持せず、Openで都度ストリームを取得する。
// 取得したストリームのCloseは呼び出し側の責務。
type BlobRecord struct {
	ID        string
	Metadata  *FileMetadata
	Size      int64
	Timestamp time.Time

	opener BlobOpener
}

// NewBlobRecord はBlobRecordを生成する。
func NewBlobRecord(id string, meta *FileMetadata, size int64, timestamp time.Time, opener BlobOpener) *BlobRecord {
	return &BlobRecord{
		ID:        id,
		Metadata:  meta,
		Size:      size,
		Timestamp: timestamp,
		opener:    opener,
	}
}

// Open はペイロードを読み出すストリームを返す。
func (r *BlobRecord) Open() (io.ReadCloser, error) {
	if r == nil || r.opener == nil {
		return nil, fmt.Errorf("blob record has no payload")
	}
	return r.opener()
}

// VideoType は動画カタログエントリの種別。
type VideoType string

const (
	VideoTypeYouTube VideoType = "youtube"
	VideoTypeLocal   VideoType = "local"
)

// Video は動画カタログの1エントリ。
// local種別のペイロードは動画Blobストアに同じIDで保存される。
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        VideoType `json:"type"`
}
