package blobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hitoshi/fileteluss/internal/model"
)

// VideoCatalogKey は動画カタログを保存する既定のキー。
const VideoCatalogKey = "videos"

// Catalog は動画カタログ（順序付きのエントリ一覧）の永続化を定義する。
type Catalog interface {
	// Load は保存済みのカタログを返す。一度も保存されていない場合はfoundがfalseになる。
	Load(ctx context.Context) (videos []model.Video, found bool, err error)
	// Save はカタログ全体を置き換える。
	Save(ctx context.Context, videos []model.Video) error
}

// SQLiteCatalog はLocalDBのcatalogテーブルにJSON一覧として保存するCatalog実装。
type SQLiteCatalog struct {
	db  *LocalDB
	key string
}

// Catalog は既定キーのSQLiteCatalogを返す。
func (d *LocalDB) Catalog() *SQLiteCatalog {
	return &SQLiteCatalog{db: d, key: VideoCatalogKey}
}

// Load はカタログを読み出す。
func (c *SQLiteCatalog) Load(ctx context.Context) ([]model.Video, bool, error) {
	var value string
	err := c.db.sqlDB.QueryRowContext(ctx, `SELECT value FROM catalog WHERE key = ?`, c.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load catalog: %w", err)
	}

	var videos []model.Video
	if err := json.Unmarshal([]byte(value), &videos); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if videos == nil {
		videos = []model.Video{}
	}
	return videos, true, nil
}

// Save はカタログを保存する。
func (c *SQLiteCatalog) Save(ctx context.Context, videos []model.Video) error {
	if videos == nil {
		videos = []model.Video{}
	}
	b, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	c.db.writeMu.Lock()
	defer c.db.writeMu.Unlock()
	_, err = c.db.sqlDB.ExecContext(ctx,
		`INSERT INTO catalog (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		c.key, string(b), toMillis(c.db.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// MemoryCatalog はプロセス内メモリに保持するCatalog実装。
type MemoryCatalog struct {
	mu     sync.Mutex
	videos []model.Video
	saved  bool
}

// NewMemoryCatalog は空のMemoryCatalogを生成する。
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{}
}

// Load はカタログのコピーを返す。
func (c *MemoryCatalog) Load(ctx context.Context) ([]model.Video, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.saved {
		return nil, false, nil
	}
	out := make([]model.Video, len(c.videos))
	copy(out, c.videos)
	return out, true, nil
}

// Save はカタログを置き換える。
func (c *MemoryCatalog) Save(ctx context.Context, videos []model.Video) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.videos = make([]model.Video, len(videos))
	copy(c.videos, videos)
	c.saved = true
	return nil
}

var (
	_ Catalog = (*SQLiteCatalog)(nil)
	_ Catalog = (*MemoryCatalog)(nil)
)
