// Package blobstore はIDをキーとした大容量バイナリオブジェクトの保存先を提供する。
//
// すべての実装は失敗を戻り値（false/nil）で表現し、エラーを呼び出し側へ伝播しない。
// 失敗の詳細はログとメトリクスに記録される。
package blobstore

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/model"
)

// コレクション名
const (
	CollectionFiles  = "files"
	CollectionVideos = "videos"
)

// Store は1つのコレクションに対するBlobストアの操作を定義する。
type Store interface {
	// Put はペイロードとメタデータをidで保存する。既存のidは上書きされる。
	// 失敗またはidが空の場合はfalseを返す。
	Put(ctx context.Context, id string, blob io.Reader, meta *model.FileMetadata) bool
	// Get はidに対応するレコードを返す。存在しない場合や失敗時はnilを返す。
	Get(ctx context.Context, id string) *model.BlobRecord
	// Delete はidのレコードを削除する。存在しないidの削除も成功として扱う。
	Delete(ctx context.Context, id string) bool
	// ListAll はコレクション内の全レコードを返す。失敗時は空スライスを返す。
	ListAll(ctx context.Context) []*model.BlobRecord
}

// validID はBlobストアに保存可能なidかを判定する。
func validID(id string) bool {
	return strings.TrimSpace(id) != ""
}

// validCollection は既知のコレクション名かを判定する。
func validCollection(name string) bool {
	return name == CollectionFiles || name == CollectionVideos
}

// instrumentedStore はStoreの各操作をメトリクスとログに記録するデコレータ。
type instrumentedStore struct {
	next       Store
	collection string
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// Instrument はStoreをメトリクス記録付きでラップする。
func Instrument(next Store, collection string, mc metrics.MetricsCollector, logger *slog.Logger) Store {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumentedStore{
		next:       next,
		collection: collection,
		metrics:    mc,
		logger:     logger,
	}
}

func (s *instrumentedStore) observe(op string, start time.Time, ok bool, id string) {
	s.metrics.RecordBlobOperation(s.collection, op, ok)
	s.metrics.RecordBlobLatency(s.collection, op, time.Since(start))
	if !ok {
		s.logger.Warn("blob operation failed",
			slog.String("collection", s.collection),
			slog.String("op", op),
			slog.String("id", id),
		)
	}
}

func (s *instrumentedStore) Put(ctx context.Context, id string, blob io.Reader, meta *model.FileMetadata) bool {
	start := time.Now()
	var ok bool
	if blob == nil {
		ok = s.next.Put(ctx, id, nil, meta)
	} else {
		cr := &countingReader{r: blob}
		ok = s.next.Put(ctx, id, cr, meta)
		if ok {
			s.metrics.RecordBlobBytesWritten(s.collection, cr.n)
		}
	}
	s.observe("put", start, ok, id)
	return ok
}

func (s *instrumentedStore) Get(ctx context.Context, id string) *model.BlobRecord {
	start := time.Now()
	rec := s.next.Get(ctx, id)
	// 存在しないidは正常な否定結果なので成功として数える
	s.metrics.RecordBlobOperation(s.collection, "get", true)
	s.metrics.RecordBlobLatency(s.collection, "get", time.Since(start))
	return rec
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) bool {
	start := time.Now()
	ok := s.next.Delete(ctx, id)
	s.observe("delete", start, ok, id)
	return ok
}

func (s *instrumentedStore) ListAll(ctx context.Context) []*model.BlobRecord {
	start := time.Now()
	records := s.next.ListAll(ctx)
	s.metrics.RecordBlobOperation(s.collection, "list", true)
	s.metrics.RecordBlobLatency(s.collection, "list", time.Since(start))
	return records
}

// countingReader は読み出したバイト数を数えるio.Reader。
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// TotalSize はレコード一覧のペイロードサイズの合計を返す。
func TotalSize(records []*model.BlobRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}

var _ Store = (*instrumentedStore)(nil)
