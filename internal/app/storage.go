package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hitoshi/fileteluss/internal/blobstore"
	"github.com/hitoshi/fileteluss/internal/config"
	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/videos"
)

// storage はファイル・動画のBlobストアと動画カタログをまとめたもの。
type storage struct {
	files   blobstore.Store
	videos  blobstore.Store
	catalog blobstore.Catalog
	// signer はS3バックエンドの場合のみ設定される
	signer  videos.URLSigner
	closers []io.Closer
}

// Close は開いたローカルデータベースを閉じる。
func (s *storage) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openStorage は設定のバックエンド種別に応じてBlobストアを開く。
// 各ストアはメトリクス計測でラップする。
func openStorage(ctx context.Context, cfg *config.Config, mc metrics.MetricsCollector, logger *slog.Logger) (*storage, error) {
	st := &storage{}

	switch cfg.BlobBackend {
	case config.BlobBackendMemory:
		st.files = blobstore.NewMemoryStore()
		st.videos = blobstore.NewMemoryStore()
		st.catalog = blobstore.NewMemoryCatalog()

	case config.BlobBackendS3:
		// 動画カタログはローカルのSQLiteに保持する
		local, err := blobstore.OpenLocal(cfg.BlobDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog database: %w", err)
		}
		st.closers = append(st.closers, local)
		st.catalog = local.Catalog()

		client, err := blobstore.NewS3Client(ctx, blobstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		presigner := s3.NewPresignClient(client)

		fileStore, err := blobstore.NewS3Store(client, presigner, cfg.S3Bucket, cfg.S3Prefix, blobstore.CollectionFiles, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}
		videoStore, err := blobstore.NewS3Store(client, presigner, cfg.S3Bucket, cfg.S3Prefix, blobstore.CollectionVideos, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create video store: %w", err)
		}
		st.files = fileStore
		st.videos = videoStore
		st.signer = videoStore

	default:
		local, err := blobstore.OpenLocal(cfg.BlobDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open local blob store: %w", err)
		}
		st.closers = append(st.closers, local)

		fileStore, err := local.Store(blobstore.CollectionFiles)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		videoStore, err := local.Store(blobstore.CollectionVideos)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.files = fileStore
		st.videos = videoStore
		st.catalog = local.Catalog()
	}

	st.files = blobstore.Instrument(st.files, blobstore.CollectionFiles, mc, logger)
	st.videos = blobstore.Instrument(st.videos, blobstore.CollectionVideos, mc, logger)

	logger.Info("blob storage ready", slog.String("backend", cfg.BlobBackend))
	return st, nil
}
