package blobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/fileteluss/internal/model"

	_ "modernc.org/sqlite"
)

// localPragmas はmodernc.org/sqliteが接続ごとに適用するPRAGMA。
// 書き込みトランザクションはBEGIN IMMEDIATEで開始し、ロック昇格時のSQLITE_BUSYを避ける。
const localPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"

const localSchema = `
CREATE TABLE IF NOT EXISTS files (
  id        TEXT PRIMARY KEY,
  metadata  TEXT,
  size      INTEGER NOT NULL,
  timestamp INTEGER NOT NULL,
  path      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS videos (
  id        TEXT PRIMARY KEY,
  metadata  TEXT,
  size      INTEGER NOT NULL,
  timestamp INTEGER NOT NULL,
  path      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS catalog (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// LocalDB はSQLiteのインデックスとペイロードファイルのディレクトリを管理する。
// コレクションごとのStoreと動画カタログはこのハンドルから取得する。
// 書き込みはプロセス内でwriteMuにより直列化し、読み取りはWALにより並行して行う。
type LocalDB struct {
	root    string
	sqlDB   *sql.DB
	writeMu sync.Mutex
	logger  *slog.Logger
	now     func() time.Time
}

// OpenLocal はrootディレクトリ配下にSQLiteインデックスを開き、スキーマを適用する。
func OpenLocal(root string, logger *slog.Logger) (*LocalDB, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cleanRoot := filepath.Clean(root)
	for _, c := range []string{CollectionFiles, CollectionVideos} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, c), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
	}

	dsn := filepath.Join(cleanRoot, "index.db") + localPragmas
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(localSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &LocalDB{
		root:   cleanRoot,
		sqlDB:  sqlDB,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close はSQLiteハンドルを閉じる。
func (d *LocalDB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// Store は指定コレクションのLocalStoreを返す。未知のコレクション名はエラーを返す。
func (d *LocalDB) Store(collection string) (*LocalStore, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}
	return &LocalStore{db: d, collection: collection}, nil
}

// LocalStore はSQLiteインデックスとディスク上のファイルでペイロードを保持するStore実装。
// ペイロードは一時ファイルへ書き込んだ後にリネームするため、書き込み途中の状態は観測されない。
type LocalStore struct {
	db         *LocalDB
	collection string
}

func (s *LocalStore) dir() string {
	return filepath.Join(s.db.root, s.collection)
}

func (s *LocalStore) fail(op, id string, err error) {
	s.db.logger.Error("local blob store failure",
		slog.String("collection", s.collection),
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}

// Put はペイロードをストリームでディスクに書き込み、インデックスを更新する。
func (s *LocalStore) Put(ctx context.Context, id string, blob io.Reader, meta *model.FileMetadata) bool {
	if !validID(id) || blob == nil {
		return false
	}

	var metaJSON sql.NullString
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			s.fail("put", id, fmt.Errorf("failed to encode metadata: %w", err))
			return false
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	// 1. 一時ファイルへペイロードを書き込む
	tmp, err := os.CreateTemp(s.dir(), ".upload-*")
	if err != nil {
		s.fail("put", id, fmt.Errorf("failed to create temp file: %w", err))
		return false
	}
	tmpPath := tmp.Name()
	size, err := io.Copy(tmp, blob)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		s.fail("put", id, fmt.Errorf("failed to write payload: %w", err))
		return false
	}

	// 2. 確定名へリネームする
	fileName := uuid.NewString() + ".bin"
	finalPath := filepath.Join(s.dir(), fileName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		s.fail("put", id, fmt.Errorf("failed to rename payload: %w", err))
		return false
	}

	// 3. インデックスを更新し、上書きされた旧ファイルを削除する
	oldFile, err := s.upsert(ctx, id, metaJSON, size, fileName)
	if err != nil {
		_ = os.Remove(finalPath)
		s.fail("put", id, err)
		return false
	}
	if oldFile != "" && oldFile != fileName {
		if err := os.Remove(filepath.Join(s.dir(), oldFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.db.logger.Warn("failed to remove replaced payload",
				slog.String("collection", s.collection),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return true
}

func (s *LocalStore) upsert(ctx context.Context, id string, metaJSON sql.NullString, size int64, fileName string) (string, error) {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldFile string
	err = tx.QueryRowContext(ctx, `SELECT path FROM `+s.collection+` WHERE id = ?`, id).Scan(&oldFile)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read existing record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+s.collection+` (id, metadata, size, timestamp, path)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   metadata = excluded.metadata,
		   size = excluded.size,
		   timestamp = excluded.timestamp,
		   path = excluded.path`,
		id, metaJSON, size, toMillis(s.db.now()), fileName,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit record: %w", err)
	}
	return oldFile, nil
}

// Get はidのレコードを返す。ペイロードはOpen時にファイルから読み出す。
func (s *LocalStore) Get(ctx context.Context, id string) *model.BlobRecord {
	row := s.db.sqlDB.QueryRowContext(ctx,
		`SELECT id, metadata, size, timestamp, path FROM `+s.collection+` WHERE id = ?`, id)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.fail("get", id, err)
		return nil
	}
	return rec
}

// Delete はインデックスとペイロードファイルを削除する。
func (s *LocalStore) Delete(ctx context.Context, id string) bool {
	s.db.writeMu.Lock()
	var fileName string
	err := s.db.sqlDB.QueryRowContext(ctx,
		`DELETE FROM `+s.collection+` WHERE id = ? RETURNING path`, id).Scan(&fileName)
	s.db.writeMu.Unlock()
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if err != nil {
		s.fail("delete", id, err)
		return false
	}

	if err := os.Remove(filepath.Join(s.dir(), fileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.db.logger.Warn("failed to remove payload file",
			slog.String("collection", s.collection),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// ListAll は挿入順に全レコードを返す。
func (s *LocalStore) ListAll(ctx context.Context) []*model.BlobRecord {
	rows, err := s.db.sqlDB.QueryContext(ctx,
		`SELECT id, metadata, size, timestamp, path FROM `+s.collection+` ORDER BY rowid`)
	if err != nil {
		s.fail("list", "", err)
		return []*model.BlobRecord{}
	}
	defer rows.Close()

	records := []*model.BlobRecord{}
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			s.fail("list", "", err)
			return []*model.BlobRecord{}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		s.fail("list", "", err)
		return []*model.BlobRecord{}
	}
	return records
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *LocalStore) scan(row rowScanner) (*model.BlobRecord, error) {
	var (
		id       string
		metaJSON sql.NullString
		size     int64
		ts       int64
		fileName string
	)
	if err := row.Scan(&id, &metaJSON, &size, &ts, &fileName); err != nil {
		return nil, err
	}

	var meta *model.FileMetadata
	if metaJSON.Valid {
		meta = &model.FileMetadata{}
		if err := json.Unmarshal([]byte(metaJSON.String), meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
		}
	}

	path := filepath.Join(s.dir(), fileName)
	return model.NewBlobRecord(id, meta, size, fromMillis(ts), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

var _ Store = (*LocalStore)(nil)
