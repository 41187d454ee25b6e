package blobstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hitoshi/fileteluss/internal/model"
)

// オブジェクトのユーザーメタデータキー
const (
	s3MetaMetadata  = "fileteluss-metadata"
	s3MetaTimestamp = "fileteluss-timestamp"
)

// s3MetaLimit はS3が受け付けるユーザーメタデータ（キーと値の合計）の上限バイト数。
const s3MetaLimit = 2 << 10

// S3API はS3Storeが利用するS3クライアントの操作。
// *s3.Client がこれを満たす。
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner は署名付きGET URLを発行する操作。
// *s3.PresignClient がこれを満たす。
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config はS3互換ストレージへの接続設定。
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// NewS3Client は設定からS3クライアントを生成する。
// Endpointを指定した場合はMinIOやR2などS3互換ストレージに接続する。
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Store はS3互換オブジェクトストレージにペイロードを保持するStore実装。
// オブジェクトキーは <prefix>/<collection>/<id> で、メタデータはユーザーメタデータにJSONで保存する。
type S3Store struct {
	client     S3API
	presigner  Presigner
	bucket     string
	prefix     string
	collection string
	logger     *slog.Logger
	now        func() time.Time
}

// NewS3Store は指定コレクションのS3Storeを生成する。presignerはnilでもよい。
func NewS3Store(client S3API, presigner Presigner, bucket, prefix, collection string, logger *slog.Logger) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if !validCollection(collection) {
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{
		client:     client,
		presigner:  presigner,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		collection: collection,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *S3Store) keyPrefix() string {
	if s.prefix == "" {
		return s.collection + "/"
	}
	return path.Join(s.prefix, s.collection) + "/"
}

func (s *S3Store) key(id string) string {
	return s.keyPrefix() + id
}

func (s *S3Store) fail(op, id string, err error) {
	s.logger.Error("s3 blob store failure",
		slog.String("collection", s.collection),
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}

// Put はペイロードを一時ファイルへ退避してからPutObjectで送信する。
// 長さ不明のストリームでもContent-Lengthを確定させるため。
func (s *S3Store) Put(ctx context.Context, id string, blob io.Reader, meta *model.FileMetadata) bool {
	if !validID(id) || blob == nil {
		return false
	}

	userMeta := map[string]string{
		s3MetaTimestamp: strconv.FormatInt(toMillis(s.now()), 10),
	}
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			s.fail("put", id, fmt.Errorf("failed to encode metadata: %w", err))
			return false
		}
		// ヘッダー値はASCIIに限られるためbase64で格納する
		userMeta[s3MetaMetadata] = base64.StdEncoding.EncodeToString(b)
	}
	if n := userMetaSize(userMeta); n > s3MetaLimit {
		s.fail("put", id, fmt.Errorf("failed to encode metadata: %d bytes exceeds %d", n, s3MetaLimit))
		return false
	}

	tmp, err := os.CreateTemp("", "fileteluss-s3-*")
	if err != nil {
		s.fail("put", id, fmt.Errorf("failed to create temp file: %w", err))
		return false
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, blob)
	if err != nil {
		s.fail("put", id, fmt.Errorf("failed to spool payload: %w", err))
		return false
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.fail("put", id, fmt.Errorf("failed to rewind payload: %w", err))
		return false
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          tmp,
		ContentLength: aws.Int64(size),
		Metadata:      userMeta,
	}
	if meta != nil && meta.Type != "" {
		input.ContentType = aws.String(meta.Type)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.fail("put", id, fmt.Errorf("failed to put object: %w", err))
		return false
	}
	return true
}

// Get はHeadObjectでメタデータを取得し、ペイロードはOpen時にGetObjectで読み出す。
func (s *S3Store) Get(ctx context.Context, id string) *model.BlobRecord {
	if !validID(id) {
		return nil
	}
	rec, err := s.head(ctx, id)
	if err != nil {
		if isS3NotFound(err) {
			return nil
		}
		s.fail("get", id, err)
		return nil
	}
	return rec
}

func (s *S3Store) head(ctx context.Context, id string) (*model.BlobRecord, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, err
	}

	var meta *model.FileMetadata
	if raw, ok := lookupMeta(out.Metadata, s3MetaMetadata); ok {
		meta, err = decodeUserMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
		}
	}

	var ts time.Time
	if raw, ok := lookupMeta(out.Metadata, s3MetaTimestamp); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = fromMillis(ms)
		}
	}
	if ts.IsZero() && out.LastModified != nil {
		ts = out.LastModified.UTC()
	}

	size := aws.ToInt64(out.ContentLength)
	key := s.key(id)
	return model.NewBlobRecord(id, meta, size, ts, func() (io.ReadCloser, error) {
		obj, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get object: %w", err)
		}
		return obj.Body, nil
	}), nil
}

// Delete はオブジェクトを削除する。S3は存在しないキーの削除も成功を返す。
func (s *S3Store) Delete(ctx context.Context, id string) bool {
	if !validID(id) {
		return true
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isS3NotFound(err) {
		s.fail("delete", id, err)
		return false
	}
	return true
}

// ListAll はコレクションのプレフィックス配下の全オブジェクトを返す。順序はキーの辞書順。
func (s *S3Store) ListAll(ctx context.Context) []*model.BlobRecord {
	records := []*model.BlobRecord{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix()),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.fail("list", "", err)
			return []*model.BlobRecord{}
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix())
			if id == "" {
				continue
			}
			rec, err := s.head(ctx, id)
			if err != nil {
				if isS3NotFound(err) {
					continue
				}
				s.fail("list", id, err)
				return []*model.BlobRecord{}
			}
			records = append(records, rec)
		}
	}
	return records
}

// PresignGet はidのペイロードを一時的に取得できる署名付きURLを返す。
func (s *S3Store) PresignGet(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("presigner is not configured")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// lookupMeta はユーザーメタデータをキーの大文字小文字を区別せずに参照する。
func userMetaSize(m map[string]string) int {
	n := 0
	for k, v := range m {
		n += len(k) + len(v)
	}
	return n
}

// decodeUserMetadata はbase64で格納されたメタデータを復号する。
// base64導入前に書き込まれた生のJSONも読み取る。
func decodeUserMetadata(raw string) (*model.FileMetadata, error) {
	b := []byte(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		b = decoded
	}
	meta := &model.FileMetadata{}
	if err := json.Unmarshal(b, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func lookupMeta(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

var _ Store = (*S3Store)(nil)
