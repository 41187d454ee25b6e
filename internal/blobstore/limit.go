package blobstore

import (
	"errors"
	"io"
)

// ErrSizeLimitExceeded は上限サイズを超えて読み出そうとした場合のエラー。
var ErrSizeLimitExceeded = errors.New("payload exceeds size limit")

// LimitedReader は上限を超えるバイトが読み出された時点でErrSizeLimitExceededを返すio.Reader。
// Storeへ渡すとPutが失敗するため、呼び出し側はExceededでサイズ超過か否かを判別する。
type LimitedReader struct {
	r        io.Reader
	remain   int64
	exceeded bool
}

// NewLimitedReader はmaxバイトまで読み出せるLimitedReaderを生成する。
func NewLimitedReader(r io.Reader, max int64) *LimitedReader {
	return &LimitedReader{r: r, remain: max}
}

// Read はio.Readerを実装する。
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.remain < 0 {
		l.exceeded = true
		return 0, ErrSizeLimitExceeded
	}
	// 上限超過を検出するため1バイト余分に読む
	if int64(len(p)) > l.remain+1 {
		p = p[:l.remain+1]
	}
	n, err := l.r.Read(p)
	l.remain -= int64(n)
	if l.remain < 0 {
		l.exceeded = true
		return n, ErrSizeLimitExceeded
	}
	return n, err
}

// Exceeded は上限を超えて読み出されたかを返す。
func (l *LimitedReader) Exceeded() bool {
	return l.exceeded
}
