package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/hitoshi/fileteluss/internal/model"
)

type memoryEntry struct {
	payload   []byte
	meta      *model.FileMetadata
	timestamp time.Time
}

// MemoryStore はプロセス内メモリにペイロードを保持するStore実装。
// テストとBLOB_BACKEND=memoryで使用する。
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Put はペイロードを読み切ってメモリに保存する。
func (s *MemoryStore) Put(ctx context.Context, id string, blob io.Reader, meta *model.FileMetadata) bool {
	if !validID(id) || blob == nil {
		return false
	}
	payload, err := io.ReadAll(blob)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = &memoryEntry{
		payload:   payload,
		meta:      cloneMetadata(meta),
		timestamp: s.now(),
	}
	return true
}

// Get はidのレコードを返す。
func (s *MemoryStore) Get(ctx context.Context, id string) *model.BlobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	return s.record(id, e)
}

// Delete はidのレコードを削除する。
func (s *MemoryStore) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return true
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ListAll は保存順に全レコードを返す。
func (s *MemoryStore) ListAll(ctx context.Context) []*model.BlobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*model.BlobRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.record(id, s.entries[id]))
	}
	return records
}

func (s *MemoryStore) record(id string, e *memoryEntry) *model.BlobRecord {
	payload := e.payload
	return model.NewBlobRecord(id, cloneMetadata(e.meta), int64(len(payload)), e.timestamp,
		func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		})
}

func cloneMetadata(meta *model.FileMetadata) *model.FileMetadata {
	if meta == nil {
		return nil
	}
	c := *meta
	return &c
}

var _ Store = (*MemoryStore)(nil)
