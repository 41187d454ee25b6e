package blobstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/fileteluss/internal/model"
)

func TestCatalog_LoadBeforeSave_NotFound(t *testing.T) {
	db, err := OpenLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenLocal() error = %v", err)
	}
	defer db.Close()

	catalogs := map[string]Catalog{
		"sqlite": db.Catalog(),
		"memory": NewMemoryCatalog(),
	}
	for name, c := range catalogs {
		t.Run(name, func(t *testing.T) {
			videos, found, err := c.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if found || videos != nil {
				t.Errorf("Load() = %v, %v, want nil, false", videos, found)
			}
		})
	}
}

func TestCatalog_SaveThenLoad_PreservesOrder(t *testing.T) {
	db, err := OpenLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenLocal() error = %v", err)
	}
	defer db.Close()

	want := []model.Video{
		{ID: "dQw4w9WgXcQ", Title: "Premium Video Content", Type: model.VideoTypeYouTube},
		{ID: "local-1", Title: "Holiday", Type: model.VideoTypeLocal},
	}

	catalogs := map[string]Catalog{
		"sqlite": db.Catalog(),
		"memory": NewMemoryCatalog(),
	}
	for name, c := range catalogs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := c.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, found, err := c.Load(ctx)
			if err != nil || !found {
				t.Fatalf("Load() = %v, %v", found, err)
			}
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("videos[%d] = %+v, want %+v", i, got[i], want[i])
				}
			}

			// 空のカタログも保存済みとして扱う
			if err := c.Save(ctx, nil); err != nil {
				t.Fatalf("Save(nil) error = %v", err)
			}
			got, found, _ = c.Load(ctx)
			if !found || len(got) != 0 {
				t.Errorf("after empty save: %v, %v", got, found)
			}
		})
	}
}

// recordingCollector はBlob操作の記録を保持するMetricsCollectorのモック。
type recordingCollector struct {
	ops   []string
	bytes int64
}

func (r *recordingCollector) RecordBlobOperation(collection, op string, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	r.ops = append(r.ops, collection+":"+op+":"+result)
}
func (r *recordingCollector) RecordBlobLatency(string, string, time.Duration) {}
func (r *recordingCollector) RecordBlobBytesWritten(_ string, n int64)        { r.bytes += n }
func (r *recordingCollector) RecordAuthOutcome(string, string)                {}
func (r *recordingCollector) RecordAccessDecision(string, string)             {}
func (r *recordingCollector) RecordHTTPStatus(int)                            {}

func TestInstrument_RecordsOperationsAndBytes(t *testing.T) {
	rc := &recordingCollector{}
	s := Instrument(NewMemoryStore(), CollectionFiles, rc, nil)
	ctx := context.Background()

	s.Put(ctx, "a", strings.NewReader("hello"), nil)
	s.Put(ctx, "", strings.NewReader("x"), nil)
	s.Get(ctx, "a")
	s.Delete(ctx, "a")
	s.ListAll(ctx)

	want := []string{
		"files:put:ok",
		"files:put:fail",
		"files:get:ok",
		"files:delete:ok",
		"files:list:ok",
	}
	if strings.Join(rc.ops, ",") != strings.Join(want, ",") {
		t.Errorf("ops = %v, want %v", rc.ops, want)
	}
	if rc.bytes != 5 {
		t.Errorf("bytes = %d, want 5", rc.bytes)
	}
}
