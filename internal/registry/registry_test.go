package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"retouch/internal/domain"
)

func TestMissingFileIsEmpty(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "data", "generated_images.json"))
	items, err := r.List()
	if err != nil || len(items) != 0 {
		t.Fatalf("List = %v %v", items, err)
	}
}

func TestAppendListRemove(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "generated_images.json"))
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := r.Append(domain.RegistryItem{
			PublicID:  fmt.Sprintf("img-%d", i),
			URL:       fmt.Sprintf("https://cdn.example.com/%d.jpg", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			SessionID: "s1",
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	items, _ := r.List()
	if len(items) != 3 || items[0].PublicID != "img-2" {
		t.Fatalf("List order = %+v", items)
	}

	found, err := r.Remove("img-1")
	if err != nil || !found {
		t.Fatalf("Remove = %v %v", found, err)
	}
	found, _ = r.Remove("img-1")
	if found {
		t.Fatalf("second Remove should report not found")
	}
	items, _ = r.List()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestAppendRequiresPublicID(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "reg.json"))
	if err := r.Append(domain.RegistryItem{URL: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPrune(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "reg.json"))
	now := time.Now().UTC()
	_ = r.Append(domain.RegistryItem{PublicID: "old", CreatedAt: now.Add(-48 * time.Hour)})
	_ = r.Append(domain.RegistryItem{PublicID: "new", CreatedAt: now})

	removed, err := r.Prune(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0].PublicID != "old" {
		t.Fatalf("removed = %+v", removed)
	}
	items, _ := r.List()
	if len(items) != 1 || items[0].PublicID != "new" {
		t.Fatalf("remaining = %+v", items)
	}
}

func TestConcurrentAppendsKeepValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.json")
	r := New(path)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Append(domain.RegistryItem{PublicID: fmt.Sprintf("p%d", i)})
		}(i)
	}
	wg.Wait()
	items, err := r.List()
	if err != nil || len(items) != 20 {
		t.Fatalf("List = %d %v", len(items), err)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestCorruptFileReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).List(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLegacyMillisecondTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated_images.json")
	legacy := `[{"publicId":"a","url":"https://cdn.test/a.jpg","createdAt":1718000000000},{"publicId":"b","createdAt":"2024-06-10T06:13:20Z"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(path)

	items, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := time.UnixMilli(1718000000000).UTC()
	if len(items) != 2 || !items[0].CreatedAt.Equal(want) || !items[1].CreatedAt.Equal(want) {
		t.Fatalf("items = %+v", items)
	}

	if err := r.Append(domain.RegistryItem{PublicID: "c", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Append after legacy file: %v", err)
	}
	removed, err := r.Prune(want.Add(time.Second))
	if err != nil || len(removed) != 2 {
		t.Fatalf("Prune = %v %v", removed, err)
	}
	items, _ = r.List()
	if len(items) != 1 || items[0].PublicID != "c" {
		t.Fatalf("remaining = %+v", items)
	}
}
