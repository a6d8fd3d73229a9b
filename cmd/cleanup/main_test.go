package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"retouch/internal/domain"
	"retouch/internal/registry"
)

type fakeStore struct {
	deleted []string
	missing map[string]bool
	broken  map[string]bool
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if f.missing[id] {
		return fmt.Errorf("gone: %w", domain.ErrNotFound)
	}
	if f.broken[id] {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func seed(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(filepath.Join(t.TempDir(), "generated.json"))
	now := time.Now()
	for _, it := range []domain.RegistryItem{
		{PublicID: "local:old_1.jpg", CreatedAt: now.Add(-48 * time.Hour)},
		{PublicID: "local:old_2.jpg", CreatedAt: now.Add(-30 * time.Hour)},
		{PublicID: "local:old_3.jpg", CreatedAt: now.Add(-25 * time.Hour)},
		{PublicID: "local:fresh.jpg", CreatedAt: now.Add(-time.Hour)},
	} {
		if err := reg.Append(it); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return reg
}

func TestPruneDeletesOldEntries(t *testing.T) {
	reg := seed(t)
	store := &fakeStore{
		missing: map[string]bool{"local:old_2.jpg": true},
		broken:  map[string]bool{"local:old_3.jpg": true},
	}
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	res, err := prune(context.Background(), reg, store, time.Now().Add(-24*time.Hour), false, logger)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	want := pruneResult{Matched: 3, Deleted: 1, Missing: 1, Failed: 1}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "local:old_1.jpg" {
		t.Fatalf("deleted = %v", store.deleted)
	}
	items, _ := reg.List()
	if len(items) != 1 || items[0].PublicID != "local:fresh.jpg" {
		t.Fatalf("remaining = %+v", items)
	}
	if !strings.Contains(buf.String(), `"phase":"cleanup.delete"`) {
		t.Fatalf("expected delete failure log, got %s", buf.String())
	}
}

func TestPruneDryRunKeepsRegistry(t *testing.T) {
	reg := seed(t)
	store := &fakeStore{}

	res, err := prune(context.Background(), reg, store, time.Now().Add(-24*time.Hour), true, zerolog.Nop())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if res.Matched != 3 || res.Deleted != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("dry run deleted %v", store.deleted)
	}
	items, _ := reg.List()
	if len(items) != 4 {
		t.Fatalf("registry changed: %d items", len(items))
	}
}

func TestPrintItems(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := printItems(&buf, []domain.RegistryItem{{PublicID: "s3:a.png", URL: "https://x/a.png", CreatedAt: at, SessionID: "s1"}})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"PUBLIC ID", "s3:a.png", "2026-01-02T03:04:05Z", "s1", "https://x/a.png"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
