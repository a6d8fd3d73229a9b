// Package registry tracks generated images in a JSON array file so they can
// be listed and cleaned up later.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"retouch/internal/domain"
)

// Registry serializes all access to the backing file. Writes go to a temp
// file first and are renamed into place.
type Registry struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) Path() string { return r.path }

func (r *Registry) Append(item domain.RegistryItem) error {
	if item.PublicID == "" {
		return errors.New("registry: publicId is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.load()
	if err != nil {
		return err
	}
	items = append(items, item)
	return r.save(items)
}

// List returns entries newest first.
func (r *Registry) List() ([]domain.RegistryItem, error) {
	r.mu.Lock()
	items, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// Remove drops every entry with publicID and reports whether one existed.
func (r *Registry) Remove(publicID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.load()
	if err != nil {
		return false, err
	}
	kept := items[:0]
	found := false
	for _, it := range items {
		if it.PublicID == publicID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return false, nil
	}
	return true, r.save(kept)
}

// Prune removes entries created before cutoff and returns them.
func (r *Registry) Prune(cutoff time.Time) ([]domain.RegistryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.load()
	if err != nil {
		return nil, err
	}
	var kept, removed []domain.RegistryItem
	for _, it := range items {
		if it.CreatedAt.Before(cutoff) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if kept == nil {
		kept = []domain.RegistryItem{}
	}
	return removed, r.save(kept)
}

func (r *Registry) load() ([]domain.RegistryItem, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.RegistryItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read: %w", err)
	}
	if len(data) == 0 {
		return []domain.RegistryItem{}, nil
	}
	var items []domain.RegistryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", r.path, err)
	}
	return items, nil
}

func (r *Registry) save(items []domain.RegistryItem) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("registry: ensure dir: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("registry: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("registry: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: close: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: rename: %w", err)
	}
	return nil
}
