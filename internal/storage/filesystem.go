package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"retouch/internal/domain"
)

const (
	LocalName   = "local"
	localPrefix = "local:"
)

// FileStore persists images onto the local filesystem and serves them from
// {publicBaseURL}/uploads. It is the fallback when no cloud store is
// configured.
type FileStore struct {
	basePath      string
	publicBaseURL string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath, publicBaseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) Name() string { return LocalName }

func (s *FileStore) Upload(ctx context.Context, data []byte, opts UploadOptions) (domain.StoredImage, error) {
	name := withExtension(SanitizeName(opts.Name), opts.ContentType)
	if name == "" || name == extensionFor(opts.ContentType) {
		return domain.StoredImage{}, errors.New("storage: name is required")
	}
	key := name
	if folder := SanitizeName(opts.Folder); folder != "" {
		key = path.Join(folder, name)
	}
	cleanKey, err := s.Write(ctx, key, data)
	if err != nil {
		return domain.StoredImage{}, err
	}
	return domain.StoredImage{
		URL:      s.publicBaseURL + "/uploads/" + cleanKey,
		PublicID: localPrefix + cleanKey,
	}, nil
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

func (s *FileStore) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanKey, err := sanitizeKey(strings.TrimPrefix(publicID, localPrefix))
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", cleanKey, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
