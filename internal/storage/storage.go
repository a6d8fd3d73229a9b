// Package storage uploads rendered images and deletes them by public id.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"retouch/internal/domain"
)

// Store persists image bytes and returns a public URL plus an id that can be
// used to delete the object later.
type Store interface {
	Upload(ctx context.Context, data []byte, opts UploadOptions) (domain.StoredImage, error)
	Delete(ctx context.Context, publicID string) error
	Name() string
}

type UploadOptions struct {
	Name        string
	Folder      string
	ContentType string
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName replaces every character outside [a-zA-Z0-9._-] with "_".
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func withExtension(name, contentType string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + extensionFor(contentType)
}

// Multi uploads to a primary store and routes deletes by id prefix so ids
// minted by the local or S3 fallbacks stay deletable after the primary
// changes.
type Multi struct {
	primary  Store
	prefixed map[string]Store
}

func NewMulti(primary Store, others ...Store) *Multi {
	m := &Multi{primary: primary, prefixed: map[string]Store{}}
	for _, s := range append([]Store{primary}, others...) {
		if s == nil {
			continue
		}
		if p := idPrefix(s.Name()); p != "" {
			m.prefixed[p] = s
		}
	}
	return m
}

func idPrefix(name string) string {
	switch name {
	case LocalName:
		return localPrefix
	case S3Name:
		return s3Prefix
	}
	return ""
}

func (m *Multi) Name() string { return m.primary.Name() }

func (m *Multi) Upload(ctx context.Context, data []byte, opts UploadOptions) (domain.StoredImage, error) {
	return m.primary.Upload(ctx, data, opts)
}

func (m *Multi) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return errors.New("storage: public id is required")
	}
	for prefix, s := range m.prefixed {
		if strings.HasPrefix(publicID, prefix) {
			return s.Delete(ctx, publicID)
		}
	}
	if idPrefix(m.primary.Name()) != "" {
		return fmt.Errorf("storage: %s cannot delete %q: %w", m.primary.Name(), publicID, domain.ErrNotSupported)
	}
	return m.primary.Delete(ctx, publicID)
}
