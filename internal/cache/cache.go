// Package cache stores analysis and generation results keyed by image hash.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache is a TTL key/value store for JSON-serialisable values.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

type Stats struct {
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// AnalysisKey identifies an analysis for an image hash and locale.
func AnalysisKey(imageHash, locale string) string {
	return "analysis:" + imageHash + ":" + locale
}

// GenerationKey identifies an edit of an image hash under an instruction.
func GenerationKey(imageHash, instruction string) string {
	sum := md5.Sum([]byte(instruction))
	return "generation:" + imageHash + ":" + hex.EncodeToString(sum[:])[:8]
}

func decode(raw []byte, dest any) error {
	return json.Unmarshal(raw, dest)
}
