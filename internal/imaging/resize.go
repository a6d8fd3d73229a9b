package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"

	"retouch/internal/domain"
)

// MaxUpscale caps how far a resize may enlarge the source.
const MaxUpscale = 1.5

// MaxDecodeDimension bounds both sides of any image this package decodes or
// produces. Headers are checked before pixels are allocated.
const MaxDecodeDimension = 8192

const jpegQuality = 90

// checkDecodeSize reads only the image header and rejects sources too large
// to decode into memory.
func checkDecodeSize(src []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("imaging: decode config: %w", err)
	}
	if cfg.Width > MaxDecodeDimension || cfg.Height > MaxDecodeDimension {
		return cfg, format, domain.NewInvalidImage("Image too large: %dx%d (maximum %dx%d)", cfg.Width, cfg.Height, MaxDecodeDimension, MaxDecodeDimension)
	}
	return cfg, format, nil
}

// Fetcher downloads image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Resizer scales remote images and caches the JPEG output on disk.
type Resizer struct {
	fetch    Fetcher
	cacheDir string
}

func NewResizer(fetch Fetcher, cacheDir string) *Resizer {
	return &Resizer{fetch: fetch, cacheDir: cacheDir}
}

func cacheKey(url string, w, h int) string {
	sum := sha256.Sum256([]byte(url + "|" + strconv.Itoa(w) + "x" + strconv.Itoa(h)))
	return hex.EncodeToString(sum[:])
}

// Resize returns a JPEG of url scaled toward w x h. cached reports whether
// the result came from disk.
func (r *Resizer) Resize(ctx context.Context, url string, w, h int) (out []byte, cached bool, err error) {
	if w <= 0 || h <= 0 {
		return nil, false, fmt.Errorf("imaging: target size must be positive")
	}
	if w > MaxDecodeDimension || h > MaxDecodeDimension {
		return nil, false, domain.BadRequest(fmt.Sprintf("target size %dx%d exceeds %dx%d", w, h, MaxDecodeDimension, MaxDecodeDimension))
	}
	var path string
	if r.cacheDir != "" {
		path = filepath.Join(r.cacheDir, cacheKey(url, w, h)+".jpg")
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data, true, nil
		}
	}
	src, _, err := r.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, false, err
	}
	out, err = ScaleJPEG(src, w, h)
	if err != nil {
		return nil, false, err
	}
	if path != "" {
		if err := os.MkdirAll(r.cacheDir, 0o755); err == nil {
			_ = os.WriteFile(path, out, 0o644)
		}
	}
	return out, false, nil
}

// ScaleJPEG scales src so it covers w x h while keeping its aspect ratio,
// never enlarging by more than MaxUpscale, and encodes JPEG at quality 90.
// Neither output side exceeds MaxDecodeDimension.
func ScaleJPEG(src []byte, w, h int) ([]byte, error) {
	if _, _, err := checkDecodeSize(src); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	b := img.Bounds()
	finalW, finalH := coverSize(b.Dx(), b.Dy(), w, h)

	dst := image.NewRGBA(image.Rect(0, 0, finalW, finalH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func coverSize(origW, origH, w, h int) (int, int) {
	if origW <= 0 {
		origW = w
	}
	if origH <= 0 {
		origH = h
	}
	scale := math.Max(float64(w)/float64(origW), float64(h)/float64(origH))
	scale = math.Min(scale, MaxUpscale)
	scale = math.Min(scale, float64(MaxDecodeDimension)/float64(max(origW, origH)))
	finalW := int(math.Max(1, math.Round(float64(origW)*scale)))
	finalH := int(math.Max(1, math.Round(float64(origH)*scale)))
	return finalW, finalH
}
