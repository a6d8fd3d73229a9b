package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"

	"retouch/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func serve(status int, contentType string, body []byte) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		h := http.Header{}
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body))}, nil
	})}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !IsInvalidImage(err) {
		t.Fatalf("expected InvalidImageError, got %T %v", err, err)
	}
	return err.(*domain.InvalidImageError).Reason
}

func TestValidateUpload(t *testing.T) {
	v := NewValidator(ValidatorOptions{MaxSizeMB: 1})
	valid := testPNG(t, 300, 300)

	tests := []struct {
		name        string
		size        int64
		contentType string
		data        []byte
		want        string
	}{
		{name: "too large", size: 2 * 1024 * 1024, contentType: "image/png", data: valid, want: "File size exceeds"},
		{name: "wrong mime", size: 100, contentType: "application/octet-stream", data: valid, want: "Invalid file type"},
		{name: "empty buffer", size: 1000, contentType: "image/jpeg", data: nil, want: "corrupted"},
		{name: "garbage", size: 3, contentType: "image/jpeg", data: []byte{1, 2, 3}, want: "corrupted"},
		{name: "too small", size: 100, contentType: "image/png", data: testPNG(t, 100, 100), want: "too small"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ValidateUpload(tc.size, tc.contentType, tc.data)
			if got := reasonOf(t, err); !strings.Contains(got, tc.want) {
				t.Fatalf("reason = %q, want substring %q", got, tc.want)
			}
		})
	}

	info, err := v.ValidateUpload(int64(len(valid)), "image/png", valid)
	if err != nil || info.Width != 300 || info.Format != "png" {
		t.Fatalf("valid upload = %+v %v", info, err)
	}
}

func TestValidateImageURL(t *testing.T) {
	valid := testPNG(t, 300, 300)
	tests := []struct {
		name   string
		client *http.Client
		want   string
	}{
		{name: "not found", client: serve(http.StatusNotFound, "", nil), want: "Failed to fetch image"},
		{name: "pdf", client: serve(http.StatusOK, "application/pdf", []byte("%PDF")), want: "Invalid content type"},
		{name: "too large", client: serve(http.StatusOK, "image/png", testPNG(t, 4200, 300)), want: "too large"},
		{
			name: "network error",
			client: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return nil, io.ErrUnexpectedEOF
			})},
			want: "Failed to validate image URL",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewValidator(ValidatorOptions{MaxSizeMB: 8, HTTPClient: tc.client})
			_, err := v.ValidateImageURL(context.Background(), "https://example.com/img")
			if got := reasonOf(t, err); !strings.Contains(got, tc.want) {
				t.Fatalf("reason = %q, want substring %q", got, tc.want)
			}
		})
	}

	v := NewValidator(ValidatorOptions{MaxSizeMB: 8, HTTPClient: serve(http.StatusOK, "image/png; charset=binary", valid)})
	got, err := v.ValidateImageURL(context.Background(), "https://example.com/valid.png")
	if err != nil {
		t.Fatalf("valid url: %v", err)
	}
	if got.ContentType != "image/png" || got.Info.Height != 300 {
		t.Fatalf("fetched = %+v", got)
	}
}

func TestHashStable(t *testing.T) {
	h := Hash([]byte("hello"))
	if h != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("Hash = %q", h)
	}
}

func TestDescribe(t *testing.T) {
	md, err := Describe(testPNG(t, 320, 240))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if md.Width != 320 || md.Height != 240 || md.Format != "png" || md.CameraMake != "" {
		t.Fatalf("metadata = %+v", md)
	}
	if _, err := Describe([]byte("nope")); err == nil {
		t.Fatalf("expected error for non-image")
	}
}

func TestCoverSizeCapsUpscale(t *testing.T) {
	tests := []struct {
		ow, oh, w, h int
		wantW, wantH int
	}{
		{ow: 1000, oh: 1500, w: 1024, h: 1536, wantW: 1024, wantH: 1536},
		{ow: 100, oh: 100, w: 1000, h: 1000, wantW: 150, wantH: 150},
		{ow: 2000, oh: 1000, w: 500, h: 500, wantW: 1000, wantH: 500},
		{ow: 8000, oh: 100, w: 12000, h: 150, wantW: 8192, wantH: 102},
	}
	for _, tc := range tests {
		w, h := coverSize(tc.ow, tc.oh, tc.w, tc.h)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("coverSize(%d,%d,%d,%d) = %dx%d, want %dx%d", tc.ow, tc.oh, tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
	}
}

type countingFetcher struct {
	data  []byte
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.calls++
	return f.data, "image/png", nil
}

func TestResizerCachesOnDisk(t *testing.T) {
	fetch := &countingFetcher{data: testPNG(t, 200, 100)}
	r := NewResizer(fetch, t.TempDir())
	ctx := context.Background()

	out, cached, err := r.Resize(ctx, "https://example.com/a.png", 100, 100)
	if err != nil || cached {
		t.Fatalf("first Resize: cached=%v err=%v", cached, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Fatalf("output size = %v", img.Bounds())
	}
	_, cached, err = r.Resize(ctx, "https://example.com/a.png", 100, 100)
	if err != nil || !cached || fetch.calls != 1 {
		t.Fatalf("second Resize: cached=%v calls=%d err=%v", cached, fetch.calls, err)
	}
}

func TestOversizedImagesRejectedBeforeDecode(t *testing.T) {
	wide := testPNG(t, MaxDecodeDimension+808, 300)

	if _, err := ScaleJPEG(wide, 13000, 433); !strings.Contains(reasonOf(t, err), "Image too large") {
		t.Fatalf("ScaleJPEG err = %v", err)
	}
	if _, err := Describe(wide); !strings.Contains(reasonOf(t, err), "Image too large") {
		t.Fatalf("Describe err = %v", err)
	}
	if _, err := Watermark(wide, "AI Preview"); !IsInvalidImage(err) {
		t.Fatalf("Watermark err = %v", err)
	}

	fetch := &countingFetcher{data: testPNG(t, 200, 100)}
	_, _, err := NewResizer(fetch, "").Resize(context.Background(), "https://example.com/a.png", 13000, 433)
	var appErr *domain.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusBadRequest {
		t.Fatalf("oversized target err = %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("fetched %d times for an oversized target", fetch.calls)
	}
}

func TestWatermarkKeepsDimensions(t *testing.T) {
	src := testPNG(t, 300, 200)
	out, err := Watermark(src, "AI Preview")
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Fatalf("bounds changed: %v", img.Bounds())
	}
	if bytes.Equal(out, src) {
		t.Fatalf("expected output to differ from input")
	}
	if _, err := Watermark([]byte("x"), "AI"); err == nil {
		t.Fatalf("expected decode error")
	}
}
