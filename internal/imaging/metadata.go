package imaging

import (
	"bytes"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// Metadata is what the image-metadata endpoint reports.
type Metadata struct {
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Format      string     `json:"format"`
	Size        int        `json:"size"`
	CameraMake  string     `json:"cameraMake,omitempty"`
	CameraModel string     `json:"cameraModel,omitempty"`
	TakenAt     *time.Time `json:"takenAt,omitempty"`
}

// Describe reads dimensions and, when present, EXIF camera details. Images
// without EXIF (PNG, WEBP, stripped JPEG) still report dimensions.
func Describe(data []byte) (Metadata, error) {
	cfg, format, err := checkDecodeSize(data)
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{Width: cfg.Width, Height: cfg.Height, Format: format, Size: len(data)}

	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return md, nil
	}
	md.CameraMake = strings.TrimSpace(exif.Make)
	md.CameraModel = strings.TrimSpace(exif.Model)
	if t := exif.DateTimeOriginal(); !t.IsZero() {
		md.TakenAt = &t
	}
	return md, nil
}
