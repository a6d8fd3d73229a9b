// Package moderation screens images before they are sent to an editor.
package moderation

import (
	"context"
	"strings"

	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/providers/vision"
)

// Block reasons.
const (
	ReasonNSFW      = "nsfw"
	ReasonMultiFace = "multi_face"
	ReasonMinor     = "minor"
)

const minorLabelScore = 0.9

var minorLabels = map[string]struct{}{
	"child":   {},
	"baby":    {},
	"toddler": {},
	"kid":     {},
	"infant":  {},
}

// Annotator is the subset of the Vision client moderation needs.
type Annotator interface {
	Enabled() bool
	Annotate(ctx context.Context, img vision.Image, features ...string) (*vision.Annotation, error)
}

// Fetcher downloads image bytes; used to confirm reachability when no Vision
// key is configured.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Result struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}

type Moderator struct {
	enabled bool
	vision  Annotator
	fetch   Fetcher
	logger  infra.Logger
}

func New(enabled bool, annotator Annotator, fetch Fetcher, logger infra.Logger) *Moderator {
	return &Moderator{enabled: enabled, vision: annotator, fetch: fetch, logger: logger}
}

func (m *Moderator) Enabled() bool { return m != nil && m.enabled }

// Check classifies imageURL. When Vision is unavailable the image is allowed
// through after a reachability probe.
func (m *Moderator) Check(ctx context.Context, imageURL string) Result {
	allowed := Result{Allowed: true, Reasons: []string{}}
	if !m.Enabled() {
		return allowed
	}

	if m.vision == nil || !m.vision.Enabled() {
		m.logger.Warn().Str("phase", "moderation.no_access_token").Msg("vision not configured, using fallback")
		return m.fallback(ctx, imageURL)
	}

	ann, err := m.vision.Annotate(ctx, vision.Image{URI: imageURL},
		vision.FeatureSafeSearch, vision.FeatureFaceDetection, vision.FeatureLabelDetection)
	if err != nil {
		m.logger.Warn().Err(err).Str("phase", "moderation.error").Msg("moderation provider failed")
		return m.fallback(ctx, imageURL)
	}

	reasons := Classify(ann)
	if len(reasons) > 0 {
		m.logger.Info().Str("phase", "moderation.blocked").Strs("reasons", reasons).Msg("image blocked")
		return Result{Allowed: false, Reasons: reasons}
	}
	m.logger.Debug().Str("phase", "moderation.passed").Msg("image passed moderation")
	return allowed
}

// Enforce returns a ModerationError when imageURL is blocked.
func (m *Moderator) Enforce(ctx context.Context, imageURL string) error {
	res := m.Check(ctx, imageURL)
	if res.Allowed {
		return nil
	}
	return &domain.ModerationError{Reasons: res.Reasons}
}

func (m *Moderator) fallback(ctx context.Context, imageURL string) Result {
	if m.fetch != nil {
		if _, _, err := m.fetch.Fetch(ctx, imageURL); err != nil {
			m.logger.Warn().Err(err).Str("phase", "moderation.fallback_unreachable").Msg("image probe failed")
			return Result{Allowed: true, Reasons: []string{}}
		}
	}
	m.logger.Debug().Str("phase", "moderation.fallback_passed").Msg("image passed fallback moderation")
	return Result{Allowed: true, Reasons: []string{}}
}

// Classify turns a Vision annotation into block reasons.
func Classify(ann *vision.Annotation) []string {
	if ann == nil {
		return nil
	}
	var reasons []string
	if ss := ann.SafeSearch; ss != nil && (vision.AtLeastLikely(ss.Adult) || vision.AtLeastLikely(ss.Racy)) {
		reasons = append(reasons, ReasonNSFW)
	}
	if len(ann.Faces) > 1 {
		reasons = append(reasons, ReasonMultiFace)
	}
	for _, l := range ann.Labels {
		if _, ok := minorLabels[strings.ToLower(strings.TrimSpace(l.Description))]; ok && l.Score >= minorLabelScore {
			reasons = append(reasons, ReasonMinor)
			break
		}
	}
	return reasons
}
