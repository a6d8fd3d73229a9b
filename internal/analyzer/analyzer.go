// Package analyzer describes a portrait or full-body photo, falling back from
// the Gemini model to Vision heuristics and finally to a canned advisory.
package analyzer

import (
	"context"
	"math"
	"strings"
	"time"

	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/middleware"
	"retouch/internal/providers/gemini"
	"retouch/internal/providers/vision"
)

// Provider names recorded on the analysis.
const (
	ProviderGemini  = "gemini"
	ProviderVision  = "vision"
	ProviderREST    = "gemini-rest"
	ProviderDefault = "default"
)

type JSONModel interface {
	GenerateJSON(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Annotator interface {
	Enabled() bool
	Annotate(ctx context.Context, img vision.Image, features ...string) (*vision.Annotation, error)
}

type Advisor interface {
	Enabled() bool
	Advise(ctx context.Context, req gemini.AdviceRequest) (*gemini.Advice, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Options struct {
	Model   JSONModel
	Vision  Annotator
	Advisor Advisor
	Fetch   Fetcher
	Timeout time.Duration
	Logger  infra.Logger
}

type Analyzer struct {
	model   JSONModel
	vision  Annotator
	advisor Advisor
	fetch   Fetcher
	timeout time.Duration
	logger  infra.Logger
}

func New(opts Options) *Analyzer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Analyzer{
		model:   opts.Model,
		vision:  opts.Vision,
		advisor: opts.Advisor,
		fetch:   opts.Fetch,
		timeout: timeout,
		logger:  opts.Logger,
	}
}

// NormalizeMode returns body for "body" and face for anything else.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), domain.ModeBody) {
		return domain.ModeBody
	}
	return domain.ModeFace
}

// Analyze runs the provider chain for imageURL. It only fails when the
// caller's context is done.
func (a *Analyzer) Analyze(ctx context.Context, imageURL, locale, mode string) (domain.Analysis, error) {
	locale = middleware.NormalizeLocale(locale)
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Info().Str("phase", "gemini.analyze.start").Str("locale", locale).Str("mode", NormalizeMode(mode)).Msg("analysis started")

	var out domain.Analysis
	if NormalizeMode(mode) == domain.ModeBody {
		out = domain.Analysis{Body: a.analyzeBody(callCtx, imageURL, locale)}
	} else {
		out = domain.Analysis{Face: a.analyzeFace(callCtx, imageURL, locale)}
	}
	if err := ctx.Err(); err != nil {
		return domain.Analysis{}, err
	}
	return out, nil
}

func (a *Analyzer) loadImage(ctx context.Context, imageURL string) ([]byte, string, bool) {
	if a.fetch == nil {
		return nil, "", false
	}
	data, mime, err := a.fetch.Fetch(ctx, imageURL)
	if err != nil {
		a.logger.Warn().Err(err).Str("phase", "gemini.analyze.fetch_failed").Msg("could not fetch image for analysis")
		return nil, "", false
	}
	return data, mime, true
}

type rawFace struct {
	FaceShape string `json:"face_shape"`
	SkinTone  string `json:"skin_tone"`
	Hair      struct {
		Length  string `json:"length"`
		Color   string `json:"color"`
		Texture string `json:"texture"`
	} `json:"hair"`
	Beard struct {
		Style   string `json:"style"`
		Density string `json:"density"`
	} `json:"beard"`
	Lighting string `json:"lighting"`
	Pose     string `json:"pose"`
	Quality  struct {
		Blur       string `json:"blur"`
		Resolution string `json:"resolution"`
	} `json:"quality"`
	HaircutRecommendation string `json:"haircutRecommendation"`
	BeardRecommendation   string `json:"beardRecommendation"`
	SuggestedText         string `json:"suggestedText"`
}

func (a *Analyzer) analyzeFace(ctx context.Context, imageURL, locale string) *domain.FaceAnalysis {
	if a.model != nil {
		if fa, ok := a.faceFromModel(ctx, imageURL, locale); ok {
			return fa
		}
	}

	fa := defaultFace(locale)
	var visionSummary *vision.Annotation
	if a.vision != nil && a.vision.Enabled() {
		ann, err := a.vision.Annotate(ctx, vision.Image{URI: imageURL},
			vision.FeatureFaceDetection, vision.FeatureSafeSearch, vision.FeatureImageProperties)
		if err != nil {
			a.logger.Warn().Err(err).Str("phase", "vision.error").Msg("vision analysis failed")
		} else {
			visionSummary = ann
			if stop := applyVision(fa, ann, locale); stop {
				return fa
			}
		}
	}

	if a.advisor != nil && a.advisor.Enabled() {
		a.logger.Info().Str("phase", "gemini.call").Msg("requesting rest advisory")
		adv, err := a.advisor.Advise(ctx, gemini.AdviceRequest{ImageURL: imageURL, Prompt: gemini.AdvicePrompt(locale), VisionSummary: visionSummary})
		if err != nil {
			a.logger.Warn().Err(err).Str("phase", "gemini.call.error").Msg("rest advisory failed")
		} else {
			mergeAdvice(fa, adv)
			return fa
		}
	}

	if fa.Advisory == nil || fa.Advisory.Summary == "" {
		fa.Advisory = &domain.Advisory{Summary: msgDefaultAdvisory.in(locale), Recommendations: []string{}}
		fa.SuggestedText = msgDefaultSuggested.in(locale)
	}
	return fa
}

func (a *Analyzer) faceFromModel(ctx context.Context, imageURL, locale string) (*domain.FaceAnalysis, bool) {
	data, mime, ok := a.loadImage(ctx, imageURL)
	if !ok {
		return nil, false
	}
	text, err := a.model.GenerateJSON(ctx, facePrompt(locale), data, mime)
	if err != nil {
		a.logger.Warn().Err(err).Str("phase", "gemini.analyze.error").Msg("gemini analysis failed")
		return nil, false
	}
	raw, err := gemini.ParsePayload[rawFace](text)
	if err != nil {
		a.logger.Warn().Err(err).Str("phase", "gemini.analyze.error").Msg("gemini returned invalid json")
		return nil, false
	}
	a.logger.Debug().Str("phase", "gemini.analyze.parsed").Msg("gemini analysis parsed")

	var recs []string
	for _, r := range []string{raw.HaircutRecommendation, raw.BeardRecommendation} {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}
	advisoryText := strings.Join(recs, "\n\n")
	suggested := strings.TrimSpace(raw.SuggestedText)
	if suggested == "" {
		suggested = advisoryText
	}
	if suggested == "" {
		suggested = msgDefaultSuggested.in(locale)
	}
	if recs == nil {
		recs = []string{}
	}
	fa := &domain.FaceAnalysis{
		FaceShape: NormalizeValue(raw.FaceShape),
		SkinTone:  strings.TrimSpace(raw.SkinTone),
		Hair: domain.Hair{
			Length:  orDefault(NormalizeValue(raw.Hair.Length), "medium"),
			Color:   orDefault(strings.TrimSpace(raw.Hair.Color), msgDefaultHairColor.in(locale)),
			Texture: NormalizeValue(raw.Hair.Texture),
		},
		Beard: domain.Beard{
			Style:   orDefault(strings.TrimSpace(raw.Beard.Style), "none"),
			Density: NormalizeValue(raw.Beard.Density),
		},
		Lighting:      orDefault(NormalizeValue(raw.Lighting), "good"),
		Pose:          orDefault(NormalizeValue(raw.Pose), "frontal"),
		Quality:       domain.Quality{Blur: orDefault(NormalizeValue(raw.Quality.Blur), "low"), Resolution: orDefault(NormalizeValue(raw.Quality.Resolution), "medium")},
		Advisory:      &domain.Advisory{Summary: advisoryText, Recommendations: recs},
		SuggestedText: suggested,
		Provider:      ProviderGemini,
	}
	return fa, true
}

func defaultFace(locale string) *domain.FaceAnalysis {
	return &domain.FaceAnalysis{
		FaceShape:     "oval",
		Hair:          domain.Hair{Length: "medium", Color: msgDefaultHairColor.in(locale)},
		Beard:         domain.Beard{Style: "none", Density: "low"},
		Lighting:      "good",
		Pose:          "frontal",
		Quality:       domain.Quality{Blur: "low", Resolution: "medium"},
		SuggestedText: msgBaseSuggested.in(locale),
		Provider:      ProviderDefault,
	}
}

// applyVision folds Vision heuristics into fa. It reports true when the image
// cannot be used and the chain should stop.
func applyVision(fa *domain.FaceAnalysis, ann *vision.Annotation, locale string) bool {
	fa.Provider = ProviderVision
	if ss := ann.SafeSearch; ss != nil && (vision.AtLeastLikely(ss.Adult) || ss.Adult == vision.Possible) {
		fa.Blocked = true
		fa.Warnings = append(fa.Warnings, msgBlocked.in(locale))
		fa.Advisory = &domain.Advisory{Summary: msgBlocked.in(locale), Recommendations: []string{}}
		return true
	}
	switch {
	case len(ann.Faces) == 0:
		fa.Warnings = append(fa.Warnings, msgNoFace.in(locale))
		fa.Advisory = &domain.Advisory{Summary: msgNoFace.in(locale), Recommendations: []string{}}
		return true
	case len(ann.Faces) > 1:
		fa.Warnings = append(fa.Warnings, msgMultiFace.in(locale))
		fa.Advisory = &domain.Advisory{Summary: msgMultiFace.in(locale), Recommendations: []string{}}
		return true
	}

	face := ann.Faces[0]
	if math.Abs(face.PanAngle) < 15 && math.Abs(face.RollAngle) < 12 {
		fa.Pose = "frontal"
	} else {
		fa.Pose = "side"
	}
	if c, ok := ann.DominantColor(); ok {
		fa.Hair.Color = hairColorNames[HairColorFromRGB(c.Red, c.Green, c.Blue)].in(locale)
	}
	fa.Advisory = &domain.Advisory{Summary: msgVisionAdvisory.in(locale), Recommendations: []string{}}
	return false
}

// HairColorFromRGB maps a dominant color to a coarse hair color name.
func HairColorFromRGB(r, g, b float64) string {
	switch {
	case r > 150 && g < 110 && b < 110:
		return "red"
	case r > 140 && g > 120 && b < 100:
		return "blond"
	case r < 80 && g < 80 && b < 80:
		return "black"
	default:
		return "brown"
	}
}

func mergeAdvice(fa *domain.FaceAnalysis, adv *gemini.Advice) {
	if adv == nil {
		return
	}
	fa.Provider = ProviderREST
	if adv.AdvisoryText != "" {
		if fa.Advisory == nil {
			fa.Advisory = &domain.Advisory{Recommendations: []string{}}
		}
		fa.Advisory.Summary = adv.AdvisoryText
	}
	if adv.Confidence > 0 && fa.Advisory != nil {
		fa.Advisory.Confidence = adv.Confidence
	}
	if adv.Cut != nil && adv.Cut.Length != "" {
		fa.Hair.Length = NormalizeValue(adv.Cut.Length)
	}
	if adv.Beard != nil {
		if adv.Beard.Style != "" {
			fa.Beard.Style = adv.Beard.Style
		}
		if adv.Beard.Density != "" {
			fa.Beard.Density = NormalizeValue(adv.Beard.Density)
		}
	}
	if fa.Advisory != nil {
		fa.Advisory.Recommendations = append(fa.Advisory.Recommendations, adv.Accessories...)
	}
}

func (a *Analyzer) analyzeBody(ctx context.Context, imageURL, locale string) *domain.BodyAnalysis {
	if a.model != nil {
		if data, mime, ok := a.loadImage(ctx, imageURL); ok {
			text, err := a.model.GenerateJSON(ctx, bodyPrompt(locale), data, mime)
			if err != nil {
				a.logger.Warn().Err(err).Str("phase", "gemini.analyze.error").Msg("gemini body analysis failed")
			} else if body, err := gemini.ParsePayload[domain.BodyAnalysis](text); err != nil {
				a.logger.Warn().Err(err).Str("phase", "gemini.analyze.error").Msg("gemini returned invalid json")
			} else {
				body.Mode = domain.ModeBody
				body.Provider = ProviderGemini
				if strings.TrimSpace(body.SuggestedText) == "" {
					body.SuggestedText = msgBodySuggested.in(locale)
				}
				fillBodyDefaults(&body)
				return &body
			}
		}
	}
	body := defaultBody(locale)
	return &body
}

func defaultBody(locale string) domain.BodyAnalysis {
	body := domain.BodyAnalysis{
		Mode:        domain.ModeBody,
		BodyType:    "rectangle",
		Proportions: domain.Proportions{Shoulders: "medium", Waist: "medium", Hips: "medium", Legs: "medium"},
		Posture:     "upright",
		Clothing:    domain.Clothing{Style: "casual", Fit: "regular", Colors: []string{}},
		BestSilhouettes: []string{
			"straight", "structured",
		},
		RecommendedItems: []domain.RecommendedItem{{
			Category: "outerwear",
			Item:     "jacket",
			Color:    "neutral",
			Fit:      "regular",
			Reason:   msgBodySuggested.in(locale),
		}},
		StyleTips:     []string{},
		SuggestedText: msgBodySuggested.in(locale),
		Provider:      ProviderDefault,
	}
	return body
}

func fillBodyDefaults(b *domain.BodyAnalysis) {
	if b.Clothing.Colors == nil {
		b.Clothing.Colors = []string{}
	}
	if b.BestSilhouettes == nil {
		b.BestSilhouettes = []string{}
	}
	if b.RecommendedItems == nil {
		b.RecommendedItems = []domain.RecommendedItem{}
	}
	if b.StyleTips == nil {
		b.StyleTips = []string{}
	}
}

var valueAliases = map[string]string{
	"corto":   "short",
	"medio":   "medium",
	"largo":   "long",
	"baja":    "low",
	"bajo":    "low",
	"media":   "medium",
	"alta":    "high",
	"alto":    "high",
	"buena":   "good",
	"regular": "fair",
	"pobre":   "poor",
	"ladeado": "side",
}

// NormalizeValue lowercases v and maps Spanish enum tokens onto the English
// values used in responses.
func NormalizeValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if mapped, ok := valueAliases[v]; ok {
		return mapped
	}
	return v
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
