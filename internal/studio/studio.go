// Package studio orchestrates the upload, analyze and edit flows on top of
// validation, caching, credits, moderation, AI providers and storage.
package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"retouch/internal/cache"
	"retouch/internal/credits"
	"retouch/internal/domain"
	"retouch/internal/imaging"
	"retouch/internal/infra"
	"retouch/internal/intent"
	editor "retouch/internal/providers/image"
	"retouch/internal/ratelimit"
	"retouch/internal/storage"
)

type Validator interface {
	ValidateUpload(size int64, contentType string, data []byte) (imaging.Info, error)
	ValidateImageURL(ctx context.Context, url string) (imaging.Fetched, error)
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, imageURL, locale, mode string) (domain.Analysis, error)
}

type Moderator interface {
	Enabled() bool
	Enforce(ctx context.Context, imageURL string) error
}

type Registry interface {
	Append(item domain.RegistryItem) error
	Remove(publicID string) (bool, error)
}

type Tracker interface {
	Track(event string, props map[string]any)
}

// Options wires the collaborators. Limiter, Moderator, Registry and Tracker
// may be nil.
type Options struct {
	Validator Validator
	Cache     cache.Cache
	Limiter   ratelimit.Limiter
	Credits   *credits.Service
	Moderator Moderator
	Analyzer  Analyzer
	// Editor serves iterate. Direct serves edit and defaults to Editor.
	Editor   editor.Editor
	Direct   editor.Editor
	Store    storage.Store
	Registry Registry
	Tracker  Tracker

	Folder             string
	WatermarkEnabled   bool
	WatermarkText      string
	PrivacyMode        bool
	AnalysisCacheTTL   time.Duration
	GenerationCacheTTL time.Duration
	EditTimeout        time.Duration
	Logger             infra.Logger
}

type Service struct {
	opts   Options
	now    func() time.Time
	logger infra.Logger
}

func New(opts Options) *Service {
	if opts.Direct == nil {
		opts.Direct = opts.Editor
	}
	if opts.AnalysisCacheTTL <= 0 {
		opts.AnalysisCacheTTL = 24 * time.Hour
	}
	if opts.GenerationCacheTTL <= 0 {
		opts.GenerationCacheTTL = time.Hour
	}
	if opts.EditTimeout <= 0 {
		opts.EditTimeout = 2 * time.Minute
	}
	return &Service{opts: opts, now: time.Now, logger: opts.Logger}
}

// UploadResult is returned by Upload.
type UploadResult struct {
	URL      string       `json:"url"`
	PublicID string       `json:"publicId"`
	Hash     string       `json:"hash"`
	Info     imaging.Info `json:"info"`
}

// Upload validates an uploaded file and stores it unchanged.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	info, err := s.opts.Validator.ValidateUpload(int64(len(data)), contentType, data)
	if err != nil {
		return nil, err
	}
	hash := imaging.Hash(data)
	name := strings.TrimSuffix(filename, extOf(filename))
	if name == "" {
		name = "upload"
	}
	stored, err := s.opts.Store.Upload(ctx, data, storage.UploadOptions{
		Name:        fmt.Sprintf("%s_%s", storage.SanitizeName(name), hash[:12]),
		Folder:      s.opts.Folder,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	s.logger.Info().Str("phase", "upload.stored").Str("public_id", stored.PublicID).Int("bytes", len(data)).Msg("upload stored")
	return &UploadResult{URL: stored.URL, PublicID: stored.PublicID, Hash: hash, Info: info}, nil
}

type AnalyzeRequest struct {
	ImageURL  string `json:"imageUrl"`
	Locale    string `json:"locale"`
	Mode      string `json:"mode"`
	SessionID string `json:"sessionId"`
}

type AnalyzeResult struct {
	Analysis   domain.Analysis `json:"analysis"`
	WorkingURL string          `json:"workingUrl"`
	Cached     bool            `json:"cached"`
}

// Analyze charges the analysis cost only for fresh results.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, domain.MissingParameters("imageUrl is required")
	}
	start := s.now()
	locale := orDefault(req.Locale, "es")
	s.logger.Info().Str("phase", "analyze.received").Str("image_url", s.redact(req.ImageURL)).
		Str("locale", locale).Str("session_id", req.SessionID).Msg("analyze request")

	if err := ratelimit.Check(ctx, s.opts.Limiter, req.SessionID); err != nil {
		return nil, err
	}
	fetched, err := s.opts.Validator.ValidateImageURL(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	hash := imaging.Hash(fetched.Data)
	key := cache.AnalysisKey(hash, locale)
	if req.Mode != "" {
		key += ":" + req.Mode
	}

	var hit domain.Analysis
	if s.cacheGet(ctx, key, &hit) {
		s.logger.Info().Str("phase", "analyze.cache_hit").Str("image_hash", hash[:16]).
			Int64("duration_ms", s.now().Sub(start).Milliseconds()).Msg("analysis served from cache")
		return &AnalyzeResult{Analysis: hit, WorkingURL: req.ImageURL, Cached: true}, nil
	}

	if err := s.opts.Credits.Enforce(ctx, req.SessionID, credits.OpAnalyze); err != nil {
		return nil, err
	}
	analysis, err := s.opts.Analyzer.Analyze(ctx, req.ImageURL, locale, req.Mode)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeAnalysisFailed, http.StatusInternalServerError, "analysis failed").WithCause(err)
	}
	if s.opts.Credits.Cost(credits.OpAnalyze) > 0 {
		if _, err := s.opts.Credits.Consume(ctx, req.SessionID, credits.OpAnalyze); err != nil {
			return nil, err
		}
	}
	s.cacheSet(ctx, key, analysis, s.opts.AnalysisCacheTTL)

	s.logger.Info().Str("phase", "analyze.result").Str("image_url", s.redact(req.ImageURL)).
		Int64("duration_ms", s.now().Sub(start).Milliseconds()).Msg("analysis complete")
	return &AnalyzeResult{Analysis: analysis, WorkingURL: req.ImageURL}, nil
}

// AnalysisHint is the part of a previous analysis iterate reads.
type AnalysisHint struct {
	SuggestedText string `json:"suggestedText"`
}

type IterateRequest struct {
	ImageURL     string        `json:"imageUrl"`
	Analysis     *AnalysisHint `json:"analysis,omitempty"`
	UserText     string        `json:"userText"`
	SessionID    string        `json:"sessionId"`
	PrevPublicID string        `json:"prevPublicId"`
	Locale       string        `json:"locale"`
}

type IterateResult struct {
	EditedURL   string            `json:"editedUrl"`
	PublicID    string            `json:"publicId"`
	Note        string            `json:"note,omitempty"`
	Instruction string            `json:"instruction"`
	Intent      domain.EditIntent `json:"intent"`
	Provider    string            `json:"provider,omitempty"`
	Cached      bool              `json:"cached"`
}

// Iterate maps free text onto an edit intent, renders it and replaces the
// previous render of the session.
func (s *Service) Iterate(ctx context.Context, req IterateRequest) (*IterateResult, error) {
	text := strings.TrimSpace(req.UserText)
	if req.Analysis != nil && strings.TrimSpace(req.Analysis.SuggestedText) != "" {
		text = strings.TrimSpace(req.Analysis.SuggestedText)
	}
	if strings.TrimSpace(req.ImageURL) == "" || text == "" {
		return nil, domain.MissingParameters("imageUrl and userText (or analysis.suggestedText) are required")
	}
	start := s.now()
	s.logger.Info().Str("phase", "iterate.received").Str("session_id", req.SessionID).
		Str("image_url", s.redact(req.ImageURL)).Str("instruction", truncate(text, 100)).Msg("iterate request")

	if err := ratelimit.Check(ctx, s.opts.Limiter, req.SessionID); err != nil {
		return nil, err
	}
	fetched, err := s.opts.Validator.ValidateImageURL(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := s.moderate(ctx, req.ImageURL); err != nil {
		return nil, err
	}

	hash := imaging.Hash(fetched.Data)
	key := cache.GenerationKey(hash, text)
	var hit IterateResult
	if s.cacheGet(ctx, key, &hit) {
		s.logger.Info().Str("phase", "iterate.cache_hit").Str("session_id", req.SessionID).
			Str("image_hash", hash[:16]).Msg("render served from cache")
		hit.Cached = true
		return &hit, nil
	}

	if err := s.opts.Credits.Enforce(ctx, req.SessionID, credits.OpGenerate); err != nil {
		return nil, err
	}
	in := intent.MapUserTextToIntent(text, orDefault(req.Locale, "es"))
	s.logger.Info().Str("phase", "iterate.intent").Str("session_id", req.SessionID).
		Interface("intent", in).Msg("intent mapped")

	editCtx, cancel := context.WithTimeout(ctx, s.opts.EditTimeout)
	defer cancel()
	out, err := s.opts.Editor.Edit(editCtx, editor.EditRequest{
		ImageURL:  req.ImageURL,
		Image:     fetched.Data,
		MIME:      fetched.ContentType,
		Intent:    in,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	rendered, err := s.resultBytes(ctx, out)
	if err != nil {
		s.logger.Warn().Err(err).Str("phase", "iterate.fetch_edited_failed").Str("session_id", req.SessionID).Msg("edited image unreachable")
		return nil, fetchEditedError(err)
	}
	rendered = s.watermark(rendered)
	stored, err := s.opts.Store.Upload(ctx, rendered, storage.UploadOptions{
		Name:        fmt.Sprintf("edited_iter_%d", s.now().UnixMilli()),
		Folder:      s.opts.Folder,
		ContentType: http.DetectContentType(rendered),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("phase", "iterate.upload_failed").Str("session_id", req.SessionID).Msg("edited image upload failed")
		return nil, fetchEditedError(err)
	}

	if s.opts.Credits.Cost(credits.OpGenerate) > 0 {
		if _, err := s.opts.Credits.Consume(ctx, req.SessionID, credits.OpGenerate); err != nil {
			return nil, err
		}
	}

	res := &IterateResult{
		EditedURL:   stored.URL,
		PublicID:    stored.PublicID,
		Note:        out.Note,
		Instruction: in.Instruction,
		Intent:      in,
		Provider:    out.Provider,
	}
	s.cacheSet(ctx, key, res, s.opts.GenerationCacheTTL)
	s.register(stored, req.SessionID)
	if req.PrevPublicID != "" && req.PrevPublicID != stored.PublicID {
		s.deletePrevious(ctx, req.PrevPublicID)
	}

	s.logger.Info().Str("phase", "iterate.success").Str("session_id", req.SessionID).
		Str("provider", out.Provider).Int64("duration_ms", s.now().Sub(start).Milliseconds()).Msg("iterate complete")
	return res, nil
}

type EditRequest struct {
	ImageURL  string             `json:"imageUrl"`
	Intent    *domain.EditIntent `json:"intent"`
	SessionID string             `json:"sessionId"`
}

type EditResult struct {
	EditedURL string `json:"editedUrl"`
	Note      string `json:"note,omitempty"`
	PublicID  string `json:"publicId"`
	Credits   int    `json:"credits"`
}

// Edit applies an explicit intent. Credits are taken up front.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if strings.TrimSpace(req.ImageURL) == "" || req.Intent == nil || strings.TrimSpace(req.SessionID) == "" {
		return nil, domain.MissingParameters("imageUrl, intent and sessionId are required")
	}
	consumed, err := s.opts.Credits.Consume(ctx, req.SessionID, credits.OpEdit)
	if err != nil {
		return nil, err
	}
	if !consumed.OK {
		return nil, &domain.CreditError{Required: s.opts.Credits.Cost(credits.OpEdit), Available: consumed.Remaining}
	}
	if err := s.moderate(ctx, req.ImageURL); err != nil {
		return nil, err
	}

	editCtx, cancel := context.WithTimeout(ctx, s.opts.EditTimeout)
	defer cancel()
	out, err := s.opts.Direct.Edit(editCtx, editor.EditRequest{
		ImageURL:  req.ImageURL,
		Intent:    *req.Intent,
		Prompt:    intent.Prompt(*req.Intent),
		SessionID: req.SessionID,
	})
	var rendered []byte
	if err == nil {
		rendered, err = s.resultBytes(ctx, out)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("phase", "edit.failed").Str("session_id", req.SessionID).Msg("edit failed")
		appErr := domain.NewAppError(domain.CodeEditFailed, http.StatusInternalServerError, "edit failed").WithCause(err)
		if out != nil && out.Note != "" {
			appErr.Details = map[string]any{"note": out.Note}
		}
		return nil, appErr
	}

	rendered = s.watermark(rendered)
	stored, err := s.opts.Store.Upload(ctx, rendered, storage.UploadOptions{
		Name:        fmt.Sprintf("edited_%d", s.now().UnixMilli()),
		Folder:      s.opts.Folder,
		ContentType: http.DetectContentType(rendered),
	})
	if err != nil {
		return nil, fmt.Errorf("edit: upload: %w", err)
	}
	s.register(stored, req.SessionID)
	s.track("edit.done", map[string]any{"sessionId": req.SessionID, "source": s.redact(req.ImageURL), "output": stored.URL})

	return &EditResult{EditedURL: stored.URL, Note: out.Note, PublicID: stored.PublicID, Credits: consumed.Remaining}, nil
}

// Cleanup deletes a rendered image from storage and the registry.
func (s *Service) Cleanup(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return domain.MissingParameters("publicId is required")
	}
	if err := s.opts.Store.Delete(ctx, publicID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("cleanup: %w", err)
	}
	if s.opts.Registry != nil {
		if _, err := s.opts.Registry.Remove(publicID); err != nil {
			return fmt.Errorf("cleanup: registry: %w", err)
		}
	}
	return nil
}

func (s *Service) moderate(ctx context.Context, imageURL string) error {
	if s.opts.Moderator == nil || !s.opts.Moderator.Enabled() {
		return nil
	}
	return s.opts.Moderator.Enforce(ctx, imageURL)
}

// resultBytes returns the rendered image, downloading it when the editor
// only answered with a URL.
func (s *Service) resultBytes(ctx context.Context, out *editor.Result) ([]byte, error) {
	if out == nil {
		return nil, errors.New("editor returned no result")
	}
	if len(out.Data) > 0 {
		return out.Data, nil
	}
	if out.URL == "" {
		return nil, errors.New("editor returned neither image bytes nor url")
	}
	data, _, err := s.opts.Validator.Fetch(ctx, out.URL)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Service) watermark(data []byte) []byte {
	if !s.opts.WatermarkEnabled {
		return data
	}
	marked, err := imaging.Watermark(data, s.opts.WatermarkText)
	if err != nil {
		s.logger.Warn().Err(err).Str("phase", "watermark.skipped").Msg("watermark failed, storing original render")
		return data
	}
	return marked
}

func (s *Service) register(stored domain.StoredImage, sessionID string) {
	if s.opts.Registry == nil {
		return
	}
	err := s.opts.Registry.Append(domain.RegistryItem{
		PublicID:  stored.PublicID,
		URL:       stored.URL,
		CreatedAt: s.now().UTC(),
		SessionID: sessionID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("phase", "registry.append_failed").Str("public_id", stored.PublicID).Msg("register generated image")
	}
}

// deletePrevious also tries the underscore variant of ids minted before
// names were sanitized.
func (s *Service) deletePrevious(ctx context.Context, publicID string) {
	ids := []string{publicID}
	if safe := strings.Join(strings.Fields(publicID), "_"); safe != publicID {
		ids = append(ids, safe)
	}
	for _, id := range ids {
		if err := s.opts.Store.Delete(ctx, id); err != nil {
			s.logger.Debug().Err(err).Str("phase", "iterate.prev_delete_failed").Str("public_id", id).Msg("previous render not deleted")
			continue
		}
		if s.opts.Registry != nil {
			_, _ = s.opts.Registry.Remove(id)
		}
	}
}

func (s *Service) track(event string, props map[string]any) {
	if s.opts.Tracker != nil {
		s.opts.Tracker.Track(event, props)
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.opts.Cache == nil {
		return false
	}
	ok, err := s.opts.Cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn().Err(err).Str("phase", "cache.get_failed").Str("key", key).Msg("cache read failed")
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn().Err(err).Str("phase", "cache.set_failed").Str("key", key).Msg("cache write failed")
	}
}

func (s *Service) redact(url string) string {
	if s.opts.PrivacyMode {
		return "[redacted]"
	}
	return url
}

func fetchEditedError(err error) error {
	appErr := domain.NewAppError(domain.CodeFetchEditedImage, http.StatusBadGateway, "failed to fetch edited image").WithCause(err)
	appErr.Details = map[string]any{"detail": err.Error()}
	return appErr
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
