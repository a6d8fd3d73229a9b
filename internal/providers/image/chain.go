package image

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/intent"
)

const defaultMaxTries = 3

// ChainOptions tunes retries of each editor in the chain.
type ChainOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	Logger          infra.Logger
}

// Chain tries each editor in order until one returns an image.
type Chain struct {
	editors  []Editor
	maxTries uint
	interval time.Duration
	logger   infra.Logger
}

// NewChain wires editors in priority order. Nil editors are skipped.
func NewChain(opts ChainOptions, editors ...Editor) *Chain {
	c := &Chain{maxTries: opts.MaxTries, interval: opts.InitialInterval, logger: opts.Logger}
	if c.maxTries == 0 {
		c.maxTries = defaultMaxTries
	}
	if c.interval <= 0 {
		c.interval = 500 * time.Millisecond
	}
	for _, e := range editors {
		if e != nil {
			c.editors = append(c.editors, e)
		}
	}
	return c
}

// Len reports how many editors are configured.
func (c *Chain) Len() int { return len(c.editors) }

func (c *Chain) Name() string { return "chain" }

// Edit returns domain.ErrServiceUnavailable when no editor is configured or
// every editor answered 503 or was unreachable.
func (c *Chain) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if len(c.editors) == 0 {
		c.logger.Warn().Str("phase", "editor.unavailable").Msg("no image editor configured")
		return nil, domain.ErrServiceUnavailable
	}
	if req.Prompt == "" {
		req.Prompt = intent.Prompt(req.Intent)
	}

	var lastErr error
	allUnavailable := true
	for _, ed := range c.editors {
		start := time.Now()
		res, err := c.editWithRetry(ctx, ed, req)
		if err == nil {
			if res.Provider == "" {
				res.Provider = ed.Name()
			}
			c.logger.Info().
				Str("phase", "editor.success").
				Str("provider", res.Provider).
				Int64("elapsed_ms", time.Since(start).Milliseconds()).
				Msg("image edited")
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn().Err(err).Str("phase", "editor.error").Str("provider", ed.Name()).Msg("image editor failed")
		if !unavailable(err) {
			allUnavailable = false
		}
		lastErr = err
	}
	if allUnavailable {
		return nil, domain.ErrServiceUnavailable
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, lastErr)
}

func (c *Chain) editWithRetry(ctx context.Context, ed Editor, req EditRequest) (*Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	return backoff.Retry(ctx, func() (*Result, error) {
		res, err := ed.Edit(ctx, req)
		if err == nil {
			return res, nil
		}
		if Transient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
}

// Transient reports whether err is worth retrying: 429, 5xx gateway errors
// or a network failure.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	switch statusOf(err) {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ Editor = (*Chain)(nil)

func unavailable(err error) bool {
	if statusOf(err) == http.StatusServiceUnavailable {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
