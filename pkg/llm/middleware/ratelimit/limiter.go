// Package ratelimit throttles llm calls with a tokens-per-minute bucket and a concurrency cap.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"legalflow/pkg/llm"
	"legalflow/pkg/logx"
	"legalflow/pkg/utils"
)

// ErrRequestTooLarge is returned when a single request needs more tokens than the bucket holds.
var ErrRequestTooLarge = errors.New("request exceeds rate limit capacity")

// Config sets the limits. Zero disables the corresponding limit.
type Config struct {
	TokensPerMinute int `json:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency"`
}

// Enabled reports whether any limit is set.
func (c Config) Enabled() bool { return c.TokensPerMinute > 0 || c.MaxConcurrency > 0 }

// Stats is a snapshot of the limiter.
type Stats struct {
	Model           string `json:"model"`
	AvailableTokens int    `json:"available_tokens"`
	Capacity        int    `json:"capacity"`
	Active          int    `json:"active"`
	MaxConcurrency  int    `json:"max_concurrency"`
	TokenLimitHits  int64  `json:"token_limit_hits"`
	ConcurrencyHits int64  `json:"concurrency_hits"`
}

// Limiter is a token bucket refilled continuously at TokensPerMinute, combined with a semaphore.
//
//nolint:govet // fieldalignment: grouped by concern
type Limiter struct {
	mu     sync.Mutex
	model  string
	cfg    Config
	now    func() time.Time
	poll   time.Duration
	logger *logx.Logger

	available  float64
	lastRefill time.Time
	active     int

	tokenLimitHits  int64
	concurrencyHits int64
}

// NewLimiter returns a limiter that starts with a full bucket.
func NewLimiter(model string, cfg Config) *Limiter {
	return newLimiter(model, cfg, time.Now)
}

func newLimiter(model string, cfg Config, now func() time.Time) *Limiter {
	return &Limiter{
		model:      model,
		cfg:        cfg,
		now:        now,
		poll:       100 * time.Millisecond,
		logger:     logx.NewLogger("ratelimit"),
		available:  float64(cfg.TokensPerMinute),
		lastRefill: now(),
	}
}

// Acquire blocks until tokens and a concurrency slot are both available, then takes them. The
// returned release must be called when the request finishes. Tokens are not refunded.
func (l *Limiter) Acquire(ctx context.Context, tokens int) (func(), error) {
	if l.cfg.TokensPerMinute > 0 && tokens > l.cfg.TokensPerMinute {
		return nil, fmt.Errorf("%w: %d tokens requested, %d per minute allowed", ErrRequestTooLarge, tokens, l.cfg.TokensPerMinute)
	}
	logged := false
	for {
		l.mu.Lock()
		l.refill()
		hasTokens := l.cfg.TokensPerMinute <= 0 || l.available >= float64(tokens)
		hasSlot := l.cfg.MaxConcurrency <= 0 || l.active < l.cfg.MaxConcurrency
		if hasTokens && hasSlot {
			if l.cfg.TokensPerMinute > 0 {
				l.available -= float64(tokens)
			}
			l.active++
			l.mu.Unlock()
			var once sync.Once
			return func() { once.Do(l.release) }, nil
		}
		if !logged {
			if !hasTokens {
				l.tokenLimitHits++
				l.logger.Info("%s token limit hit, waiting for refill (need %d, have %.0f)", l.model, tokens, l.available)
			}
			if !hasSlot {
				l.concurrencyHits++
				l.logger.Info("%s concurrency limit hit, waiting for slot (active %d/%d)", l.model, l.active, l.cfg.MaxConcurrency)
			}
			logged = true
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck // cancellation
		case <-time.After(l.poll):
		}
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	if l.cfg.TokensPerMinute <= 0 {
		return
	}
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.lastRefill = now
	l.available += elapsed.Minutes() * float64(l.cfg.TokensPerMinute)
	if capacity := float64(l.cfg.TokensPerMinute); l.available > capacity {
		l.available = capacity
	}
}

// Stats returns a snapshot.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return Stats{
		Model:           l.model,
		AvailableTokens: int(l.available),
		Capacity:        l.cfg.TokensPerMinute,
		Active:          l.active,
		MaxConcurrency:  l.cfg.MaxConcurrency,
		TokenLimitHits:  l.tokenLimitHits,
		ConcurrencyHits: l.concurrencyHits,
	}
}

// EstimateTokens is the bucket cost of req: the counted prompt plus the reply budget.
func EstimateTokens(req llm.Request) int {
	return utils.CountTokensSimple(req.SystemPrompt+"\n"+req.UserText()) + req.MaxTokens
}
