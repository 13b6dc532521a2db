package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/metrics"
)

// TokenSource exchanges the long-lived API key for a bearer token. The
// dbapi.Client satisfies this.
type TokenSource interface {
	Login(ctx context.Context, apiKey string) (string, error)
}

// CredentialCache holds this service's own outbound bearer token, shared
// across every request goroutine behind a mutex, and kept fresh by a
// background refresh loop so no request-path goroutine ever blocks on a
// login call.
type CredentialCache struct {
	mu    sync.RWMutex
	token string

	source TokenSource
	apiKey string

	refreshInterval time.Duration
	retryTries      int
	retryDelay      time.Duration
}

// NewCredentialCache builds an empty cache. Call Run in its own goroutine
// before the first Token call is expected to succeed quickly. apiKey must
// be non-empty — an empty long-lived key is a programmer/configuration
// error that should abort startup before reaching here.
func NewCredentialCache(source TokenSource, apiKey string, refreshInterval time.Duration, retryTries int, retryDelay time.Duration) *CredentialCache {
	if apiKey == "" {
		logging.Fatal().Msg("credential cache: long-lived API key must not be empty")
	}
	return &CredentialCache{
		source:          source,
		apiKey:          apiKey,
		refreshInterval: refreshInterval,
		retryTries:      retryTries,
		retryDelay:      retryDelay,
	}
}

// Run performs an initial login, then re-logs in every refreshInterval
// until ctx is cancelled. A failed refresh logs and keeps serving the
// stale token rather than clearing it — a transiently unreachable
// upstream should not take down every in-flight request.
func (c *CredentialCache) Run(ctx context.Context) {
	c.refresh(ctx)

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *CredentialCache) refresh(ctx context.Context) {
	token, err := c.source.Login(ctx, c.apiKey)
	if err != nil {
		logging.Warn().Err(err).Msg("credential cache: refresh failed, keeping previous token")
		metrics.RecordCredentialRefresh(err)
		return
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	metrics.RecordCredentialRefresh(nil)
}

// Token returns the current bearer token. If none has been obtained yet
// (the background refresh hasn't completed its first login), it retries a
// bounded number of times with a fixed delay rather than blocking
// indefinitely or returning an empty credential.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	for attempt := 0; attempt < c.retryTries; attempt++ {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	return "", apperr.Timeout("credential cache: no token available after bounded retry")
}
