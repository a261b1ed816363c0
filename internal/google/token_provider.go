package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
)

// persistingTokenSource writes every newly issued access token back to the
// token file and records refresh metrics.
type persistingTokenSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	path    string
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	file *TokenFile
	last string
}

func newPersistingTokenSource(ctx context.Context, base oauth2.TokenSource, opts Options, tf *TokenFile, current string) *persistingTokenSource {
	return &persistingTokenSource{
		ctx:     ctx,
		base:    base,
		path:    opts.TokenFile,
		metrics: opts.Metrics,
		logger:  opts.logger(),
		file:    tf,
		last:    current,
	}
}

// Token implements oauth2.TokenSource.
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		s.metrics.RecordTokenRefresh(s.ctx, instrumentation.RefreshResultFailure)
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}

	if tok.AccessToken == s.last {
		return tok, nil
	}

	s.last = tok.AccessToken
	s.metrics.RecordTokenRefresh(s.ctx, instrumentation.RefreshResultSuccess)

	s.file.Update(tok)
	if err := WriteTokenFile(s.path, s.file); err != nil {
		// The refreshed token is still usable for this process.
		s.logger.Warn("failed to persist refreshed google token",
			"path", s.path,
			logging.Err(err))
		return tok, nil
	}

	s.logger.Debug("refreshed google token",
		"token", logging.SanitizeToken(tok.AccessToken),
		"expiry", tok.Expiry)
	return tok, nil
}
