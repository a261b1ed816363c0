// Package web downloads article pages and newsletter images.
package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/newsletter"
	"github.com/teemow/newsletterpost/internal/retry"
)

const (
	// DefaultUserAgent identifies the fetcher to article hosts.
	DefaultUserAgent = "newsletterpost/1.0 (+https://github.com/teemow/newsletterpost)"

	// DefaultMaxPageSize bounds how much of an article page is read.
	DefaultMaxPageSize = 10 << 20

	// DefaultMaxImageSize bounds image downloads. LinkedIn rejects larger feed images anyway.
	DefaultMaxImageSize = 20 << 20

	defaultImageExt = "jpg"
)

// Config configures a Fetcher.
type Config struct {
	HTTPClient   *http.Client
	UserAgent    string
	TextLimit    int
	MaxImageSize int64
	Retry        retry.Policy
	Metrics      *instrumentation.Metrics
	Logger       *slog.Logger
}

// Fetcher performs outbound GET requests with retries.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	textLimit    int
	maxImageSize int64
	policy       retry.Policy
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// Image is a downloaded image held in memory.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewFetcher creates a Fetcher, filling unset fields with defaults.
func NewFetcher(cfg Config) *Fetcher {
	f := &Fetcher{
		client:       cfg.HTTPClient,
		userAgent:    cfg.UserAgent,
		textLimit:    cfg.TextLimit,
		maxImageSize: cfg.MaxImageSize,
		policy:       cfg.Retry,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxImageSize <= 0 {
		f.maxImageSize = DefaultMaxImageSize
	}
	if f.policy.MaxTries == 0 {
		f.policy = retry.DefaultPolicy()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With(logging.Service(instrumentation.ServiceWeb))
	return f
}

// FetchText downloads a page and returns its visible text, truncated to the
// configured limit.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	body, _, err := f.get(ctx, instrumentation.OperationGet, pageURL, DefaultMaxPageSize)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}

	text, err := newsletter.PageText(string(body))
	if err != nil {
		return "", err
	}
	return newsletter.Truncate(text, f.textLimit), nil
}

// DownloadImage downloads an image into memory. The filename is
// post_image.<ext> with the extension taken from the URL path.
func (f *Fetcher) DownloadImage(ctx context.Context, imageURL string) (*Image, error) {
	body, contentType, err := f.get(ctx, instrumentation.OperationDownload, imageURL, f.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	return &Image{
		Filename:    ImageFilename(imageURL),
		ContentType: contentType,
		Data:        body,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, operation, rawURL string, limit int64) ([]byte, string, error) {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceWeb, operation,
		instrumentation.NewSpanAttributeBuilder().WithURL(rawURL).Build()...)
	start := time.Now()

	policy := f.policy
	policy.OnRetry = func(err error, next time.Duration) {
		f.logger.Warn("request failed, retrying",
			logging.URL(rawURL),
			slog.Duration("backoff", next),
			logging.Err(err))
	}

	type result struct {
		body        []byte
		contentType string
	}
	res, err := retry.Do(ctx, policy, nil, func(ctx context.Context) (result, error) {
		body, ct, err := f.getOnce(ctx, rawURL, limit)
		return result{body, ct}, err
	})

	f.metrics.RecordAPIOperation(ctx, instrumentation.ServiceWeb, operation, instrumentation.StatusFor(err), time.Since(start))
	instrumentation.EndSpan(span, err)
	return res.body, res.contentType, err
}

func (f *Fetcher) getOnce(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &retry.StatusError{
			Method:     http.MethodGet,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       retry.TruncateBody(snippet, 256),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("response from %s exceeds %d bytes", rawURL, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// ImageFilename derives the upload filename from an image URL.
func ImageFilename(imageURL string) string {
	ext := defaultImageExt
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), ".")); validExt(e) {
			ext = e
		}
	}
	return "post_image." + ext
}

func validExt(ext string) bool {
	if ext == "" || len(ext) > 5 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
