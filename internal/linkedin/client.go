package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/retry"
)

const (
	// DefaultBaseURL is the LinkedIn v2 REST API.
	DefaultBaseURL = "https://api.linkedin.com/v2"

	// DefaultMediaTitle is the title attached to uploaded images.
	DefaultMediaTitle = "LinkedIn Post"

	// DefaultMediaDescription is the description attached to uploaded images.
	DefaultMediaDescription = "Posted via linkedin"

	restliProtocolVersion = "2.0.0"
	maxErrorBody          = 512
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// Config configures a Client.
type Config struct {
	AccessToken      string
	OwnerURN         string
	BaseURL          string
	MediaTitle       string
	MediaDescription string
	HTTPClient       *http.Client
	Retry            retry.Policy
	Metrics          *instrumentation.Metrics
	Logger           *slog.Logger
}

// Client talks to the LinkedIn API on behalf of one member or organization.
type Client struct {
	token            string
	owner            string
	baseURL          string
	mediaTitle       string
	mediaDescription string
	http             *http.Client
	policy           retry.Policy
	metrics          *instrumentation.Metrics
	logger           *slog.Logger
}

// Image is the binary payload attached to a post.
type Image struct {
	Filename string
	Data     []byte
}

// Upload is a registered but not yet filled image slot.
type Upload struct {
	AssetURN  string
	UploadURL string
}

// Post is the content of a UGC post. An empty AssetURN makes a text-only post.
type Post struct {
	Text             string
	AssetURN         string
	MediaTitle       string
	MediaDescription string
}

// APIError is returned when LinkedIn answers with an unexpected status.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("linkedin %s failed with status %d", e.Operation, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable reports whether the status is worth another attempt.
func (e *APIError) Retryable() bool {
	return retry.RetryableStatus(e.StatusCode)
}

// NewClient creates a Client. Access token and owner URN are required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("linkedin: access token is required")
	}
	if cfg.OwnerURN == "" {
		return nil, errors.New("linkedin: owner URN is required")
	}

	c := &Client{
		token:            cfg.AccessToken,
		owner:            cfg.OwnerURN,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		mediaTitle:       cfg.MediaTitle,
		mediaDescription: cfg.MediaDescription,
		http:             cfg.HTTPClient,
		policy:           cfg.Retry,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.mediaTitle == "" {
		c.mediaTitle = DefaultMediaTitle
	}
	if c.mediaDescription == "" {
		c.mediaDescription = DefaultMediaDescription
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.policy.MaxTries == 0 {
		c.policy = retry.DefaultPolicy()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(logging.Service(instrumentation.ServiceLinkedIn))
	return c, nil
}

// Publish posts text with an optional image and returns the post ID.
func (c *Client) Publish(ctx context.Context, text string, image *Image) (string, error) {
	post := Post{Text: text}

	if image != nil && len(image.Data) > 0 {
		c.logger.Debug("registering image upload")
		upload, err := c.RegisterImageUpload(ctx)
		if err != nil {
			return "", err
		}

		c.logger.Debug("uploading image", slog.String("filename", image.Filename), slog.Int("bytes", len(image.Data)))
		if err := c.UploadImage(ctx, upload.UploadURL, image); err != nil {
			return "", err
		}
		post.AssetURN = upload.AssetURN
	}

	c.logger.Debug("creating post", slog.Bool("with_image", post.AssetURN != ""))
	id, err := c.CreatePost(ctx, post)
	if err != nil {
		return "", err
	}
	c.logger.Info("post created", slog.String("post_id", id))
	return id, nil
}

// RegisterImageUpload reserves an image asset owned by the configured URN.
func (c *Client) RegisterImageUpload(ctx context.Context) (*Upload, error) {
	body := registerUploadRequest{
		RegisterUploadRequest: registerUploadBody{
			Recipes: []string{imageRecipe},
			Owner:   c.owner,
			ServiceRelationships: []serviceRelationship{{
				RelationshipType: ownerRelationship,
				Identifier:       userGeneratedOrigin,
			}},
		},
	}

	var out registerUploadResponse
	err := c.observe(ctx, instrumentation.OperationRegister, func(ctx context.Context) error {
		resp, err := c.doJSON(ctx, instrumentation.OperationRegister, c.baseURL+"/assets?action=registerUpload", body, nil, retry.IsTransient)
		if err != nil {
			return err
		}
		return decode(resp, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register image upload: %w", err)
	}

	mech, ok := out.Value.UploadMechanism[uploadMechanismKey]
	if out.Value.Asset == "" || !ok || mech.UploadURL == "" {
		return nil, errors.New("failed to register image upload: response is missing asset or upload URL")
	}
	return &Upload{AssetURN: out.Value.Asset, UploadURL: mech.UploadURL}, nil
}

// UploadImage PUTs the image bytes to an upload URL from RegisterImageUpload.
func (c *Client) UploadImage(ctx context.Context, uploadURL string, image *Image) error {
	if image == nil || len(image.Data) == 0 {
		return errors.New("failed to upload image: image is empty")
	}
	contentType := ContentType(image.Filename)

	err := c.observe(ctx, instrumentation.OperationUpload, func(ctx context.Context) error {
		_, err := retry.Do(ctx, c.retryPolicy(instrumentation.OperationUpload), nil, func(ctx context.Context) (struct{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(image.Data))
			if err != nil {
				return struct{}{}, err
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Content-Type", contentType)

			resp, err := c.http.Do(req)
			if err != nil {
				return struct{}{}, err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return struct{}{}, apiError(instrumentation.OperationUpload, resp)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			return struct{}{}, nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	return nil
}

// CreatePost publishes a UGC post and returns its ID.
func (c *Client) CreatePost(ctx context.Context, post Post) (string, error) {
	content := shareContent{
		ShareCommentary:    textValue{Text: post.Text},
		ShareMediaCategory: CategoryNone,
	}
	if post.AssetURN != "" {
		title, description := post.MediaTitle, post.MediaDescription
		if title == "" {
			title = c.mediaTitle
		}
		if description == "" {
			description = c.mediaDescription
		}
		content.ShareMediaCategory = CategoryImage
		content.Media = []shareMedia{{
			Status:      mediaStatusReady,
			Description: textValue{Text: description},
			Media:       post.AssetURN,
			Title:       textValue{Text: title},
		}}
	}

	body := ugcPost{
		Author:          c.owner,
		LifecycleState:  lifecyclePublished,
		SpecificContent: map[string]shareContent{shareContentKey: content},
		Visibility:      map[string]string{visibilityKey: visibilityPublic},
	}
	headers := map[string]string{"X-Restli-Protocol-Version": restliProtocolVersion}

	var id string
	err := c.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		resp, err := c.doJSON(ctx, instrumentation.OperationCreate, c.baseURL+"/ugcPosts", body, headers, createRetryable)
		if err != nil {
			return err
		}
		id = resp.Header.Get("X-RestLi-Id")

		var out createPostResponse
		if err := decode(resp, &out); err == nil && out.ID != "" {
			id = out.ID
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}
	if id == "" {
		return "", errors.New("failed to create post: response carries no post ID")
	}
	return id, nil
}

// ContentType maps an image filename to the MIME type sent with the upload.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// observe runs one API call inside a client span and records its metric.
func (c *Client) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceLinkedIn, operation)
	start := time.Now()

	err := fn(ctx)

	c.metrics.RecordAPIOperation(ctx, instrumentation.ServiceLinkedIn, operation, instrumentation.StatusFor(err), time.Since(start))
	instrumentation.EndSpan(span, err)
	if err != nil {
		c.logger.Debug("linkedin call failed", logging.Operation(operation), logging.Err(err))
	}
	return err
}

func (c *Client) retryPolicy(operation string) retry.Policy {
	p := c.policy
	p.OnRetry = func(err error, next time.Duration) {
		c.logger.Warn("linkedin call failed, retrying",
			logging.Operation(operation),
			slog.Duration("backoff", next),
			logging.Err(err))
	}
	return p
}

// createRetryable classifies CreatePost failures. A post may already exist
// after a 5xx or a lost response, so only throttling and connections that
// were never established are repeated.
func createRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return retry.NotSent(err)
}

// doJSON POSTs body as JSON, retrying failures accepted by retryable, and
// returns the successful response. The caller owns the response body.
func (c *Client) doJSON(ctx context.Context, operation, url string, body any, headers map[string]string, retryable retry.Classify) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return retry.Do(ctx, c.retryPolicy(operation), retryable, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			return nil, apiError(operation, resp)
		}
		return resp, nil
	})
}

func apiError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	return &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       retry.TruncateBody(bytes.TrimSpace(body), maxErrorBody),
	}
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
