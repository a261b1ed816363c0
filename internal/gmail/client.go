package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
)

const userID = "me"

var (
	// ErrLabelNotFound is returned when no label has the requested name.
	ErrLabelNotFound = errors.New("label not found")

	// ErrNoMessages is returned when the label holds no messages.
	ErrNoMessages = errors.New("no messages with label")
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// HTTPClient must carry OAuth credentials for the mailbox.
	HTTPClient *http.Client

	// Endpoint overrides the Gmail API base URL.
	Endpoint string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Client wraps the Gmail Users service for the authenticated user.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewClient creates a Gmail client from an authorized HTTP client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, errors.New("gmail: HTTP client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		svc:     svc.Users,
		metrics: cfg.Metrics,
		logger:  logger.With(logging.Service(instrumentation.ServiceGmail)),
	}, nil
}

// observe runs one API call inside a client span and records its metric.
func (c *Client) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceGmail, operation)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	c.metrics.RecordAPIOperation(ctx, instrumentation.ServiceGmail, operation, instrumentation.StatusFor(err), duration)
	instrumentation.EndSpan(span, err)

	c.logger.Debug("gmail call",
		logging.Operation(operation),
		slog.Duration(logging.KeyDuration, duration),
		logging.Status(instrumentation.StatusFor(err)))
	return err
}

// LabelID returns the ID of the label whose name matches exactly.
func (c *Client) LabelID(ctx context.Context, name string) (string, error) {
	var id string
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		resp, err := c.svc.Labels.List(userID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to list labels: %w", err)
		}
		for _, l := range resp.Labels {
			if l.Name == name {
				id = l.Id
				return nil
			}
		}
		return fmt.Errorf("%w: %q, check the spelling or create it in Gmail", ErrLabelNotFound, name)
	})
	return id, err
}

// WatchResult is Gmail's answer to a watch registration.
type WatchResult struct {
	HistoryID  uint64
	Expiration time.Time
}

// Watch asks Gmail to publish changes to the label on the Pub/Sub topic.
// topic is the fully qualified name, projects/{project}/topics/{topic}.
func (c *Client) Watch(ctx context.Context, labelID, topic string) (*WatchResult, error) {
	var result *WatchResult
	err := c.observe(ctx, instrumentation.OperationWatch, func(ctx context.Context) error {
		resp, err := c.svc.Watch(userID, &gmail.WatchRequest{
			LabelIds:            []string{labelID},
			TopicName:           topic,
			LabelFilterBehavior: "INCLUDE",
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to watch label %s: %w", labelID, err)
		}
		result = &WatchResult{
			HistoryID:  resp.HistoryId,
			Expiration: time.UnixMilli(resp.Expiration).UTC(),
		}
		return nil
	})
	return result, err
}

// StopWatch stops push notifications for the mailbox.
func (c *Client) StopWatch(ctx context.Context) error {
	return c.observe(ctx, instrumentation.OperationStop, func(ctx context.Context) error {
		if err := c.svc.Stop(userID).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to stop watch: %w", err)
		}
		return nil
	})
}

// LatestMessageID returns the ID of the newest message carrying the label.
func (c *Client) LatestMessageID(ctx context.Context, labelID string) (string, error) {
	var id string
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		resp, err := c.svc.Messages.List(userID).LabelIds(labelID).MaxResults(1).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		if len(resp.Messages) == 0 {
			return fmt.Errorf("%w %s", ErrNoMessages, labelID)
		}
		id = resp.Messages[0].Id
		return nil
	})
	return id, err
}

// GetMessage retrieves a full Gmail message.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		m, err := c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to get message %s: %w", messageID, err)
		}
		msg = m
		return nil
	})
	return msg, err
}

// MessageHTML fetches a message and returns its decoded HTML body.
func (c *Client) MessageHTML(ctx context.Context, messageID string) (string, error) {
	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	return HTMLBody(msg)
}
