package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/newsletterpost/internal/format"
	"github.com/teemow/newsletterpost/internal/gmail"
	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/linkedin"
	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/newsletter"
	"github.com/teemow/newsletterpost/internal/store"
	"github.com/teemow/newsletterpost/internal/web"
)

// Result statuses.
const (
	StatusPublished = "published"
	StatusSkipped   = "skipped"
	StatusDryRun    = "dry_run"
)

// ErrEmptyPost is returned when formatting leaves nothing to publish.
var ErrEmptyPost = errors.New("formatted post is empty")

// Mailbox reads the watched label.
type Mailbox interface {
	LabelID(ctx context.Context, name string) (string, error)
	LatestMessageID(ctx context.Context, labelID string) (string, error)
	MessageHTML(ctx context.Context, messageID string) (string, error)
}

// Fetcher downloads article pages and images.
type Fetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
	DownloadImage(ctx context.Context, imageURL string) (*web.Image, error)
}

// Generator writes the post text for an article.
type Generator interface {
	Generate(ctx context.Context, article, link string) (string, error)
}

// Publisher posts to LinkedIn and returns the post ID.
type Publisher interface {
	Publish(ctx context.Context, text string, image *linkedin.Image) (string, error)
}

// Config wires a Pipeline.
type Config struct {
	LabelName  string
	ImageIndex int

	Mailbox   Mailbox
	Fetcher   Fetcher
	Generator Generator
	// Publisher may be nil when only DryRun is used.
	Publisher Publisher
	// Store defaults to an in-memory ledger.
	Store store.Store

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Trigger describes why a run started.
type Trigger struct {
	// Source is "push", "cli" or similar, for logs only.
	Source string
	// HistoryID is the mailbox history ID from a Gmail push notification.
	HistoryID uint64
	// Force processes the newest message even if the ledger has it.
	Force bool
}

// Result summarises one run.
type Result struct {
	RunID      string
	MessageID  string
	Title      string
	ArticleURL string
	ImageURL   string
	Post       string
	PostID     string
	Status     string
	// Reason explains a skipped run.
	Reason string
}

// Pipeline runs newsletter-to-post conversions one at a time.
type Pipeline struct {
	mu sync.Mutex

	labelName  string
	imageIndex int

	mailbox   Mailbox
	fetcher   Fetcher
	generator Generator
	publisher Publisher
	store     store.Store

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if strings.TrimSpace(cfg.LabelName) == "" {
		return nil, errors.New("pipeline: label name is required")
	}
	if cfg.Mailbox == nil || cfg.Fetcher == nil || cfg.Generator == nil {
		return nil, errors.New("pipeline: mailbox, fetcher and generator are required")
	}
	if cfg.ImageIndex < 0 {
		return nil, fmt.Errorf("pipeline: invalid image index %d", cfg.ImageIndex)
	}

	p := &Pipeline{
		labelName:  cfg.LabelName,
		imageIndex: cfg.ImageIndex,
		mailbox:    cfg.Mailbox,
		fetcher:    cfg.Fetcher,
		generator:  cfg.Generator,
		publisher:  cfg.Publisher,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
		logger:     cfg.Logger,
	}
	if p.store == nil {
		p.store = store.NewMemory()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Run processes the newest message in the label and publishes it.
//
// Messages that can never produce a post (no HTML body, no Top News section)
// are recorded as skipped and reported with StatusSkipped and a nil error.
func (p *Pipeline) Run(ctx context.Context, trig Trigger) (*Result, error) {
	if p.publisher == nil {
		return nil, errors.New("pipeline: no publisher configured")
	}
	return p.run(ctx, trig, false)
}

// DryRun performs every stage up to formatting and returns the post without
// publishing or touching the ledger.
func (p *Pipeline) DryRun(ctx context.Context, trig Trigger) (*Result, error) {
	return p.run(ctx, trig, true)
}

func (p *Pipeline) run(ctx context.Context, trig Trigger, dryRun bool) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &Result{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, res.RunID)

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.run",
		instrumentation.NewSpanAttributeBuilder().WithRunID(res.RunID).Build()...)

	event := instrumentation.NewPublishEvent(res.RunID, "").WithSpanContext(ctx)
	event.DryRun = dryRun

	p.logger.InfoContext(ctx, "pipeline run started",
		slog.String("source", trig.Source),
		slog.Uint64("history_id", trig.HistoryID),
		slog.Bool("dry_run", dryRun))

	err := p.execute(ctx, trig, dryRun, res)

	event.MessageID = res.MessageID
	event.ArticleURL = res.ArticleURL
	event.ImageURL = res.ImageURL
	event.Text = res.Post

	var skipped *skipError
	switch {
	case errors.As(err, &skipped):
		res.Status = StatusSkipped
		res.Reason = skipped.Error()
		event.CompleteSkipped(skipped)
		p.metrics.RecordPipelineRun(ctx, instrumentation.StatusSkipped, articleHost(res.ArticleURL))
		p.logger.InfoContext(ctx, "pipeline run skipped",
			logging.MessageID(res.MessageID),
			slog.String("reason", res.Reason))
		err = nil
	case err != nil:
		event.CompleteWithError(err)
		p.metrics.RecordPipelineRun(ctx, instrumentation.StatusError, articleHost(res.ArticleURL))
		p.logger.ErrorContext(ctx, "pipeline run failed",
			logging.MessageID(res.MessageID),
			logging.Err(err))
	default:
		event.CompleteSuccess(res.PostID)
		p.metrics.RecordPipelineRun(ctx, instrumentation.StatusSuccess, articleHost(res.ArticleURL))
		p.logger.InfoContext(ctx, "pipeline run completed",
			logging.MessageID(res.MessageID),
			logging.Status(res.Status),
			slog.String("post_id", res.PostID))
	}

	p.audit.LogPublish(event)
	instrumentation.EndSpan(span, err)
	return res, err
}

func (p *Pipeline) execute(ctx context.Context, trig Trigger, dryRun bool, res *Result) error {
	var html string
	err := p.stage(ctx, instrumentation.StageMailbox, func(ctx context.Context) error {
		labelID, err := p.mailbox.LabelID(ctx, p.labelName)
		if err != nil {
			return err
		}
		res.MessageID, err = p.mailbox.LatestMessageID(ctx, labelID)
		if errors.Is(err, gmail.ErrNoMessages) {
			return skip(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	if !dryRun && !trig.Force {
		if err := p.stage(ctx, instrumentation.StageDedupe, func(ctx context.Context) error {
			return p.checkLedger(ctx, res.MessageID)
		}); err != nil {
			return err
		}
	}

	err = p.stage(ctx, instrumentation.StageMailbox, func(ctx context.Context) error {
		var err error
		html, err = p.mailbox.MessageHTML(ctx, res.MessageID)
		if errors.Is(err, gmail.ErrNoHTMLBody) {
			return skip(err)
		}
		return err
	})
	if err == nil {
		err = p.stage(ctx, instrumentation.StageExtract, func(ctx context.Context) error {
			top, err := newsletter.ExtractTopNews(html, p.imageIndex)
			if errors.Is(err, newsletter.ErrTopNewsNotFound) {
				return skip(err)
			}
			if err != nil {
				return err
			}
			res.Title, res.ArticleURL, res.ImageURL = top.Title, top.Link, top.ImageURL
			p.logger.InfoContext(ctx, "extracted top news",
				slog.String("title", top.Title),
				logging.URL(top.Link),
				slog.String("image_url", top.ImageURL))
			return nil
		})
	}
	if err != nil {
		return p.fail(ctx, dryRun, res, err)
	}

	image := p.downloadImage(ctx, res.ImageURL)

	var article string
	err = p.stage(ctx, instrumentation.StageArticle, func(ctx context.Context) error {
		var err error
		article, err = p.fetcher.FetchText(ctx, res.ArticleURL)
		return err
	})
	if err != nil {
		return p.fail(ctx, dryRun, res, err)
	}

	var draft string
	err = p.stage(ctx, instrumentation.StageGenerate, func(ctx context.Context) error {
		var err error
		draft, err = p.generator.Generate(ctx, article, res.ArticleURL)
		return err
	})
	if err != nil {
		return p.fail(ctx, dryRun, res, err)
	}

	err = p.stage(ctx, instrumentation.StageFormat, func(ctx context.Context) error {
		res.Post = format.ToLinkedIn(draft)
		if res.Post == "" {
			return ErrEmptyPost
		}
		return nil
	})
	if err != nil {
		return p.fail(ctx, dryRun, res, err)
	}

	if dryRun {
		res.Status = StatusDryRun
		return nil
	}

	err = p.stage(ctx, instrumentation.StagePublish, func(ctx context.Context) error {
		var err error
		res.PostID, err = p.publisher.Publish(ctx, res.Post, image)
		return err
	})
	if err != nil {
		return p.fail(ctx, dryRun, res, err)
	}
	res.Status = StatusPublished

	p.record(ctx, store.Record{
		MessageID:  res.MessageID,
		Status:     store.StatusPublished,
		PostID:     res.PostID,
		ArticleURL: res.ArticleURL,
	})
	return nil
}

// checkLedger returns a skip error when the message was already handled.
func (p *Pipeline) checkLedger(ctx context.Context, messageID string) error {
	rec, err := p.store.Get(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	if rec.Done() {
		return skip(fmt.Errorf("message already %s at %s", rec.Status, rec.ProcessedAt.Format(time.RFC3339)))
	}
	return nil
}

// downloadImage fetches the newsletter image. A missing or broken image
// degrades the run to a text-only post.
func (p *Pipeline) downloadImage(ctx context.Context, imageURL string) *linkedin.Image {
	if imageURL == "" {
		p.logger.InfoContext(ctx, "newsletter has no image, posting text only")
		return nil
	}

	var image *linkedin.Image
	err := p.stage(ctx, instrumentation.StageImage, func(ctx context.Context) error {
		img, err := p.fetcher.DownloadImage(ctx, imageURL)
		if err != nil {
			return err
		}
		image = &linkedin.Image{Filename: img.Filename, Data: img.Data}
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "image download failed, posting text only",
			logging.URL(imageURL),
			logging.Err(err))
		return nil
	}
	return image
}

// fail records the outcome of a run that stopped after the message was
// identified. Skips are recorded as skipped so redeliveries stop; other
// errors are recorded as failed so the next notification retries.
func (p *Pipeline) fail(ctx context.Context, dryRun bool, res *Result, err error) error {
	if dryRun {
		return err
	}

	rec := store.Record{
		MessageID:  res.MessageID,
		Status:     store.StatusFailed,
		ArticleURL: res.ArticleURL,
		Error:      err.Error(),
	}
	var s *skipError
	if errors.As(err, &s) {
		rec.Status = store.StatusSkipped
	}
	p.record(ctx, rec)
	return err
}

func (p *Pipeline) record(ctx context.Context, rec store.Record) {
	err := p.stage(ctx, instrumentation.StageRecord, func(ctx context.Context) error {
		return p.store.Put(ctx, rec)
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to record outcome",
			logging.MessageID(rec.MessageID),
			logging.Status(rec.Status),
			logging.Err(err))
	}
}

// stage runs fn inside a stage span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	runID, _ := logging.RunID(ctx)
	ctx, span := instrumentation.StartStageSpan(ctx, name,
		instrumentation.NewSpanAttributeBuilder().WithRunID(runID).Build()...)
	start := time.Now()

	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusFor(err)
	var s *skipError
	if errors.As(err, &s) {
		status = instrumentation.StatusSkipped
	}

	p.metrics.RecordStage(ctx, name, status, duration)
	if status == instrumentation.StatusSkipped {
		instrumentation.EndSpan(span, nil)
	} else {
		instrumentation.EndSpan(span, err)
	}

	p.logger.DebugContext(ctx, "stage finished",
		logging.Stage(name),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration))
	return err
}

func articleHost(articleURL string) string {
	if articleURL == "" {
		return ""
	}
	u, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
