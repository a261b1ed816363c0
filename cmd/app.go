package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/newsletterpost/internal/config"
	"github.com/teemow/newsletterpost/internal/content"
	"github.com/teemow/newsletterpost/internal/gmail"
	"github.com/teemow/newsletterpost/internal/google"
	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/linkedin"
	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/pipeline"
	"github.com/teemow/newsletterpost/internal/store"
	"github.com/teemow/newsletterpost/internal/store/sqlite"
	"github.com/teemow/newsletterpost/internal/web"
)

// outboundTimeout bounds a single request to LinkedIn, the LLM APIs or an article host.
const outboundTimeout = 2 * time.Minute

// llmMaxRetries is passed to the OpenAI-compatible clients.
const llmMaxRetries = 2

// app holds the dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger

	gmail    *gmail.Client
	store    store.Store
	pipeline *pipeline.Pipeline
}

// loadApp reads the configuration and sets up logging and instrumentation.
// Clients are created by the with* helpers as each command needs them.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stderr, debugMode, cfg.LogFormat == "json")
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.LabelName = cfg.LabelName
	instrConfig.DryRun = cfg.DryRun

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		metrics:  provider.Metrics(),
		audit:    instrumentation.NewAuditLogger(logger, instrConfig.PublishAudit),
	}, nil
}

// close releases the store and flushes telemetry.
func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", logging.Err(err))
		}
	}
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}

func (a *app) googleOptions() google.Options {
	return google.Options{
		TokenFile:    a.cfg.TokenFile,
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Scopes:       a.cfg.Scopes(),
		Metrics:      a.metrics,
		Logger:       a.logger,
	}
}

// withGmail creates the Gmail client from the stored token.
func (a *app) withGmail(ctx context.Context) error {
	httpClient, err := google.HTTPClient(ctx, a.googleOptions())
	if err != nil {
		return fmt.Errorf("failed to load Google credentials: %w", err)
	}

	client, err := gmail.NewClient(ctx, gmail.ClientConfig{
		HTTPClient: httpClient,
		Endpoint:   a.cfg.GmailEndpoint,
		Metrics:    a.metrics,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}
	a.gmail = client
	return nil
}

// withPipeline wires every stage of the newsletter pipeline.
func (a *app) withPipeline(ctx context.Context) error {
	if err := a.cfg.ValidatePipeline(); err != nil {
		return err
	}
	if a.gmail == nil {
		if err := a.withGmail(ctx); err != nil {
			return err
		}
	}

	st, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	a.store = st

	outbound := tracedHTTPClient()

	var search content.Searcher
	if a.cfg.PerplexityAPIKey != "" {
		search, err = content.NewPerplexity(content.PerplexityConfig{
			APIKey:     a.cfg.PerplexityAPIKey,
			BaseURL:    a.cfg.PerplexityBaseURL,
			Model:      a.cfg.PerplexityModel,
			HTTPClient: outbound,
			MaxRetries: llmMaxRetries,
			Metrics:    a.metrics,
			Logger:     a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create search tool: %w", err)
		}
	} else {
		a.logger.Info("PERPLEXITY_API_KEY not set, generating posts without web search")
	}

	generator, err := content.NewGenerator(content.Config{
		APIKey:        a.cfg.GroqAPIKey,
		BaseURL:       a.cfg.GroqBaseURL,
		Model:         a.cfg.GroqModel,
		Temperature:   a.cfg.GroqTemperature,
		MaxIterations: a.cfg.AgentMaxIterations,
		HTTPClient:    outbound,
		MaxRetries:    llmMaxRetries,
		Search:        search,
		Metrics:       a.metrics,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	pcfg := pipeline.Config{
		LabelName:  a.cfg.LabelName,
		ImageIndex: a.cfg.ImageIndex,
		Mailbox:    a.gmail,
		Fetcher: web.NewFetcher(web.Config{
			HTTPClient: outbound,
			TextLimit:  a.cfg.ArticleTextLimit,
			Metrics:    a.metrics,
			Logger:     a.logger,
		}),
		Generator: generator,
		Store:     st,
		Metrics:   a.metrics,
		Audit:     a.audit,
		Logger:    a.logger,
	}

	if !a.cfg.DryRun {
		publisher, err := linkedin.NewClient(linkedin.Config{
			AccessToken:      a.cfg.LinkedInAccessToken,
			OwnerURN:         a.cfg.LinkedInOwnerURN,
			BaseURL:          a.cfg.LinkedInBaseURL,
			MediaTitle:       a.cfg.MediaTitle,
			MediaDescription: a.cfg.MediaDescription,
			HTTPClient:       outbound,
			Metrics:          a.metrics,
			Logger:           a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create LinkedIn client: %w", err)
		}
		pcfg.Publisher = publisher
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	a.pipeline = p
	return nil
}

// openStore opens the processed-message ledger selected by STORE_TYPE.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreType {
	case "", config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}

// tracedHTTPClient is the client used for LinkedIn, LLM and article requests.
func tracedHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   outboundTimeout,
	}
}

// dryRunner adapts Pipeline.DryRun to the server's Runner.
type dryRunner struct {
	p *pipeline.Pipeline
}

func (d dryRunner) Run(ctx context.Context, trig pipeline.Trigger) (*pipeline.Result, error) {
	return d.p.DryRun(ctx, trig)
}
