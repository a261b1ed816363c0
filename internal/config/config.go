package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds every setting the commands need.
type Config struct {
	// Gmail / Pub/Sub
	GoogleProjectID string `env:"GOOGLE_PROJECT_ID"`
	TopicName       string `env:"GMAIL_TOPIC_NAME"`
	LabelName       string `env:"TARGET_LABEL_NAME"`
	GmailScope      string `env:"GMAIL_SCOPE"          envDefault:"https://www.googleapis.com/auth/gmail.readonly"`
	GmailEndpoint   string `env:"GMAIL_ENDPOINT"`
	TokenFile       string `env:"GOOGLE_TOKEN_FILE"    envDefault:"token.json"`
	ClientID        string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`

	// LinkedIn
	LinkedInAccessToken string `env:"LINKEDIN_ACCESS_TOKEN"`
	LinkedInOwnerURN    string `env:"LINKEDIN_OWNER_URN"`
	LinkedInBaseURL     string `env:"LINKEDIN_API_BASE_URL" envDefault:"https://api.linkedin.com/v2"`
	MediaTitle          string `env:"LINKEDIN_MEDIA_TITLE"       envDefault:"LinkedIn Post"`
	MediaDescription    string `env:"LINKEDIN_MEDIA_DESCRIPTION" envDefault:"Posted via linkedin"`

	// Content generation
	GroqAPIKey         string  `env:"GROQ_API_KEY"`
	GroqBaseURL        string  `env:"GROQ_BASE_URL"          envDefault:"https://api.groq.com/openai/v1"`
	GroqModel          string  `env:"GROQ_MODEL"             envDefault:"qwen/qwen3-32b"`
	GroqTemperature    float64 `env:"GROQ_TEMPERATURE"       envDefault:"0.1"`
	PerplexityAPIKey   string  `env:"PERPLEXITY_API_KEY"`
	PerplexityBaseURL  string  `env:"PERPLEXITY_BASE_URL"    envDefault:"https://api.perplexity.ai"`
	PerplexityModel    string  `env:"PERPLEXITY_MODEL"       envDefault:"sonar"`
	AgentMaxIterations int     `env:"AGENT_MAX_ITERATIONS"   envDefault:"2"`

	// Extraction
	ArticleTextLimit int `env:"ARTICLE_TEXT_LIMIT" envDefault:"20000"`
	ImageIndex       int `env:"NEWSLETTER_IMAGE_INDEX" envDefault:"1"`

	// Processed-message ledger
	StoreType string `env:"STORE_TYPE" envDefault:"memory"`
	StorePath string `env:"STORE_PATH" envDefault:"newsletterpost.db"`

	// Webhook server
	HTTPAddr       string        `env:"HTTP_ADDR"        envDefault:":8000"`
	MetricsAddr    string        `env:"METRICS_ADDR"     envDefault:":9090"`
	PushToken      string        `env:"PUSH_AUTH_TOKEN"`
	PushRateLimit  float64       `env:"PUSH_RATE_LIMIT"  envDefault:"1"`
	PushBurst      int           `env:"PUSH_RATE_BURST"  envDefault:"5"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"5m"`

	// Watch renewal; zero disables it
	WatchRenewInterval time.Duration `env:"WATCH_RENEW_INTERVAL" envDefault:"24h"`

	DryRun    bool   `env:"DRY_RUN"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads a .env file when present and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// TopicFullName returns the fully qualified Pub/Sub topic name.
func (c *Config) TopicFullName() string {
	return fmt.Sprintf("projects/%s/topics/%s", c.GoogleProjectID, c.TopicName)
}

// Scopes returns the OAuth scopes requested for Gmail.
func (c *Config) Scopes() []string {
	var scopes []string
	for _, s := range strings.Split(c.GmailScope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// ValidateMailbox checks the settings needed to read the watched label.
func (c *Config) ValidateMailbox() error {
	return requireAll(map[string]string{
		"TARGET_LABEL_NAME": c.LabelName,
		"GOOGLE_TOKEN_FILE": c.TokenFile,
	})
}

// ValidateWatch checks the settings needed to register a Gmail watch.
func (c *Config) ValidateWatch() error {
	if err := c.ValidateMailbox(); err != nil {
		return err
	}
	return requireAll(map[string]string{
		"GOOGLE_PROJECT_ID": c.GoogleProjectID,
		"GMAIL_TOPIC_NAME":  c.TopicName,
	})
}

// ValidatePipeline checks the settings needed to run the full pipeline.
// LinkedIn credentials are only required when posts are actually published.
func (c *Config) ValidatePipeline() error {
	if err := c.ValidateMailbox(); err != nil {
		return err
	}

	required := map[string]string{
		"GROQ_API_KEY": c.GroqAPIKey,
	}
	if !c.DryRun {
		required["LINKEDIN_ACCESS_TOKEN"] = c.LinkedInAccessToken
		required["LINKEDIN_OWNER_URN"] = c.LinkedInOwnerURN
	}
	if err := requireAll(required); err != nil {
		return err
	}

	if c.AgentMaxIterations < 1 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be at least 1, got %d", c.AgentMaxIterations)
	}
	if c.ImageIndex < 0 {
		return fmt.Errorf("NEWSLETTER_IMAGE_INDEX must not be negative, got %d", c.ImageIndex)
	}

	switch c.StoreType {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return errors.New("STORE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("invalid STORE_TYPE %q, must be one of: memory, sqlite", c.StoreType)
	}

	return nil
}

// requireAll reports every empty variable, sorted by name.
func requireAll(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%s is required", strings.Join(missing, ", "))
}
