package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/newsletterpost/internal/instrumentation"
)

// ErrNoValidToken is returned when the token file holds neither a valid
// access token nor a refresh token.
var ErrNoValidToken = errors.New("you must authorize the app and have a valid token file")

// TokenFile is the authorized-user credential file written by the auth
// command (and by Google's Python quickstart).
type TokenFile struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// ReadTokenFile loads a token file from disk.
func ReadTokenFile(path string) (*TokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoValidToken, path)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return &tf, nil
}

// WriteTokenFile atomically replaces the token file with mode 0600.
func WriteTokenFile(path string, tf *TokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// OAuth2Token converts the file contents to an oauth2.Token.
// A missing expiry leaves Expiry zero, which oauth2 treats as never expiring.
func (tf *TokenFile) OAuth2Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{
		AccessToken:  tf.Token,
		TokenType:    "Bearer",
		RefreshToken: tf.RefreshToken,
	}
	if tf.Expiry != "" {
		expiry, err := parseExpiry(tf.Expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry %q: %w", tf.Expiry, err)
		}
		tok.Expiry = expiry
	}
	return tok, nil
}

// Update copies a refreshed token into the file contents.
func (tf *TokenFile) Update(tok *oauth2.Token) {
	tf.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		tf.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		tf.Expiry = tok.Expiry.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
}

func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Written without a zone designator; the value is UTC.
	return time.Parse("2006-01-02T15:04:05.999999", s)
}

// Options configures credential loading.
type Options struct {
	// TokenFile is the path of the authorized-user token file.
	TokenFile string

	// ClientID and ClientSecret override the values stored in the token file.
	ClientID     string
	ClientSecret string

	// Scopes requested during authorization (default: DefaultScopes).
	Scopes []string

	// RedirectURL for the interactive authorization (default: DefaultRedirectURL).
	RedirectURL string

	// TokenURL overrides the token endpoint from the token file.
	TokenURL string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// OAuthConfig builds the oauth2 configuration, preferring explicit client
// credentials over those stored in the token file.
func OAuthConfig(opts Options, tf *TokenFile) *oauth2.Config {
	endpoint := google.Endpoint
	scopes := opts.Scopes
	clientID, clientSecret := opts.ClientID, opts.ClientSecret

	if tf != nil {
		if tf.TokenURI != "" {
			endpoint.TokenURL = tf.TokenURI
		}
		if clientID == "" {
			clientID = tf.ClientID
		}
		if clientSecret == "" {
			clientSecret = tf.ClientSecret
		}
		if len(scopes) == 0 {
			scopes = tf.Scopes
		}
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}

	redirectURL := opts.RedirectURL
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// NewTokenSource loads the token file and returns a token source that
// refreshes and persists tokens. The returned source is validated once, so a
// revoked refresh token fails here rather than on the first API call.
//
// ctx must outlive the token source; it is used for refresh requests.
func NewTokenSource(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	tf, err := ReadTokenFile(opts.TokenFile)
	if err != nil {
		return nil, err
	}

	tok, err := tf.OAuth2Token()
	if err != nil {
		return nil, err
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, ErrNoValidToken
	}

	conf := OAuthConfig(opts, tf)
	ts := newPersistingTokenSource(ctx, conf.TokenSource(ctx, tok), opts, tf, tok.AccessToken)

	if _, err := ts.Token(); err != nil {
		return nil, err
	}
	return ts, nil
}

// HTTPClient returns an HTTP client that authorizes requests with the stored
// token. Requests are traced through otelhttp.
func HTTPClient(ctx context.Context, opts Options) (*http.Client, error) {
	ts, err := NewTokenSource(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Force HTTP/1.1 by disabling HTTP/2
	base := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   otelhttp.NewTransport(base),
		},
	}, nil
}

// AuthURL returns the URL the user opens to grant access.
func AuthURL(opts Options) (string, error) {
	tf, _ := ReadTokenFile(opts.TokenFile)
	conf := OAuthConfig(opts, tf)
	if conf.ClientID == "" {
		return "", errors.New("GOOGLE_CLIENT_ID is required for authorization")
	}
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ParseAuthCode accepts either a bare authorization code or the full
// redirected URL and returns the code.
func ParseAuthCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if msg := q.Get("error"); msg != "" {
		return "", fmt.Errorf("authorization denied: %s", msg)
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}

// ExchangeAndSave trades an authorization code for tokens and writes them to
// the token file.
func ExchangeAndSave(ctx context.Context, opts Options, code string) error {
	conf := OAuthConfig(opts, nil)
	if conf.ClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required for authorization")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	tf := &TokenFile{
		TokenURI:     conf.Endpoint.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		Scopes:       conf.Scopes,
	}
	tf.Update(tok)

	if err := WriteTokenFile(opts.TokenFile, tf); err != nil {
		return err
	}

	opts.logger().Info("saved google token", "path", opts.TokenFile)
	return nil
}
