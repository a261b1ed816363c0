package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokenFile(t *testing.T, tf *TokenFile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, WriteTokenFile(path, tf))
	return path
}

// newTokenServer fakes Google's token endpoint, issuing "fresh-<n>" tokens.
func newTokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		_ = r.ParseForm()

		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			if r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-" + string(rune('0'+n)),
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestReadTokenFile_Missing(t *testing.T) {
	_, err := ReadTokenFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoValidToken)
}

func TestReadTokenFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := ReadTokenFile(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoValidToken)
}

func TestWriteTokenFile_Permissions(t *testing.T) {
	path := writeTokenFile(t, &TokenFile{Token: "abc"})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	tf, err := ReadTokenFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tf.Token)
}

func TestTokenFile_OAuth2Token_Expiry(t *testing.T) {
	tests := []struct {
		name   string
		expiry string
		want   time.Time
	}{
		{"python isoformat", "2025-03-01T10:20:30.123456Z", time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC)},
		{"no zone", "2025-03-01T10:20:30.5", time.Date(2025, 3, 1, 10, 20, 30, 500000000, time.UTC)},
		{"missing", "", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := (&TokenFile{Token: "a", Expiry: tt.expiry}).OAuth2Token()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(tok.Expiry), "got %v", tok.Expiry)
		})
	}

	_, err := (&TokenFile{Expiry: "yesterday"}).OAuth2Token()
	assert.Error(t, err)
}

func TestNewTokenSource_ValidToken(t *testing.T) {
	srv, calls := newTokenServer(t)
	path := writeTokenFile(t, &TokenFile{
		Token:        "still-valid",
		RefreshToken: "refresh-1",
		TokenURI:     srv.URL,
		ClientID:     "client",
		Expiry:       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})

	ts, err := NewTokenSource(context.Background(), Options{TokenFile: path})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "still-valid", tok.AccessToken)
	assert.Zero(t, calls.Load())
}

func TestTokenFile_OAuth2Token_MissingExpiryIsValid(t *testing.T) {
	tok, err := (&TokenFile{Token: "no-expiry", RefreshToken: "refresh-1"}).OAuth2Token()
	require.NoError(t, err)
	assert.True(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())
}

func TestNewTokenSource_MissingExpiryUsesStoredToken(t *testing.T) {
	srv, calls := newTokenServer(t)
	path := writeTokenFile(t, &TokenFile{
		Token:        "no-expiry",
		RefreshToken: "refresh-1",
		TokenURI:     srv.URL,
		ClientID:     "client",
	})

	ts, err := NewTokenSource(context.Background(), Options{TokenFile: path})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "no-expiry", tok.AccessToken)
	assert.Zero(t, calls.Load())
}

func TestNewTokenSource_RefreshesAndPersists(t *testing.T) {
	srv, calls := newTokenServer(t)
	path := writeTokenFile(t, &TokenFile{
		Token:        "expired",
		RefreshToken: "refresh-1",
		TokenURI:     srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Expiry:       "2020-01-01T00:00:00Z",
	})

	ts, err := NewTokenSource(context.Background(), Options{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", tok.AccessToken)

	saved, err := ReadTokenFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", saved.Token)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
	assert.Equal(t, "client", saved.ClientID)

	expiry, err := saved.OAuth2Token()
	require.NoError(t, err)
	assert.True(t, expiry.Expiry.After(time.Now()))
}

func TestNewTokenSource_RevokedRefreshToken(t *testing.T) {
	srv, _ := newTokenServer(t)
	path := writeTokenFile(t, &TokenFile{
		Token:        "expired",
		RefreshToken: "revoked",
		TokenURI:     srv.URL,
		ClientID:     "client",
		Expiry:       "2020-01-01T00:00:00Z",
	})

	_, err := NewTokenSource(context.Background(), Options{TokenFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to refresh google token")
}

func TestNewTokenSource_NoRefreshToken(t *testing.T) {
	path := writeTokenFile(t, &TokenFile{
		Token:  "expired",
		Expiry: "2020-01-01T00:00:00Z",
	})

	_, err := NewTokenSource(context.Background(), Options{TokenFile: path})
	assert.ErrorIs(t, err, ErrNoValidToken)
}

func TestHTTPClient_AddsBearerToken(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	path := writeTokenFile(t, &TokenFile{
		Token:  "valid",
		Expiry: time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})

	client, err := HTTPClient(context.Background(), Options{TokenFile: path})
	require.NoError(t, err)

	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer valid", gotAuth)
}

func TestAuthURL(t *testing.T) {
	_, err := AuthURL(Options{TokenFile: filepath.Join(t.TempDir(), "token.json")})
	require.Error(t, err)

	u, err := AuthURL(Options{
		TokenFile: filepath.Join(t.TempDir(), "token.json"),
		ClientID:  "client-123",
	})
	require.NoError(t, err)
	assert.Contains(t, u, "client_id=client-123")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "gmail.readonly")
}

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "  4/abc  ", want: "4/abc"},
		{input: "http://localhost/?state=state&code=4%2Fxyz&scope=gmail", want: "4/xyz"},
		{input: "http://localhost/?error=access_denied&code=", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAuthCode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExchangeAndSave(t *testing.T) {
	srv, _ := newTokenServer(t)
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	opts := Options{
		TokenFile:    path,
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
	}

	require.Error(t, ExchangeAndSave(context.Background(), opts, "bad-code"))
	require.NoError(t, ExchangeAndSave(context.Background(), opts, "good-code"))

	tf, err := ReadTokenFile(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", tf.RefreshToken)
	assert.Equal(t, srv.URL, tf.TokenURI)
	assert.Equal(t, DefaultScopes, tf.Scopes)
	assert.NotEmpty(t, tf.Token)
}
