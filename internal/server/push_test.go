package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/newsletterpost/internal/pipeline"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []pipeline.Trigger
	ctxErr   error
	result   *pipeline.Result
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, trig pipeline.Trigger) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trig)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return &pipeline.Result{RunID: "run-1"}, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &pipeline.Result{RunID: "run-1", MessageID: "msg-1", Status: pipeline.StatusPublished}, nil
}

func pushBody(t *testing.T, data string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString([]byte(data)),
			"messageId": "136969346945",
		},
		"subscription": "projects/p/subscriptions/s",
	})
	require.NoError(t, err)
	return string(body)
}

func newTestServer(t *testing.T, runner Runner, mutate func(*Config)) (*Server, *ServerContext) {
	t.Helper()
	cfg := Config{Runner: runner}
	if mutate != nil {
		mutate(&cfg)
	}
	sc := NewServerContext(context.Background())
	s, err := New(sc, cfg)
	require.NoError(t, err)
	return s, sc
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestPush_Published(t *testing.T) {
	runner := &fakeRunner{}
	s, sc := newTestServer(t, runner, nil)

	rec, out := doRequest(t, s.Handler(), http.MethodPost, "/mail_payload",
		pushBody(t, `{"emailAddress":"user@example.com","historyId":9876}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	require.Len(t, runner.triggers, 1)
	assert.Equal(t, "push", runner.triggers[0].Source)
	assert.Equal(t, uint64(9876), runner.triggers[0].HistoryID)
	assert.NoError(t, runner.ctxErr)

	last := sc.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, pipeline.StatusPublished, last.Status)
	assert.Equal(t, "msg-1", last.MessageID)
}

func TestPush_Skipped(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{Status: pipeline.StatusSkipped, Reason: "top news not found"}}
	s, _ := newTestServer(t, runner, nil)

	rec, out := doRequest(t, s.Handler(), http.MethodPost, "/mail_payload", pushBody(t, `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "skipped", out["status"])
}

func TestPush_FailureAsksForRedelivery(t *testing.T) {
	runner := &fakeRunner{err: errors.New("linkedin down")}
	s, sc := newTestServer(t, runner, nil)

	rec, out := doRequest(t, s.Handler(), http.MethodPost, "/mail_payload", pushBody(t, `{}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "linkedin down", sc.LastRun().Error)
}

func TestPush_UndecodableDataStillRuns(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner, nil)

	rec, _ := doRequest(t, s.Handler(), http.MethodPost, "/mail_payload", pushBody(t, "not json"))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.triggers, 1)
	assert.Zero(t, runner.triggers[0].HistoryID)
}

func TestPush_InvalidJSON(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner, nil)

	rec, out := doRequest(t, s.Handler(), http.MethodPost, "/mail_payload", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", out["status"])
	assert.Empty(t, runner.triggers)
}

func TestPush_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rec, _ := doRequest(t, s.Handler(), http.MethodGet, "/mail_payload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPush_Token(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner, func(c *Config) { c.PushToken = "s3cret" })
	h := s.Handler()

	rec, _ := doRequest(t, h, http.MethodPost, "/mail_payload", pushBody(t, `{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/mail_payload?token=wrong", pushBody(t, `{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/mail_payload?token=s3cret", pushBody(t, `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, runner.triggers, 1)
}

func TestPush_RateLimit(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 2
	})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rec, _ := doRequest(t, h, http.MethodPost, "/mail_payload", pushBody(t, `{}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out := doRequest(t, h, http.MethodPost, "/mail_payload", pushBody(t, `{}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "error", out["status"])
	assert.Len(t, runner.triggers, 2)
}

func TestWebhooks(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, nil)

	rec, out := doRequest(t, s.Handler(), http.MethodPost, "/webhooks", `{"anything":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, sc := newTestServer(t, &fakeRunner{}, func(c *Config) { c.Addr = "127.0.0.1:0" })

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.StartWithReadySignal(ready)
	}()
	<-ready

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
	assert.True(t, sc.IsShutdown())
	assert.False(t, s.health.IsReady())
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s, sc := newTestServer(t, &fakeRunner{}, func(c *Config) { c.Addr = "127.0.0.1:0" })

	require.NoError(t, s.Shutdown(context.Background()))
	assert.True(t, sc.IsShutdown())

	assert.ErrorIs(t, s.Start(), http.ErrServerClosed)
}

func TestServer_ShutdownRacingStart(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{}, func(c *Config) { c.Addr = "127.0.0.1:0" })

	done := make(chan error, 1)
	go func() {
		done <- s.Start()
	}()
	_ = s.Addr()
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server kept serving after shutdown")
	}
}
