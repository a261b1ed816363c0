package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/pipeline"
	"github.com/teemow/newsletterpost/internal/pubsub"
)

// Response statuses written by the webhook endpoints.
const (
	statusOK      = "ok"
	statusSkipped = "skipped"
	statusError   = "error"
)

type statusResponse struct {
	Status string `json:"status"`
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	writeJSON(w, code, statusResponse{Status: status})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// handlePush runs the pipeline for a Gmail push notification.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	env, err := pubsub.Decode(r.Body)
	if err != nil {
		s.logger.WarnContext(r.Context(), "invalid push payload", logging.Err(err))
		writeStatus(w, http.StatusBadRequest, statusError)
		return
	}

	trig := pipeline.Trigger{Source: "push"}
	attrs := []any{
		slog.String("pubsub_message_id", env.Message.MessageID),
		slog.String("subscription", env.Subscription),
	}
	if data, err := env.Message.RawData(); err == nil {
		attrs = append(attrs, slog.String("data", string(data)))
	}
	if n, err := env.Message.Notification(); err == nil {
		trig.HistoryID = n.HistoryID
		attrs = append(attrs,
			logging.UserHash(n.EmailAddress),
			slog.Uint64("history_id", n.HistoryID))
	} else {
		attrs = append(attrs, logging.Err(err))
	}
	s.logger.InfoContext(r.Context(), "received push notification", attrs...)

	// The pipeline keeps running when Pub/Sub gives up on the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.config.RunTimeout)
	defer cancel()

	res, err := s.config.Runner.Run(ctx, trig)
	s.sc.RecordRun(res, err)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, statusError)
		return
	}
	if res != nil && res.Status == pipeline.StatusSkipped {
		writeStatus(w, http.StatusOK, statusSkipped)
		return
	}
	writeStatus(w, http.StatusOK, statusOK)
}

func (s *Server) handleWebhook(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, statusOK)
}

// requireToken rejects requests whose token query parameter does not match
// the configured push token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.config.PushToken == "" {
		return next
	}
	want := []byte(s.config.PushToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.URL.Query().Get("token"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			s.logger.WarnContext(r.Context(), "push rejected: invalid token", slog.String("remote_addr", r.RemoteAddr))
			writeStatus(w, http.StatusUnauthorized, statusError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit answers 429 once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.WarnContext(r.Context(), "push rejected: rate limit exceeded")
			writeStatus(w, http.StatusTooManyRequests, statusError)
			return
		}
		next.ServeHTTP(w, r)
	})
}
