package server

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/newsletterpost/internal/pipeline"
)

// RunInfo is the outcome of the most recent pipeline run.
type RunInfo struct {
	RunID      string    `json:"run_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// ServerContext holds state shared by the HTTP handlers.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	shutdown bool
	lastRun  *RunInfo
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// RecordRun stores the outcome of a pipeline run for the detailed health
// endpoint.
func (sc *ServerContext) RecordRun(res *pipeline.Result, err error) {
	info := &RunInfo{FinishedAt: time.Now()}
	if res != nil {
		info.RunID = res.RunID
		info.MessageID = res.MessageID
		info.Status = res.Status
	}
	if err != nil {
		info.Status = "error"
		info.Error = err.Error()
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastRun = info
}

// LastRun returns a copy of the most recent run, or nil.
func (sc *ServerContext) LastRun() *RunInfo {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.lastRun == nil {
		return nil
	}
	info := *sc.lastRun
	return &info
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
