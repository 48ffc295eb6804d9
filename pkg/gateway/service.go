// Package gateway runs the chat runtime headless, with optional chat logging
// and an HTTP status server.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chatat/pkg/bus"
	"chatat/pkg/chatlog"
	"chatat/pkg/config"
	"chatat/pkg/irc"
)

const shutdownTimeout = 5 * time.Second

// chatLog is the part of chatlog.Sink the service drives.
type chatLog interface {
	Install(b *bus.Bus) bus.Subscription
	Run(ctx context.Context) error
	Written() uint64
	Dropped() uint64
}

type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	runtime *Runtime
	sink    chatLog
	closers []func()

	mu        sync.RWMutex
	startedAt time.Time
	state     irc.State
	lastErr   string
	listener  net.Listener
	ready     chan struct{}
}

type connectionStatus struct {
	State    string   `json:"state"`
	Error    string   `json:"error,omitempty"`
	Channels []string `json:"channels"`
}

type chatLogStatus struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

type statusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Connection    connectionStatus `json:"connection"`
	ChatLog       *chatLogStatus   `json:"chat_log,omitempty"`
}

// NewService prepares the runtime and, when enabled, the Postgres chat log.
func NewService(ctx context.Context, cfg *config.Config, runtime *Runtime, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if runtime == nil {
		return nil, errors.New("runtime is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:     cfg,
		log:     log.With("component", "gateway.service"),
		runtime: runtime,
		state:   irc.StateDisconnected,
		ready:   make(chan struct{}),
	}

	if cfg.ChatLog.Enabled {
		sink, pool, err := chatlog.Open(ctx, cfg.ChatLog.DSN, chatlog.Config{
			MaxBatch:     cfg.ChatLog.MaxBatch,
			FlushEvery:   cfg.ChatLog.FlushEvery(),
			ChanBuffer:   cfg.ChatLog.ChanBuffer,
			FlushTimeout: cfg.ChatLog.FlushTimeout(),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("initialize chat log: %w", err)
		}
		s.sink = sink
		s.closers = append(s.closers, pool.Close)
	}

	return s, nil
}

// Run connects and serves /healthz and /readyz until ctx is canceled or the
// connection fails. A canceled ctx is a clean exit.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	stateSub := s.runtime.Bus.Subscribe(bus.TopicState, s.trackState)
	defer s.runtime.Bus.Unsubscribe(stateSub)

	listener, err := net.Listen("tcp", s.cfg.Gateway.Addr())
	if err != nil {
		s.runtime.Bus.Close()
		return fmt.Errorf("start status server: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)

	if s.sink != nil {
		s.sink.Install(s.runtime.Bus)
		g.Go(func() error {
			return s.sink.Run(gctx)
		})
	}

	g.Go(func() error {
		return s.serve(gctx, listener)
	})

	g.Go(func() error {
		err := s.runtime.Run(gctx)
		if err != nil {
			return fmt.Errorf("run connection: %w", err)
		}
		if ctx.Err() == nil {
			return errors.New("connection closed")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// Addr is the bound status server address, available once Ready is closed.
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Ready is closed once the status server is listening.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve status: %w", err)
	}

	return nil
}

func (s *Service) trackState(_ context.Context, payload any) error {
	change, ok := payload.(irc.StateChange)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", bus.TopicState, payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = change.To
	if change.Err != nil {
		s.lastErr = change.Err.Error()
	}

	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make([]string, 0, len(s.runtime.Channels))
	for _, ch := range s.runtime.Channels {
		channels = append(channels, ch.Name())
	}

	resp := statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Connection: connectionStatus{
			State:    s.state.String(),
			Error:    s.lastErr,
			Channels: channels,
		},
	}
	if s.sink != nil {
		resp.ChatLog = &chatLogStatus{Written: s.sink.Written(), Dropped: s.sink.Dropped()}
	}

	return resp
}

// isReady is true only while the connection is active.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == irc.StateActive
}

func (s *Service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
