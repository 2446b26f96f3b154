package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/camuig/chartvision-agent/internal/capture"
	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
	"github.com/camuig/chartvision-agent/internal/notify"
	"github.com/camuig/chartvision-agent/internal/platform"
	"github.com/camuig/chartvision-agent/internal/safety"
	"github.com/camuig/chartvision-agent/internal/scheduler"
	"github.com/camuig/chartvision-agent/internal/session"
	"github.com/camuig/chartvision-agent/internal/signal"
	"github.com/camuig/chartvision-agent/internal/storage"
	"github.com/camuig/chartvision-agent/internal/stream"
	"github.com/camuig/chartvision-agent/internal/trading"
)

// Server exposes the agent's control surface to the dashboard: frame ingest,
// analysis triggers, the kill switch, manual trading and state snapshots.
type Server struct {
	httpServer *http.Server
	baseCtx    context.Context

	client    *platform.Client
	sched     *scheduler.Scheduler
	gate      *trading.Gate
	interlock *safety.Interlock
	frames    *capture.Store
	signals   *signal.Normalizer
	queue     *notify.Queue
	streamMgr *stream.Manager // nil when running session-less
	repo      *storage.Repository
	config    *config.Config
	logger    *logger.Logger

	mu   sync.Mutex
	sess *session.Session
}

func NewServer(
	baseCtx context.Context,
	client *platform.Client,
	sched *scheduler.Scheduler,
	gate *trading.Gate,
	interlock *safety.Interlock,
	frames *capture.Store,
	signals *signal.Normalizer,
	queue *notify.Queue,
	streamMgr *stream.Manager,
	repo *storage.Repository,
	sess *session.Session,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		baseCtx:   baseCtx,
		client:    client,
		sched:     sched,
		gate:      gate,
		interlock: interlock,
		frames:    frames,
		signals:   signals,
		queue:     queue,
		streamMgr: streamMgr,
		repo:      repo,
		sess:      sess,
		config:    cfg,
		logger:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/auto/start", s.handleAutoStart)
	mux.HandleFunc("/api/auto/stop", s.handleAutoStop)
	mux.HandleFunc("/api/killswitch", s.handleKillSwitch)
	mux.HandleFunc("/api/trade/entry", s.handleTradeEntry)
	mux.HandleFunc("/api/trade/exit", s.handleTradeExit)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/signals/log", s.handleSignalLog)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/api/stream/restart", s.handleStreamRestart)
	mux.HandleFunc("/api/broker/connect", s.handleBrokerConnect)
	mux.HandleFunc("/api/broker/disconnect", s.handleBrokerDisconnect)
	mux.HandleFunc("/api/mode", s.handleMode)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("control API starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control API: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) session() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sess
}

func (s *Server) updateSession(fn func(*session.Session)) {
	s.mu.Lock()
	fn(s.sess)
	s.mu.Unlock()
}
