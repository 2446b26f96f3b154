package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	stdsignal "os/signal"
	"syscall"
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
	"github.com/camuig/chartvision-agent/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/chartvision-agent.db", "path to SQLite database")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level)
	log.Info("starting chartvision-agent", "platform", cfg.Platform.BaseURL)

	// Init database
	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification queue with optional Telegram sink
	queue := notify.NewQueue()
	telegram := notify.NewTelegramSink(cfg, log)
	go telegram.Run(ctx, queue)

	// Platform client and session
	client := platform.NewClient(cfg, log)
	sessMgr := session.NewManager(client, repo, log)
	sess := sessMgr.Acquire(ctx)
	if !sess.Active() {
		log.Warn("running session-less, session-scoped actions disabled")
		queue.Push(notify.LevelWarning, "No session", "Platform session unavailable, push channel disabled")
	}

	if sess.Active() && cfg.GeminiConfigured() {
		if err := client.ConfigureGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model); err != nil {
			log.Error("configure gemini", "error", err)
		}
	}

	// Core components
	interlock := safety.NewInterlock()
	frames := capture.NewStore()
	signals := signal.NewNormalizer(log)
	gate := trading.NewGate(client, interlock, repo, queue, cfg, log)
	sched := scheduler.NewScheduler(client, frames, signals, gate, gate, interlock, queue, repo, cfg, log)

	// Engaging the kill switch synchronously disarms automation. Closing an
	// open position on engage is the operator's choice via config.
	interlock.OnEngage(func() {
		sched.StopAuto()
		gate.SetAutoTrade(false)
		if cfg.Trading.InterlockForceFlat {
			if err := gate.Exit(ctx, "KILL_SWITCH", 0); err != nil && !errors.Is(err, trading.ErrNoPosition) {
				log.Error("force-flat on kill switch", "error", err)
			}
		}
	})

	// Push channel, delivered into the same normalize-then-gate path as
	// on-demand analysis responses.
	var streamMgr *stream.Manager
	if sess.Active() {
		streamMgr = stream.NewManager(client.PushURL(sess.ID), func(raw json.RawMessage) {
			sig, ok := signals.Normalize(raw)
			if !ok {
				return
			}
			if err := repo.SaveSignalLog(&storage.SignalLog{
				Decision:    string(sig.Decision),
				Confidence:  sig.Confidence,
				SafetyScore: sig.SafetyScore,
				Entry:       sig.Entry,
				Stoploss:    sig.Stoploss,
				Target:      sig.Target1,
				Source:      "push",
				RawJSON:     string(raw),
			}); err != nil {
				log.Error("save signal log", "error", err)
			}
			gate.OnSignal(ctx, sig)
		}, queue, log)
		streamMgr.Start()
	}

	// Control API for the dashboard
	webServer := web.NewServer(ctx, client, sched, gate, interlock, frames, signals, queue, streamMgr, repo, sess, cfg, log)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("control API error", "error", err)
		}
	}()

	queue.Push(notify.LevelInfo, "Agent started", fmt.Sprintf("Mode: %s", sess.TradingMode))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	stdsignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.Info("shutdown signal received", "signal", s.String())

	// Graceful shutdown
	sched.StopAuto()
	if streamMgr != nil {
		streamMgr.Close()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("control API shutdown error", "error", err)
	}

	queue.Push(notify.LevelInfo, "Agent stopped", "")
	log.Info("chartvision-agent stopped")
}
