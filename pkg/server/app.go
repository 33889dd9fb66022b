package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "SignalForge/internal/middleware"
	"SignalForge/internal/usecase"
	pkgcache "SignalForge/pkg/cache"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/queue"

	"github.com/robfig/cron/v3"
)

// Closer is any infrastructure client the app owns and must close on
// shutdown.
type Closer interface {
	Close() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	pipeline    *usecase.SignalPipeline
	dispatcher  *usecase.NotificationDispatcher
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	explainQ    *queue.RedisQueue
	ingest      *mid.IngestPipeline
	runLock     pkgcache.Service
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	cron        *cron.Cron
	closers     []Closer
	l           *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	pipeline *usecase.SignalPipeline,
	dispatcher *usecase.NotificationDispatcher,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		consumer:   consumer,
		kh:         kh,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetExplainQueue attaches the background explanation queue.
func (a *App) SetExplainQueue(q *queue.RedisQueue) { a.explainQ = q }

// SetIngestPipeline attaches the bar ingest pipeline so its buffer flusher
// follows the app lifecycle.
func (a *App) SetIngestPipeline(p *mid.IngestPipeline) { a.ingest = p }

// SetRunLock attaches the cache used to serialize scheduled runs across
// instances. A run whose lock is already held is skipped, not queued.
func (a *App) SetRunLock(c pkgcache.Service) { a.runLock = c }

// AddCloser registers an infrastructure client for shutdown.
func (a *App) AddCloser(c Closer) { a.closers = append(a.closers, c) }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	a.l = l

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start ingest pipeline buffer flushing
	if a.ingest != nil {
		a.ingest.Start(ctx)
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start explanation queue workers
	if a.explainQ != nil {
		if err := a.explainQ.Start(); err != nil {
			l.Error("explain queue start error", applogger.Error(err))
		} else {
			a.explainQ.StartRetryProcessor()
			l.Info("explain queue started")
		}
	}

	// Scheduled signal generation and dispatch
	if a.cfg.Scheduler.Enabled {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(a.cfg.Scheduler.SignalSpec, func() {
			a.runLocked(ctx, pkgcache.GenerateKey("scheduler", "signals"), func() {
				generated := a.pipeline.GenerateBatch(ctx, a.cfg.Strategies.Symbols)
				l.Info("scheduled signal run complete", applogger.Int("generated", len(generated)))
			})
		}); err != nil {
			l.Error("schedule signal run", applogger.Error(err))
			return err
		}
		if _, err := a.cron.AddFunc(a.cfg.Scheduler.DispatchSpec, func() {
			a.runLocked(ctx, pkgcache.GenerateKey("scheduler", "dispatch"), func() {
				sent, err := a.dispatcher.Dispatch(ctx)
				if err != nil {
					l.Error("scheduled dispatch error", applogger.Error(err))
					return
				}
				l.Info("scheduled dispatch complete", applogger.Int("sent", sent))
			})
		}); err != nil {
			l.Error("schedule dispatch run", applogger.Error(err))
			return err
		}
		a.cron.Start()
		l.Info("scheduler started",
			applogger.String("signal_spec", a.cfg.Scheduler.SignalSpec),
			applogger.String("dispatch_spec", a.cfg.Scheduler.DispatchSpec))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("app started", applogger.Strings("symbols", a.cfg.Strategies.Symbols))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runLocked executes fn while holding the named lock. If the lock is held
// by another instance the run is skipped.
func (a *App) runLocked(ctx context.Context, key string, fn func()) {
	if a.runLock == nil {
		fn()
		return
	}
	ok, err := a.runLock.TryLock(ctx, key, 10*time.Minute)
	if err != nil {
		a.l.Warn("run lock error", applogger.String("key", key), applogger.Error(err))
		return
	}
	if !ok {
		a.l.Debug("run already in progress elsewhere, skipping", applogger.String("key", key))
		return
	}
	defer func() {
		if err := a.runLock.Unlock(ctx, key); err != nil {
			a.l.Warn("run unlock error", applogger.String("key", key), applogger.Error(err))
		}
	}()
	fn()
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.l
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Stop accepting scheduled runs; wait for in-flight jobs
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Stop ingest pipeline
	if a.ingest != nil {
		a.ingest.Stop()
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop explanation queue
	if a.explainQ != nil {
		if err := a.explainQ.Stop(shutdownCtx); err != nil {
			l.Warn("explain queue stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			l.Warn("close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
