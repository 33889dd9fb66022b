package api

import (
	"encoding/json"
	"errors"
	"time"

	domrepo "SignalForge/internal/domain/repository"
	icache "SignalForge/internal/service/cache"
	"SignalForge/internal/service/metrics"
	"SignalForge/internal/service/ratelimit"
	"SignalForge/internal/usecase"
	pkgcache "SignalForge/pkg/cache"
	xhttp "SignalForge/pkg/http"
	xlogger "SignalForge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OpsEchoHandler exposes the operational surface: health, on-demand runs of
// the signal pipeline, notification dispatch and historical replay. The
// product-facing API lives in a separate service.
type OpsEchoHandler struct {
	logger     *xlogger.Logger
	pipeline   *usecase.SignalPipeline
	dispatcher *usecase.NotificationDispatcher
	replay     *usecase.ReplayUseCase
	bars       domrepo.BarStore
	signals    domrepo.SignalStore
	cache      icache.BytesCache
	rl         *ratelimit.Limiter
	symbols    []string
}

func NewOpsEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.SignalPipeline,
	dispatcher *usecase.NotificationDispatcher,
	replay *usecase.ReplayUseCase,
	bars domrepo.BarStore,
	signals domrepo.SignalStore,
	symbols []string,
) *OpsEchoHandler {
	metrics.Register()
	return &OpsEchoHandler{
		logger:     logger,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		replay:     replay,
		bars:       bars,
		signals:    signals,
		rl:         ratelimit.New(),
		symbols:    symbols,
	}
}

// SetCache enables response caching for read endpoints.
func (h *OpsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *OpsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/ops")
	g.POST("/signals/run", h.RunSignals)
	g.POST("/dispatch/run", h.RunDispatch)
	g.POST("/replay/run", h.RunReplay)
	g.GET("/signals/strong", h.StrongSignals)
	g.GET("/indicators", h.LatestIndicators)
	g.GET("/backtests", h.GetBacktest)
}

func (h *OpsEchoHandler) Health(c echo.Context) error {
	if err := h.bars.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type runSignalsRequest struct {
	Symbols []string `json:"symbols"`
}

func (h *OpsEchoHandler) RunSignals(c echo.Context) error {
	start := time.Now()
	req := &runSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.symbols
	}

	generated := h.pipeline.GenerateBatch(c.Request().Context(), symbols)
	metrics.APILatency.WithLabelValues("signals_run").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"requested": len(symbols),
		"generated": len(generated),
		"signals":   generated,
	})
}

func (h *OpsEchoHandler) RunDispatch(c echo.Context) error {
	start := time.Now()
	sent, err := h.dispatcher.Dispatch(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues("dispatch_run").Inc()
		h.logger.Error("dispatch run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	metrics.APILatency.WithLabelValues("dispatch_run").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, map[string]int{"sent": sent})
}

type runReplayRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	Range  string `json:"range" default:"1y" validate:"oneof=5d 1mo 3mo 6mo 1y 2y 5y"`
}

func (h *OpsEchoHandler) RunReplay(c echo.Context) error {
	start := time.Now()
	req := &runReplayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	summary, err := h.replay.Run(c.Request().Context(), usecase.ReplayParams{
		Symbol:     req.Symbol,
		RangeLabel: req.Range,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues("replay_run").Inc()
		h.logger.Error("replay run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	metrics.APILatency.WithLabelValues("replay_run").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, summary)
}

// LatestIndicators returns the newest indicator snapshot for a symbol,
// recomputing from stored bars when nothing is cached.
func (h *OpsEchoHandler) LatestIndicators(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	snap, err := h.pipeline.LatestSnapshot(c.Request().Context(), symbol)
	if err != nil {
		if errors.Is(err, domrepo.ErrInsufficientData) {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		metrics.APIErrors.WithLabelValues("indicators").Inc()
		h.logger.Error("indicator lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// StrongSignals lists recent signals at or above a strength floor, newest
// first. Operators use it to see what the dispatcher is about to act on.
func (h *OpsEchoHandler) StrongSignals(c echo.Context) error {
	since := xhttp.ParseTimeDefault(c.QueryParam("since"), time.Now().Add(-24*time.Hour))
	minStrength := float64(xhttp.ParseIntDefault(c.QueryParam("min_strength"), 70))
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 50)

	records, err := h.signals.StrongSince(c.Request().Context(), minStrength, since)
	if err != nil {
		metrics.APIErrors.WithLabelValues("signals_strong").Inc()
		h.logger.Error("strong signals lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"count":   len(records),
		"signals": records,
	})
}

func (h *OpsEchoHandler) GetBacktest(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	rangeLabel := c.QueryParam("range")
	if !h.rl.Allow(c.RealIP()+":backtests", 5, 2) {
		h.logger.Warn("backtests rate_limited", xlogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(429, "rate limited")
	}

	cacheKey := pkgcache.GenerateKeyWithParams("backtest", symbol, rangeLabel)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	summary, err := h.replay.Get(c.Request().Context(), symbol, rangeLabel)
	if err != nil {
		metrics.APIErrors.WithLabelValues("backtests").Inc()
		h.logger.Error("backtest lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if summary == nil {
		return xhttp.NotFoundResponse(c, "no backtest for symbol")
	}
	if h.cache != nil {
		if b, err := json.Marshal(summary); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, 30*time.Second)
		}
	}
	return xhttp.SuccessResponse(c, summary)
}
