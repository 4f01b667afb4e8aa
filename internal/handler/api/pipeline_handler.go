package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MacoPull/internal/domain/models"
	drepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/service/ratelimit"
	"MacoPull/internal/usecase"
	"MacoPull/pkg/cache"
	xhttp "MacoPull/pkg/http"
	xlogger "MacoPull/pkg/logger"
)

const summariesCacheKey = "summaries:all"

// Runner executes one pipeline batch.
type Runner interface {
	Run(ctx context.Context) (*models.BatchResult, error)
}

// SeriesReader serves annotated series windows.
type SeriesReader interface {
	GetSeries(ctx context.Context, p usecase.GetSeriesParams) (*usecase.GetSeriesResult, error)
}

// HandlerOption configures PipelineHandler.
type HandlerOption func(*PipelineHandler)

// WithSummaryCache caches the aggregate summaries read for ttl.
func WithSummaryCache(c cache.Service, ttl time.Duration) HandlerOption {
	return func(h *PipelineHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithRunLimiter throttles POST /api/run per client address.
func WithRunLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *PipelineHandler) { h.limiter = l }
}

// WithWarehouseReader exposes recent warehouse rows.
func WithWarehouseReader(w drepo.WarehouseSink) HandlerOption {
	return func(h *PipelineHandler) { h.warehouse = w }
}

// PipelineHandler serves the pipeline trigger and the read side of its outputs.
type PipelineHandler struct {
	logger    *xlogger.Logger
	runner    Runner
	series    SeriesReader
	summaries drepo.SummaryStore
	warehouse drepo.WarehouseSink
	cache     cache.Service
	cacheTTL  time.Duration
	limiter   *ratelimit.Limiter
}

func NewPipelineHandler(logger *xlogger.Logger, runner Runner, series SeriesReader, summaries drepo.SummaryStore, opts ...HandlerOption) *PipelineHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &PipelineHandler{logger: logger, runner: runner, series: series, summaries: summaries}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/run", h.Run)
	g.GET("/summaries", h.Summaries)
	g.GET("/summaries/:symbol", h.Summary)
	g.GET("/series/:symbol", h.Series)
	if h.warehouse != nil {
		g.GET("/warehouse/:symbol", h.Warehouse)
	}
}

// Run triggers one batch. 200 when every symbol succeeded, 502 otherwise;
// the body is the batch result either way.
func (h *PipelineHandler) Run(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return h.fail(c, xhttp.TooManyRequestsError("too many run requests"))
	}

	// The batch outlives a disconnected client.
	res, err := h.runner.Run(context.WithoutCancel(c.Request().Context()))
	if errors.Is(err, drepo.ErrRunInProgress) {
		return h.fail(c, xhttp.ConflictError("a run is already in progress").WithError(err))
	}
	if err != nil {
		h.logger.Error("run usecase error", xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("run could not start").WithError(err))
	}

	if h.cache != nil {
		_ = h.cache.Delete(c.Request().Context(), summariesCacheKey)
	}
	if res.Failed() {
		return xhttp.DataResponse(c, http.StatusBadGateway, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineHandler) Summaries(c echo.Context) error {
	all, err := cache.GetOrLoad(c.Request().Context(), h.cache, summariesCacheKey, h.cacheTTL, h.summaries.ReadAll)
	if err != nil {
		h.logger.Error("summaries read error", xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("summaries unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, all)
}

func (h *PipelineHandler) Summary(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, err := h.summaries.ReadSummary(c.Request().Context(), req.Symbol)
	if errors.Is(err, drepo.ErrNotFound) {
		return h.fail(c, xhttp.NotFoundErrorf("no summary for %s", req.Symbol))
	}
	if err != nil {
		h.logger.Error("summary read error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("summary unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *PipelineHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.series.GetSeries(c.Request().Context(), usecase.GetSeriesParams{Symbol: req.Symbol, Limit: req.Limit})
	if errors.Is(err, drepo.ErrNotFound) {
		return h.fail(c, xhttp.NotFoundErrorf("no series for %s", req.Symbol))
	}
	if errors.Is(err, drepo.ErrMalformed) {
		h.logger.Error("stored series malformed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("stored series is malformed").WithError(err))
	}
	if err != nil {
		h.logger.Error("series usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("series unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, toSeriesResponse(res))
}

func (h *PipelineHandler) Warehouse(c echo.Context) error {
	req := &models.WarehouseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.warehouse.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("warehouse read error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return h.fail(c, xhttp.InternalError("warehouse unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, toWarehouseRows(rows), int64(len(rows)))
}

func (h *PipelineHandler) fail(c echo.Context, err *xhttp.AppError) error {
	return xhttp.AppErrorResponse(c, err)
}
