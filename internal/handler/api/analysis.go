package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MetalPulse/internal/datasource"
	"MetalPulse/internal/domain/models"
	domrepo "MetalPulse/internal/domain/repository"
	"MetalPulse/internal/fragility"
	"MetalPulse/internal/report"
	"MetalPulse/internal/service/metrics"
	"MetalPulse/internal/service/ratelimit"
	"MetalPulse/internal/usecase"
	xhttp "MetalPulse/pkg/http"
	xlogger "MetalPulse/pkg/logger"
	"MetalPulse/pkg/util"
)

// Runner runs analyses on demand.
type Runner interface {
	Analyze(ctx context.Context) (*models.AnalysisRecord, error)
	RunDaily(ctx context.Context) (*models.AnalysisRecord, error)
}

// History reads stored analyses.
type History interface {
	Latest(ctx context.Context) (*models.AnalysisRecord, bool, error)
	Results(ctx context.Context, from, to time.Time, limit int) ([]models.AnalysisRecord, error)
}

// QuoteSource exposes the live quote snapshot.
type QuoteSource interface {
	Snapshot() models.QuoteSnapshot
}

// RunLimit throttles on-demand runs per client.
type RunLimit struct {
	Capacity int
	Refill   time.Duration
	Timeout  time.Duration
}

// AnalysisHandler serves analysis results, reports and live quotes.
type AnalysisHandler struct {
	logger  *xlogger.Logger
	runner  Runner
	history History
	quotes  QuoteSource
	limiter *ratelimit.Limiter
	limit   RunLimit
}

// NewAnalysisHandler wires the handler. quotes may be nil when the live feed
// is disabled.
func NewAnalysisHandler(logger *xlogger.Logger, runner Runner, history History, quotes QuoteSource, limit RunLimit) *AnalysisHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if limit.Capacity <= 0 {
		limit.Capacity = 3
	}
	if limit.Refill <= 0 {
		limit.Refill = 20 * time.Second
	}
	return &AnalysisHandler{
		logger:  logger.Component("api"),
		runner:  runner,
		history: history,
		quotes:  quotes,
		limiter: ratelimit.New(),
		limit:   limit,
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analysis/latest", h.Latest)
	g.POST("/analysis/run", h.Run, h.limiter.Middleware(h.limit.Capacity, h.limit.Refill))
	g.GET("/analysis/history", h.History)
	g.GET("/report/latest", h.Report)
	g.GET("/quotes/latest", h.Quotes)
}

func (h *AnalysisHandler) Latest(c echo.Context) error {
	defer observe("latest", time.Now())

	rec, hit, err := h.history.Latest(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest", err)
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	metrics.CacheLookups.WithLabelValues(outcome).Inc()
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, rec)
}

func (h *AnalysisHandler) Run(c echo.Context) error {
	defer observe("run", time.Now())

	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("run", xhttp.CodeBadRequest).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if h.limit.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limit.Timeout)
		defer cancel()
	}

	var (
		rec *models.AnalysisRecord
		err error
	)
	if req.Sync {
		rec, err = h.runner.RunDaily(ctx)
	} else {
		rec, err = h.runner.Analyze(ctx)
	}
	if err != nil {
		return h.fail(c, "run", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *AnalysisHandler) History(c echo.Context) error {
	defer observe("history", time.Now())

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("history", xhttp.CodeBadRequest).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now()
	to := util.Day(xhttp.ParseDateDefault(req.To, now))
	from := util.Day(xhttp.ParseDateDefault(req.From, to.AddDate(0, 0, -90)))
	if from.After(to) {
		return h.fail(c, "history", xhttp.BadRequestError("from must be on or before to").
			WithParam("from", util.FormatDate(from)).
			WithParam("to", util.FormatDate(to)))
	}

	recs, err := h.history.Results(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *AnalysisHandler) Report(c echo.Context) error {
	defer observe("report", time.Now())

	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("report", xhttp.CodeBadRequest).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, _, err := h.history.Latest(c.Request().Context())
	if err != nil {
		return h.fail(c, "report", err)
	}
	if req.Format == "html" {
		body, err := report.HTML(rec)
		if err != nil {
			return h.fail(c, "report", err)
		}
		return c.HTML(http.StatusOK, body)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+report.FileName(rec)+`"`)
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(rec)))
}

func (h *AnalysisHandler) Quotes(c echo.Context) error {
	defer observe("quotes", time.Now())

	if h.quotes == nil {
		return h.fail(c, "quotes", xhttp.ServiceUnavailableError("live quotes are disabled"))
	}
	return xhttp.SuccessResponse(c, h.quotes.Snapshot())
}

// fail maps err onto the response envelope and counts it.
func (h *AnalysisHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := apiErrors.Resolve(err)
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

var apiErrors = xhttp.ErrorMap{
	Rules: []xhttp.ErrorRule{
		{Target: fragility.ErrMalformedSeries, Build: func(err error) *xhttp.AppError { return xhttp.BadRequestError(err.Error()) }},
		{Target: fragility.ErrInsufficientData, Build: func(err error) *xhttp.AppError { return xhttp.BadRequestError(err.Error()) }},
		{Target: domrepo.ErrNotFound, Build: noAnalysis},
		{Target: usecase.ErrNoPriceData, Build: noAnalysis},
		{Target: usecase.ErrRunInProgress, Build: func(err error) *xhttp.AppError { return xhttp.ConflictError(err.Error()) }},
		{Target: datasource.ErrSourceUnavailable, Build: func(error) *xhttp.AppError {
			return xhttp.ServiceUnavailableError("market data source unavailable")
		}},
	},
	Fallback: "analysis failed",
}

func noAnalysis(error) *xhttp.AppError { return xhttp.NotFoundError("no analysis available") }

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
