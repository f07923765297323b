package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
	"github.com/insiderflow/insiderflow/internal/db"
	"github.com/insiderflow/insiderflow/internal/ingest"
)

// IngestHandler exposes the sweep trigger surface. The external cron hits
// these endpoints on its cadence; each invocation is bounded by the
// configured wall-clock budget and returns the structured sweep summary.
type IngestHandler struct {
	scheduler *ingest.Scheduler
	repo      *db.Repository
	cfg       *config.Config
	log       *zap.Logger
}

func NewIngestHandler(scheduler *ingest.Scheduler, repo *db.Repository, cfg *config.Config, log *zap.Logger) *IngestHandler {
	return &IngestHandler{
		scheduler: scheduler,
		repo:      repo,
		cfg:       cfg,
		log:       log,
	}
}

// SweepResponse wraps a sweep summary for the trigger surface.
type SweepResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Summary *ingest.SweepSummary `json:"summary,omitempty"`
}

// IngestForm4 handles POST /admin/ingest/form4
// Query params:
// - days: lookback window in days (default from config)
// - max: maximum filings this invocation (default from config)
func (h *IngestHandler) IngestForm4(c echo.Context) error {
	opts := h.sweepOptions(c)

	summary, err := h.scheduler.RunForm4Sweep(c.Request().Context(), opts)
	if err != nil {
		h.log.Error("form4 sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, SweepResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, SweepResponse{Success: true, Summary: summary})
}

// Ingest13F handles POST /admin/ingest/13f
// Query params:
// - max: maximum filings this invocation (default from config)
func (h *IngestHandler) Ingest13F(c echo.Context) error {
	opts := h.sweepOptions(c)

	summary, err := h.scheduler.Run13FSweep(c.Request().Context(), opts)
	if err != nil {
		h.log.Error("13f sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, SweepResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, SweepResponse{Success: true, Summary: summary})
}

// IngestStatus handles GET /admin/ingest/status
// Returns row counts and filed-at watermarks for operator inspection.
func (h *IngestHandler) IngestStatus(c echo.Context) error {
	status, err := h.repo.GetStatus(c.Request().Context())
	if err != nil {
		h.log.Error("status query failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, SweepResponse{
			Success: false,
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, status)
}

func (h *IngestHandler) sweepOptions(c echo.Context) ingest.SweepOptions {
	opts := ingest.SweepOptions{
		DaysBack:   h.cfg.Form4LookbackDays,
		MaxFilings: h.cfg.MaxFilingsPerRun,
		Budget:     h.cfg.SweepBudget,
	}
	if v := queryInt(c, "days"); v > 0 {
		opts.DaysBack = v
	}
	if v := queryInt(c, "max"); v > 0 && v <= h.cfg.MaxFilingsPerRun {
		opts.MaxFilings = v
	}
	return opts
}

func queryInt(c echo.Context, name string) int {
	if raw := c.QueryParam(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}
