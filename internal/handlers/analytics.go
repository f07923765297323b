package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/analytics"
	"github.com/insiderflow/insiderflow/internal/db"
)

const (
	defaultClusterDays  = 30
	defaultMinBuyers    = 2
	defaultClusterLimit = 20
	maxPurchasesScanned = 5000
)

// AnalyticsHandler serves the query-time aggregations. Reads only; never
// coordinates with ingestion beyond accepting eventually-consistent data.
type AnalyticsHandler struct {
	repo *db.Repository
	log  *zap.Logger
}

func NewAnalyticsHandler(repo *db.Repository, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo, log: log}
}

// Clusters handles GET /api/clusters
// Query params:
// - days: purchase window (default 30)
// - min_buyers: distinct-insider threshold (default 2)
// - limit: maximum clusters returned (default 20)
func (h *AnalyticsHandler) Clusters(c echo.Context) error {
	days := defaultClusterDays
	if v := queryInt(c, "days"); v > 0 {
		days = v
	}
	minBuyers := defaultMinBuyers
	if v := queryInt(c, "min_buyers"); v > 0 {
		minBuyers = v
	}
	limit := defaultClusterLimit
	if v := queryInt(c, "limit"); v > 0 {
		limit = v
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	purchases, err := h.repo.RecentPurchases(c.Request().Context(), since, maxPurchasesScanned)
	if err != nil {
		h.log.Error("loading recent purchases failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	clusters := analytics.DetectClusters(purchases, minBuyers, limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"window_days": days,
		"min_buyers":  minBuyers,
		"clusters":    clusters,
	})
}

// Flow handles GET /api/flow/:ticker
// Query params:
// - date: report date YYYY-MM-DD (default: latest on file for the ticker)
func (h *AnalyticsHandler) Flow(c echo.Context) error {
	ctx := c.Request().Context()
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ticker is required"})
	}

	var reportDate time.Time
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		}
		reportDate = d
	} else {
		latest, err := h.repo.LatestReportDate(ctx, ticker)
		if err != nil {
			h.log.Error("latest report date query failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		if latest == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no holdings on file for " + ticker})
		}
		reportDate = *latest
	}

	holdings, err := h.repo.HoldingsFlow(ctx, ticker, reportDate)
	if err != nil {
		h.log.Error("holdings flow query failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	flow := analytics.ComputeFlow(holdings)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ticker":      ticker,
		"report_date": reportDate.Format("2006-01-02"),
		"flow":        flow,
	})
}
