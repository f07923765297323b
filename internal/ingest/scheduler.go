// Package ingest drives the sweep pipeline: filing index -> parser ->
// entity resolution -> idempotent persistence, inside a wall-clock budget.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
	"github.com/insiderflow/insiderflow/internal/edgar"
	"github.com/insiderflow/insiderflow/internal/models"
)

// maxRecordedErrors caps the per-filing error list so response payloads stay
// bounded.
const maxRecordedErrors = 10

// FilingSource lists and fetches SEC filings.
type FilingSource interface {
	ListForm4Filings(ctx context.Context, start, end time.Time, maxCount int) ([]edgar.FilingMeta, error)
	FetchForm4(ctx context.Context, cik, accessionNumber string) (*edgar.Form4Document, error)
	List13FFilings(ctx context.Context, cik string, maxCount int) ([]edgar.FilingMeta, error)
	Fetch13FHoldings(ctx context.Context, cik, accessionNumber string) ([]edgar.HoldingItem, error)
}

// CUSIPMapper resolves CUSIPs to tickers; it may fail or return a partial
// map, in which case holdings keep a null company link.
type CUSIPMapper interface {
	MapCUSIPs(ctx context.Context, cusips []string) (map[string]string, error)
}

// Store is the canonical-store surface the scheduler needs. The persistence
// layer's natural-key conflict handling is the correctness boundary; the
// scheduler never locks.
type Store interface {
	ResolveCompany(ctx context.Context, ticker, name string, cik *string) (int64, error)
	ResolveInsider(ctx context.Context, name string, cik *string) (int64, error)
	ResolveInstitution(ctx context.Context, cik, name string) (int64, error)
	InsertTransaction(ctx context.Context, t *models.InsiderTransaction) (bool, error)
	InsertHolding(ctx context.Context, h *models.InstitutionalHolding) (bool, error)
	PriorHolding(ctx context.Context, institutionID int64, cusip string, before time.Time) (*decimal.Decimal, error)
	MarkClosedPositions(ctx context.Context, institutionID int64, reportDate time.Time) (int64, error)
}

// SweepOptions parameterize one scheduler invocation.
type SweepOptions struct {
	DaysBack   int
	MaxFilings int
	Budget     time.Duration
}

// SweepSummary is the structured tally every invocation returns, for both
// operator inspection and automated alerting.
type SweepSummary struct {
	SweepType        string    `json:"sweep_type"`
	FilingsFound     int       `json:"filings_found"`
	FilingsProcessed int       `json:"filings_processed"`
	Created          int       `json:"created"`
	Skipped          int       `json:"skipped"`
	Remaining        int       `json:"remaining"`
	Errors           []string  `json:"errors,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

func (s *SweepSummary) recordError(accession string, err error) {
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", accession, err))
	}
}

// Scheduler runs sweeps sequentially; the fetcher's rate limit is the
// binding constraint, so there is no per-filing fan-out. Overlapping
// invocations are safe because every write is keyed by its natural key.
type Scheduler struct {
	source FilingSource
	mapper CUSIPMapper
	store  Store
	log    *zap.Logger

	trackedCIKs []string
	delay       time.Duration
}

func NewScheduler(cfg *config.Config, source FilingSource, mapper CUSIPMapper, store Store, log *zap.Logger) *Scheduler {
	return &Scheduler{
		source:      source,
		mapper:      mapper,
		store:       store,
		log:         log,
		trackedCIKs: cfg.TrackedInstitutions,
		delay:       cfg.InterFilingDelay,
	}
}

// RunForm4Sweep ingests Form 4 filings from the lookback window. Only a
// failure to list the index at all is a top-level error; per-filing failures
// are recorded in the summary and the loop continues.
func (s *Scheduler) RunForm4Sweep(ctx context.Context, opts SweepOptions) (*SweepSummary, error) {
	summary := &SweepSummary{SweepType: "form4", StartedAt: time.Now().UTC()}
	deadline := summary.StartedAt.Add(opts.Budget)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -opts.DaysBack)

	filings, err := s.source.ListForm4Filings(ctx, start, end, opts.MaxFilings)
	if err != nil {
		return nil, fmt.Errorf("listing form 4 filings: %w", err)
	}
	summary.FilingsFound = len(filings)

	log := s.log.With(zap.String("sweep", "form4"))
	log.Info("sweep started",
		zap.Int("filings_found", len(filings)),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	for i, meta := range filings {
		// Budget is checked before each filing, not during; a single filing
		// is allowed to finish once started.
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			break
		}
		if i > 0 {
			time.Sleep(s.delay)
		}

		s.processForm4(ctx, meta, summary, log)
		summary.FilingsProcessed++
	}

	summary.Remaining = summary.FilingsFound - summary.FilingsProcessed
	summary.FinishedAt = time.Now().UTC()
	log.Info("sweep finished",
		zap.Int("processed", summary.FilingsProcessed),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("remaining", summary.Remaining),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Scheduler) processForm4(ctx context.Context, meta edgar.FilingMeta, summary *SweepSummary, log *zap.Logger) {
	doc, err := s.source.FetchForm4(ctx, meta.CIK, meta.AccessionNumber)
	if err != nil {
		summary.recordError(meta.AccessionNumber, err)
		return
	}

	// Missing issuer identity or zero line items is an expected shape of
	// real filings, not a failure.
	if doc.Empty() {
		summary.Skipped++
		log.Debug("empty filing skipped", zap.String("accession", meta.AccessionNumber))
		return
	}

	var cik *string
	if doc.IssuerCIK != "" {
		cik = &doc.IssuerCIK
	}
	ticker := doc.IssuerTicker
	if ticker == "" {
		// Issuer name alone cannot key a company row.
		summary.Skipped++
		return
	}

	companyID, err := s.store.ResolveCompany(ctx, ticker, doc.IssuerName, cik)
	if err != nil {
		summary.recordError(meta.AccessionNumber, err)
		return
	}

	var ownerCIK *string
	if doc.OwnerCIK != "" {
		ownerCIK = &doc.OwnerCIK
	}
	insiderID, err := s.store.ResolveInsider(ctx, doc.OwnerName, ownerCIK)
	if err != nil {
		summary.recordError(meta.AccessionNumber, err)
		return
	}

	var officerTitle *string
	if doc.OfficerTitle != "" {
		officerTitle = &doc.OfficerTitle
	}

	for ordinal, tx := range doc.Transactions {
		rec := &models.InsiderTransaction{
			CompanyID:        companyID,
			InsiderID:        insiderID,
			AccessionNumber:  meta.AccessionNumber,
			LineOrdinal:      ordinal,
			FiledAt:          meta.FiledAt,
			TransactionDate:  tx.Date,
			Type:             models.ClassifyTransactionCode(tx.Code),
			Shares:           tx.Shares,
			PricePerShare:    tx.PricePerShare,
			TotalValue:       models.ComputeTotalValue(tx.Shares, tx.PricePerShare),
			SharesOwnedAfter: tx.SharesOwnedAfter,
			IsOfficer:        doc.IsOfficer,
			IsDirector:       doc.IsDirector,
			IsTenPctOwner:    doc.IsTenPercentOwner,
			OfficerTitle:     officerTitle,
			IsPlanned:        doc.Is10b51,
			SourceURL:        doc.SourceURL,
		}
		created, err := s.store.InsertTransaction(ctx, rec)
		if err != nil {
			// Remaining line items of this filing are abandoned; the next
			// sweep will pick them up since the whole filing re-runs.
			summary.recordError(meta.AccessionNumber, err)
			return
		}
		if created {
			summary.Created++
		} else {
			summary.Skipped++
		}
	}
}

// Run13FSweep ingests 13F-HR filings for the tracked institutions.
func (s *Scheduler) Run13FSweep(ctx context.Context, opts SweepOptions) (*SweepSummary, error) {
	summary := &SweepSummary{SweepType: "13f", StartedAt: time.Now().UTC()}
	deadline := summary.StartedAt.Add(opts.Budget)

	log := s.log.With(zap.String("sweep", "13f"))

	var filings []edgar.FilingMeta
	for _, cik := range s.trackedCIKs {
		metas, err := s.source.List13FFilings(ctx, cik, opts.MaxFilings)
		if err != nil {
			// One unreachable institution should not sink the whole sweep,
			// unless nothing at all is listable.
			summary.recordError("CIK "+cik, err)
			continue
		}
		filings = append(filings, metas...)
	}
	if len(filings) == 0 && len(summary.Errors) > 0 && len(s.trackedCIKs) > 0 {
		return nil, fmt.Errorf("listing 13F filings: all %d institutions failed", len(s.trackedCIKs))
	}

	filings = orderFilings(filings, opts.MaxFilings)
	summary.FilingsFound = len(filings)
	log.Info("sweep started", zap.Int("filings_found", len(filings)))

	for i, meta := range filings {
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			break
		}
		if i > 0 {
			time.Sleep(s.delay)
		}

		s.process13F(ctx, meta, summary, log)
		summary.FilingsProcessed++
	}

	summary.Remaining = summary.FilingsFound - summary.FilingsProcessed
	summary.FinishedAt = time.Now().UTC()
	log.Info("sweep finished",
		zap.Int("processed", summary.FilingsProcessed),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("remaining", summary.Remaining),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Scheduler) process13F(ctx context.Context, meta edgar.FilingMeta, summary *SweepSummary, log *zap.Logger) {
	holdings, err := s.source.Fetch13FHoldings(ctx, meta.CIK, meta.AccessionNumber)
	if err != nil {
		summary.recordError(meta.AccessionNumber, err)
		return
	}
	if len(holdings) == 0 {
		summary.Skipped++
		return
	}

	institutionID, err := s.store.ResolveInstitution(ctx, meta.CIK, meta.CompanyName)
	if err != nil {
		summary.recordError(meta.AccessionNumber, err)
		return
	}

	cusips := make([]string, 0, len(holdings))
	var totalValue int64
	for _, h := range holdings {
		cusips = append(cusips, h.CUSIP)
		totalValue += h.Value
	}

	// Ticker mapping failure degrades to null company links; it never fails
	// the filing.
	tickers, err := s.mapper.MapCUSIPs(ctx, cusips)
	if err != nil {
		log.Warn("cusip mapping degraded",
			zap.String("accession", meta.AccessionNumber),
			zap.Int("mapped", len(tickers)),
			zap.Error(err),
		)
	}

	for _, h := range holdings {
		rec := &models.InstitutionalHolding{
			InstitutionID: institutionID,
			CUSIP:         h.CUSIP,
			IssuerName:    h.IssuerName,
			ReportDate:    meta.ReportDate,
			Shares:        decimal.NewFromInt(h.Shares),
			MarketValue:   decimal.NewFromInt(h.Value),
			VotingSole:    h.VotingSole,
			VotingShared:  h.VotingShared,
			VotingNone:    h.VotingNone,
		}

		if ticker, ok := tickers[h.CUSIP]; ok {
			companyID, err := s.store.ResolveCompany(ctx, ticker, h.IssuerName, nil)
			if err != nil {
				summary.recordError(meta.AccessionNumber, err)
				return
			}
			rec.CompanyID = &companyID
		}

		if totalValue > 0 {
			pct := rec.MarketValue.Div(decimal.NewFromInt(totalValue)).Mul(decimal.NewFromInt(100)).Round(4)
			rec.PctOfPortfolio = &pct
		}

		prior, err := s.store.PriorHolding(ctx, institutionID, h.CUSIP, meta.ReportDate)
		if err != nil {
			summary.recordError(meta.AccessionNumber, err)
			return
		}
		if prior == nil {
			rec.IsNewPosition = true
		} else {
			change := rec.Shares.Sub(*prior)
			rec.SharesChange = &change
		}

		created, err := s.store.InsertHolding(ctx, rec)
		if err != nil {
			summary.recordError(meta.AccessionNumber, err)
			return
		}
		if created {
			summary.Created++
		} else {
			summary.Skipped++
		}
	}

	if _, err := s.store.MarkClosedPositions(ctx, institutionID, meta.ReportDate); err != nil {
		log.Warn("marking closed positions failed",
			zap.String("accession", meta.AccessionNumber),
			zap.Error(err),
		)
	}
}

// orderFilings sorts oldest-first and caps the batch, mirroring the index
// resolver's contract for the merged multi-institution list.
func orderFilings(filings []edgar.FilingMeta, max int) []edgar.FilingMeta {
	out := make([]edgar.FilingMeta, len(filings))
	copy(out, filings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FiledAt.Before(out[j].FiledAt)
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
