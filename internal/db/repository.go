package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/insiderflow/insiderflow/internal/analytics"
	"github.com/insiderflow/insiderflow/internal/models"
)

// Repository is the canonical-store surface: entity resolution, idempotent
// persistence, and the read queries the aggregators run on. Uniqueness is
// enforced by the store's natural-key constraints, not by read-then-write
// sequences, so concurrent sweeps converge instead of duplicating.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// isUniqueViolation reports whether err is a duplicate-natural-key conflict,
// the one persistence error that is an expected outcome rather than a
// failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- Entity resolution ----

// ResolveCompany returns the company id for a ticker, creating the record on
// first sighting. The conflict clause backfills a previously-null CIK but
// never clobbers existing fields; the unique ticker constraint is the
// correctness boundary under concurrent sweeps.
func (r *Repository) ResolveCompany(ctx context.Context, ticker, name string, cik *string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO companies (ticker, name, cik, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			cik = COALESCE(companies.cik, EXCLUDED.cik),
			updated_at = NOW()
		RETURNING id
	`, ticker, name, cik).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving company %s: %w", ticker, err)
	}
	return id, nil
}

// ResolveInsider resolves in order: exact CIK match, exact name match, then
// create. Two distinct people sharing a name with no CIK on file merge into
// one record; that is the accepted limitation of name-based matching.
func (r *Repository) ResolveInsider(ctx context.Context, name string, cik *string) (int64, error) {
	var id int64

	if cik != nil && *cik != "" {
		err := r.pool.QueryRow(ctx, `SELECT id FROM insiders WHERE cik = $1`, *cik).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("looking up insider by cik: %w", err)
		}
	}

	err := r.pool.QueryRow(ctx, `
		SELECT id FROM insiders WHERE name = $1 ORDER BY id LIMIT 1
	`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("looking up insider by name: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO insiders (name, cik, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
		RETURNING id
	`, name, cik).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !isUniqueViolation(err) {
		return 0, fmt.Errorf("creating insider %s: %w", name, err)
	}

	// Lost a race with a concurrent sweep; the row exists now.
	return r.ResolveInsider(ctx, name, cik)
}

// ResolveInstitution upserts a 13F filer by CIK.
func (r *Repository) ResolveInstitution(ctx context.Context, cik, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO institutions (cik, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cik) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, cik, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving institution %s: %w", cik, err)
	}
	return id, nil
}

// ---- Idempotent persistence ----

// InsertTransaction writes one Form 4 line item. A duplicate
// (accession_number, line_ordinal) is absorbed silently and reported as
// created=false; any other error surfaces.
func (r *Repository) InsertTransaction(ctx context.Context, t *models.InsiderTransaction) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO insider_transactions (
			company_id, insider_id, accession_number, line_ordinal,
			filed_at, transaction_date, type,
			shares, price_per_share, total_value, shares_owned_after,
			is_officer, is_director, is_ten_pct_owner, officer_title,
			is_10b5_1, source_url, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, NOW()
		)
		ON CONFLICT (accession_number, line_ordinal) DO NOTHING
	`,
		t.CompanyID, t.InsiderID, t.AccessionNumber, t.LineOrdinal,
		t.FiledAt, t.TransactionDate, string(t.Type),
		t.Shares, decimalPtr(t.PricePerShare), decimalPtr(t.TotalValue), decimalPtr(t.SharesOwnedAfter),
		t.IsOfficer, t.IsDirector, t.IsTenPctOwner, t.OfficerTitle,
		t.IsPlanned, t.SourceURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting transaction %s#%d: %w", t.AccessionNumber, t.LineOrdinal, err)
	}
	return ct.RowsAffected() == 1, nil
}

// InsertHolding writes one 13F information-table row, keyed by
// (institution_id, cusip, report_date) with the same conflict semantics as
// InsertTransaction.
func (r *Repository) InsertHolding(ctx context.Context, h *models.InstitutionalHolding) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO institutional_holdings (
			institution_id, company_id, cusip, issuer_name, report_date,
			shares, market_value, pct_of_portfolio, shares_change,
			is_new_position, voting_sole, voting_shared, voting_none, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, NOW()
		)
		ON CONFLICT (institution_id, cusip, report_date) DO NOTHING
	`,
		h.InstitutionID, h.CompanyID, h.CUSIP, h.IssuerName, h.ReportDate,
		h.Shares, h.MarketValue, decimalPtr(h.PctOfPortfolio), decimalPtr(h.SharesChange),
		h.IsNewPosition, h.VotingSole, h.VotingShared, h.VotingNone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting holding %s@%s: %w", h.CUSIP, h.ReportDate.Format("2006-01-02"), err)
	}
	return ct.RowsAffected() == 1, nil
}

// PriorHolding returns the share count of the institution's most recent
// earlier filing for the same CUSIP, or nil when there is none (a new
// position).
func (r *Repository) PriorHolding(ctx context.Context, institutionID int64, cusip string, before time.Time) (*decimal.Decimal, error) {
	var shares decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT shares FROM institutional_holdings
		WHERE institution_id = $1 AND cusip = $2 AND report_date < $3
		ORDER BY report_date DESC
		LIMIT 1
	`, institutionID, cusip, before).Scan(&shares)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up prior holding %s: %w", cusip, err)
	}
	return &shares, nil
}

// MarkClosedPositions flags the institution's prior-quarter rows that have
// no successor row at reportDate. Safe to re-run; already-flagged rows stay
// flagged.
func (r *Repository) MarkClosedPositions(ctx context.Context, institutionID int64, reportDate time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE institutional_holdings h
		SET is_closed = TRUE
		WHERE h.institution_id = $1
		  AND h.report_date = (
			SELECT MAX(report_date) FROM institutional_holdings
			WHERE institution_id = $1 AND report_date < $2
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM institutional_holdings c
			WHERE c.institution_id = $1 AND c.cusip = h.cusip AND c.report_date = $2
		  )
	`, institutionID, reportDate)
	if err != nil {
		return 0, fmt.Errorf("marking closed positions: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ---- Aggregator reads ----

// RecentPurchases loads purchase line items with a known value since the
// given date, newest first, for cluster detection.
func (r *Repository) RecentPurchases(ctx context.Context, since time.Time, limit int) ([]analytics.PurchaseTx, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.ticker, c.name, i.id, i.name, t.total_value, t.transaction_date
		FROM insider_transactions t
		JOIN companies c ON c.id = t.company_id
		JOIN insiders i ON i.id = t.insider_id
		WHERE t.type = $1
		  AND t.transaction_date >= $2
		  AND t.total_value IS NOT NULL
		ORDER BY t.transaction_date DESC
		LIMIT $3
	`, string(models.TxPurchase), since, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent purchases: %w", err)
	}
	defer rows.Close()

	var out []analytics.PurchaseTx
	for rows.Next() {
		var tx analytics.PurchaseTx
		if err := rows.Scan(&tx.Ticker, &tx.CompanyName, &tx.InsiderID, &tx.InsiderName, &tx.Value, &tx.Date); err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// LatestReportDate returns the most recent holdings report date for a
// company ticker, or nil when no holdings reference it.
func (r *Repository) LatestReportDate(ctx context.Context, ticker string) (*time.Time, error) {
	var d *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(h.report_date)
		FROM institutional_holdings h
		JOIN companies c ON c.id = h.company_id
		WHERE c.ticker = $1
	`, ticker).Scan(&d)
	if err != nil {
		return nil, fmt.Errorf("querying latest report date: %w", err)
	}
	return d, nil
}

// HoldingsFlow loads the per-institution deltas for one company and report
// date, the input of the flow aggregator.
func (r *Repository) HoldingsFlow(ctx context.Context, ticker string, reportDate time.Time) ([]analytics.HoldingDelta, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT inst.name, h.shares_change, h.is_new_position
		FROM institutional_holdings h
		JOIN companies c ON c.id = h.company_id
		JOIN institutions inst ON inst.id = h.institution_id
		WHERE c.ticker = $1 AND h.report_date = $2
	`, ticker, reportDate)
	if err != nil {
		return nil, fmt.Errorf("querying holdings flow: %w", err)
	}
	defer rows.Close()

	var out []analytics.HoldingDelta
	for rows.Next() {
		var d analytics.HoldingDelta
		if err := rows.Scan(&d.InstitutionName, &d.SharesChange, &d.IsNewPosition); err != nil {
			return nil, fmt.Errorf("scanning holding delta: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- Operator status ----

// Status is the operator-facing snapshot returned by the status endpoint.
type Status struct {
	Companies        int        `json:"companies"`
	Insiders         int        `json:"insiders"`
	Institutions     int        `json:"institutions"`
	Transactions     int        `json:"transactions"`
	Holdings         int        `json:"holdings"`
	LatestFiledAt    *time.Time `json:"latest_filed_at,omitempty"`
	LatestReportDate *time.Time `json:"latest_report_date,omitempty"`
}

func (r *Repository) GetStatus(ctx context.Context) (*Status, error) {
	var s Status
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM insiders),
			(SELECT COUNT(*) FROM institutions),
			(SELECT COUNT(*) FROM insider_transactions),
			(SELECT COUNT(*) FROM institutional_holdings),
			(SELECT MAX(filed_at) FROM insider_transactions),
			(SELECT MAX(report_date) FROM institutional_holdings)
	`).Scan(&s.Companies, &s.Insiders, &s.Institutions, &s.Transactions, &s.Holdings,
		&s.LatestFiledAt, &s.LatestReportDate)
	if err != nil {
		return nil, fmt.Errorf("querying status: %w", err)
	}
	return &s, nil
}

// decimalPtr converts a *decimal.Decimal to a driver value, keeping NULL for
// nil (a missing price must persist as NULL, never zero).
func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
