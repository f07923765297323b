package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the canonical classification of a Form 4 line item.
type TransactionType string

const (
	TxPurchase    TransactionType = "Purchase"
	TxSale        TransactionType = "Sale"
	TxAward       TransactionType = "Award"
	TxDisposition TransactionType = "Disposition"
	TxGift        TransactionType = "Gift"
	TxExercise    TransactionType = "Exercise"
)

// ClassifyTransactionCode maps SEC transaction codes to canonical types.
// Unknown codes are carried through as-is so nothing is silently dropped.
func ClassifyTransactionCode(code string) TransactionType {
	switch code {
	case "P":
		return TxPurchase
	case "S":
		return TxSale
	case "A":
		return TxAward
	case "D":
		return TxDisposition
	case "G":
		return TxGift
	case "M", "X":
		return TxExercise
	default:
		return TransactionType(code)
	}
}

type Company struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	CIK       *string   `json:"cik,omitempty"`
	Sector    *string   `json:"sector,omitempty"`
	Industry  *string   `json:"industry,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Insider struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CIK       *string   `json:"cik,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Institution struct {
	ID           int64            `json:"id"`
	CIK          string           `json:"cik"`
	Name         string           `json:"name"`
	Type         *string          `json:"type,omitempty"`
	EstimatedAUM *decimal.Decimal `json:"estimated_aum,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// InsiderTransaction is one line item of a Form 4. Rows are immutable once
// written; (accession_number, line_ordinal) is the dedup key.
type InsiderTransaction struct {
	ID               int64            `json:"id"`
	CompanyID        int64            `json:"company_id"`
	InsiderID        int64            `json:"insider_id"`
	AccessionNumber  string           `json:"accession_number"`
	LineOrdinal      int              `json:"line_ordinal"`
	FiledAt          time.Time        `json:"filed_at"`
	TransactionDate  time.Time        `json:"transaction_date"`
	Type             TransactionType  `json:"type"`
	Shares           decimal.Decimal  `json:"shares"`
	PricePerShare    *decimal.Decimal `json:"price_per_share,omitempty"`
	TotalValue       *decimal.Decimal `json:"total_value,omitempty"`
	SharesOwnedAfter *decimal.Decimal `json:"shares_owned_after,omitempty"`
	IsOfficer        bool             `json:"is_officer"`
	IsDirector       bool             `json:"is_director"`
	IsTenPctOwner    bool             `json:"is_ten_pct_owner"`
	OfficerTitle     *string          `json:"officer_title,omitempty"`
	IsPlanned        bool             `json:"is_10b5_1"`
	SourceURL        string           `json:"source_url"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ComputeTotalValue returns shares*price rounded to cents, or nil when the
// price is unknown (award/gift codes commonly omit it). Never zero-defaults.
func ComputeTotalValue(shares decimal.Decimal, price *decimal.Decimal) *decimal.Decimal {
	if price == nil {
		return nil
	}
	total := shares.Mul(*price).Round(2)
	return &total
}

// InstitutionalHolding is one 13F information-table row for one quarter.
// (institution_id, cusip, report_date) is the natural key. CompanyID is nil
// when the CUSIP could not be mapped to a known ticker; the row is kept so
// coverage totals stay honest.
type InstitutionalHolding struct {
	ID             int64            `json:"id"`
	InstitutionID  int64            `json:"institution_id"`
	CompanyID      *int64           `json:"company_id,omitempty"`
	CUSIP          string           `json:"cusip"`
	IssuerName     string           `json:"issuer_name"`
	ReportDate     time.Time        `json:"report_date"`
	Shares         decimal.Decimal  `json:"shares"`
	MarketValue    decimal.Decimal  `json:"market_value"`
	PctOfPortfolio *decimal.Decimal `json:"pct_of_portfolio,omitempty"`
	SharesChange   *decimal.Decimal `json:"shares_change,omitempty"`
	IsNewPosition  bool             `json:"is_new_position"`
	IsClosed       bool             `json:"is_closed"`
	VotingSole     int64            `json:"voting_sole"`
	VotingShared   int64            `json:"voting_shared"`
	VotingNone     int64            `json:"voting_none"`
	CreatedAt      time.Time        `json:"created_at"`
}
