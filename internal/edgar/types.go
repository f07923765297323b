package edgar

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FilingMeta identifies one filing from an index query, without its document.
type FilingMeta struct {
	CIK             string    // filer CIK for 13F, issuer CIK for Form 4
	CompanyName     string
	FormType        string
	AccessionNumber string    // with dashes, e.g. "0000320193-24-000012"
	FiledAt         time.Time
	ReportDate      time.Time // quarter end for 13F, zero otherwise
}

// Form4Document is the validated content of one Form 4 filing.
type Form4Document struct {
	AccessionNumber string
	SourceURL       string

	IssuerTicker string // normalized to uppercase
	IssuerName   string
	IssuerCIK    string

	OwnerName         string
	OwnerCIK          string
	IsDirector        bool
	IsOfficer         bool
	IsTenPercentOwner bool
	OfficerTitle      string

	PeriodOfReport time.Time
	Is10b51        bool

	Transactions []Form4Transaction
}

// Empty reports whether the filing carries nothing worth persisting: an
// issuer block with neither ticker nor name, or zero non-derivative
// transaction line items. Empty filings are skipped, not errored.
func (d *Form4Document) Empty() bool {
	if d.IssuerTicker == "" && d.IssuerName == "" {
		return true
	}
	return len(d.Transactions) == 0
}

// Form4Transaction is one non-derivative transaction line item, in document
// order. PricePerShare is nil when the filing omits it (common for awards
// and gifts).
type Form4Transaction struct {
	Code             string
	Date             time.Time
	Shares           decimal.Decimal
	PricePerShare    *decimal.Decimal
	SharesOwnedAfter *decimal.Decimal
}

// HoldingItem is one row of a 13F information table. Value is already scaled
// from the reported thousands to whole dollars.
type HoldingItem struct {
	CUSIP        string
	IssuerName   string
	ClassTitle   string
	Shares       int64
	Value        int64
	ShrsOrPrnTyp string
	PutCall      string
	VotingSole   int64
	VotingShared int64
	VotingNone   int64
}

// ---- XML field helpers ----

// Form 4 wraps most leaf values in a <value> element; footnote-only fields
// omit it entirely, so every wrapper is optional at the decode level.
type xmlValue struct {
	Value string `xml:"value"`
}

func (v xmlValue) trimmed() string {
	return strings.TrimSpace(v.Value)
}

func parseSECBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parseSECDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02-07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseSECDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
