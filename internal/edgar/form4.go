package edgar

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// ownershipDocument mirrors the Form 4 primary XML document. Every field is
// optional at the decode level; validation happens in toDocument.
type ownershipDocument struct {
	XMLName        xml.Name `xml:"ownershipDocument"`
	PeriodOfReport string   `xml:"periodOfReport"`
	Aff10b5One     string   `xml:"aff10b5One"`
	Issuer         struct {
		CIK    string `xml:"issuerCik"`
		Name   string `xml:"issuerName"`
		Ticker string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`
	ReportingOwners []struct {
		ID struct {
			CIK  string `xml:"rptOwnerCik"`
			Name string `xml:"rptOwnerName"`
		} `xml:"reportingOwnerId"`
		Relationship struct {
			IsDirector        string `xml:"isDirector"`
			IsOfficer         string `xml:"isOfficer"`
			IsTenPercentOwner string `xml:"isTenPercentOwner"`
			OfficerTitle      string `xml:"officerTitle"`
		} `xml:"reportingOwnerRelationship"`
	} `xml:"reportingOwner"`
	NonDerivativeTable struct {
		Transactions []nonDerivativeTransaction `xml:"nonDerivativeTransaction"`
	} `xml:"nonDerivativeTable"`
}

type nonDerivativeTransaction struct {
	TransactionDate xmlValue `xml:"transactionDate"`
	Coding          struct {
		TransactionCode string `xml:"transactionCode"`
	} `xml:"transactionCoding"`
	Amounts struct {
		Shares        xmlValue `xml:"transactionShares"`
		PricePerShare xmlValue `xml:"transactionPricePerShare"`
	} `xml:"transactionAmounts"`
	PostAmounts struct {
		SharesOwnedAfter xmlValue `xml:"sharesOwnedFollowingTransaction"`
	} `xml:"postTransactionAmounts"`
}

// FetchForm4 downloads and decodes one Form 4 filing.
//
// The primary document lives inside the full submission text file at a
// deterministic path keyed by issuer CIK and accession number (hyphens
// stripped for the directory segment, kept for the file name). The XML
// payload is wrapped in an <XML>...</XML> envelope within that file.
func (c *Client) FetchForm4(ctx context.Context, cik, accessionNumber string) (*Form4Document, error) {
	srcURL := fmt.Sprintf("%s/%s/%s/%s.txt",
		c.baseURL,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accessionNumber, "-", ""),
		accessionNumber,
	)

	raw, err := c.Fetch(ctx, srcURL)
	if err != nil {
		return nil, err
	}

	payload, err := extractXMLEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("form 4 %s: %w", accessionNumber, err)
	}

	var doc ownershipDocument
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("form 4 %s: decoding ownership document: %w", accessionNumber, err)
	}

	return doc.toDocument(accessionNumber, srcURL), nil
}

// extractXMLEnvelope cuts the first <XML>...</XML> section out of a full
// submission text file. Some filers name the embedded document form4.xml,
// others primarydocument.xml; the envelope markers are the stable part.
func extractXMLEnvelope(raw []byte) ([]byte, error) {
	s := string(raw)
	_, rest, found := strings.Cut(s, "<XML>")
	if !found {
		return nil, fmt.Errorf("no <XML> envelope in submission")
	}
	payload, _, found := strings.Cut(rest, "</XML>")
	if !found {
		return nil, fmt.Errorf("unterminated <XML> envelope in submission")
	}
	return []byte(strings.TrimSpace(payload)), nil
}

func (doc *ownershipDocument) toDocument(accessionNumber, srcURL string) *Form4Document {
	out := &Form4Document{
		AccessionNumber: accessionNumber,
		SourceURL:       srcURL,
		IssuerTicker:    normalizeTicker(doc.Issuer.Ticker),
		IssuerName:      strings.TrimSpace(doc.Issuer.Name),
		IssuerCIK:       strings.TrimSpace(doc.Issuer.CIK),
		PeriodOfReport:  parseSECDate(doc.PeriodOfReport),
		Is10b51:         parseSECBool(doc.Aff10b5One),
	}

	if len(doc.ReportingOwners) > 0 {
		owner := doc.ReportingOwners[0]
		out.OwnerName = strings.TrimSpace(owner.ID.Name)
		out.OwnerCIK = strings.TrimSpace(owner.ID.CIK)
		out.IsDirector = parseSECBool(owner.Relationship.IsDirector)
		out.IsOfficer = parseSECBool(owner.Relationship.IsOfficer)
		out.IsTenPercentOwner = parseSECBool(owner.Relationship.IsTenPercentOwner)
		out.OfficerTitle = strings.TrimSpace(owner.Relationship.OfficerTitle)
	}

	for _, tx := range doc.NonDerivativeTable.Transactions {
		shares := parseSECDecimal(tx.Amounts.Shares.trimmed())
		if shares == nil {
			// A line item without a share count carries no economic content.
			continue
		}
		out.Transactions = append(out.Transactions, Form4Transaction{
			Code:             strings.TrimSpace(tx.Coding.TransactionCode),
			Date:             parseSECDate(tx.TransactionDate.trimmed()),
			Shares:           *shares,
			PricePerShare:    parseSECDecimal(tx.Amounts.PricePerShare.trimmed()),
			SharesOwnedAfter: parseSECDecimal(tx.PostAmounts.SharesOwnedAfter.trimmed()),
		})
	}

	return out
}

// normalizeTicker uppercases and trims an issuer trading symbol. Filers are
// inconsistent about casing and padding; "n/a" style placeholders count as
// missing.
func normalizeTicker(s string) string {
	t := strings.ToUpper(strings.TrimSpace(s))
	switch t {
	case "N/A", "NA", "NONE":
		return ""
	}
	return t
}
