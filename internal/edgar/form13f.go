package edgar

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// informationTable mirrors a 13F information-table XML document.
type informationTable struct {
	XMLName xml.Name    `xml:"informationTable"`
	Rows    []infoTable `xml:"infoTable"`
}

type infoTable struct {
	IssuerName string `xml:"nameOfIssuer"`
	ClassTitle string `xml:"titleOfClass"`
	CUSIP      string `xml:"cusip"`
	Value      int64  `xml:"value"`
	Shares     int64  `xml:"shrsOrPrnAmt>sshPrnamt"`
	ShPrnType  string `xml:"shrsOrPrnAmt>sshPrnamtType"`
	PutCall    string `xml:"putCall"`
	Voting     struct {
		Sole   int64 `xml:"Sole"`
		Shared int64 `xml:"Shared"`
		None   int64 `xml:"None"`
	} `xml:"votingAuthority"`
}

// filingIndex is the directory listing for one accession's archive folder.
type filingIndex struct {
	Directory struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// Fetch13FHoldings downloads and decodes the information table of one 13F-HR
// filing. The table's file name varies by filer, so the accession folder's
// index is consulted first; primary_doc.xml is the cover page and skipped.
//
// Reported values are in thousands of dollars and are scaled to whole
// dollars here. Rows with a CUSIP shorter than 9 characters are dropped;
// everything else is kept even when the CUSIP cannot later be mapped to a
// ticker.
func (c *Client) Fetch13FHoldings(ctx context.Context, cik, accessionNumber string) ([]HoldingItem, error) {
	folder := fmt.Sprintf("%s/%s/%s",
		c.baseURL,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accessionNumber, "-", ""),
	)

	body, err := c.Fetch(ctx, folder+"/index.json")
	if err != nil {
		return nil, fmt.Errorf("13f %s: fetching filing index: %w", accessionNumber, err)
	}

	var idx filingIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("13f %s: decoding filing index: %w", accessionNumber, err)
	}

	var candidates []string
	for _, item := range idx.Directory.Items {
		name := strings.ToLower(item.Name)
		if !strings.HasSuffix(name, ".xml") || name == "primary_doc.xml" {
			continue
		}
		candidates = append(candidates, item.Name)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("13f %s: no information table document in filing", accessionNumber)
	}

	var lastErr error
	for _, name := range candidates {
		raw, err := c.Fetch(ctx, folder+"/"+name)
		if err != nil {
			lastErr = err
			continue
		}
		holdings, err := decodeInformationTable(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if len(holdings) > 0 {
			return holdings, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("13f %s: %w", accessionNumber, lastErr)
	}
	return nil, nil
}

func decodeInformationTable(raw []byte) ([]HoldingItem, error) {
	var table informationTable
	if err := xml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("decoding information table: %w", err)
	}

	holdings := make([]HoldingItem, 0, len(table.Rows))
	for _, row := range table.Rows {
		cusip := strings.TrimSpace(row.CUSIP)
		if len(cusip) < 9 {
			continue
		}
		holdings = append(holdings, HoldingItem{
			CUSIP:        cusip[:9],
			IssuerName:   strings.TrimSpace(row.IssuerName),
			ClassTitle:   strings.TrimSpace(row.ClassTitle),
			Shares:       row.Shares,
			Value:        row.Value * 1000, // reported in thousands
			ShrsOrPrnTyp: strings.TrimSpace(row.ShPrnType),
			PutCall:      strings.TrimSpace(row.PutCall),
			VotingSole:   row.Voting.Sole,
			VotingShared: row.Voting.Shared,
			VotingNone:   row.Voting.None,
		})
	}
	return holdings, nil
}
