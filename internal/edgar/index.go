package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// eftsResponse is the shape of the EDGAR full-text search API response.
type eftsResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				CIKs           []string `json:"ciks"`
				DisplayNames   []string `json:"display_names"`
				FormType       string   `json:"form_type"`
				FileDate       string   `json:"file_date"`
				AccessionNo    string   `json:"accession_no"`
				PeriodOfReport string   `json:"period_of_report"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// submissionsResponse is the shape of the data.sec.gov submissions API
// response. Filing attributes arrive as parallel arrays.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// ListForm4Filings enumerates Form 4 filings in [start, end] via the EDGAR
// full-text search API. Results are sorted by filed-at ascending and capped
// at maxCount, so a truncated run naturally resumes with the oldest
// unprocessed filings.
func (c *Client) ListForm4Filings(ctx context.Context, start, end time.Time, maxCount int) ([]FilingMeta, error) {
	q := url.Values{}
	q.Set("q", "*")
	q.Set("dateRange", "custom")
	q.Set("startdt", start.Format("2006-01-02"))
	q.Set("enddt", end.Format("2006-01-02"))
	q.Set("forms", "4")
	q.Set("from", "0")
	q.Set("size", fmt.Sprintf("%d", maxCount))

	body, err := c.Fetch(ctx, c.searchURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("searching form 4 filings: %w", err)
	}

	var resp eftsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding form 4 search results: %w", err)
	}

	metas := make([]FilingMeta, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		src := hit.Source
		if src.FormType != "4" && src.FormType != "4/A" {
			continue
		}
		meta := FilingMeta{
			FormType:        src.FormType,
			AccessionNumber: src.AccessionNo,
			FiledAt:         parseSECDate(src.FileDate),
		}
		if len(src.CIKs) > 0 {
			meta.CIK = strings.TrimLeft(src.CIKs[0], "0")
		}
		if len(src.DisplayNames) > 0 {
			meta.CompanyName = src.DisplayNames[0]
		}
		if meta.CIK == "" || meta.AccessionNumber == "" {
			continue
		}
		metas = append(metas, meta)
	}

	return orderAndCap(metas, maxCount), nil
}

// List13FFilings enumerates 13F-HR filings for one institution CIK via the
// submissions API, sorted by filed-at ascending and capped at maxCount.
func (c *Client) List13FFilings(ctx context.Context, cik string, maxCount int) ([]FilingMeta, error) {
	padded := fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))

	body, err := c.Fetch(ctx, fmt.Sprintf(c.subsURL, padded))
	if err != nil {
		return nil, fmt.Errorf("fetching submissions for CIK %s: %w", cik, err)
	}

	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding submissions for CIK %s: %w", cik, err)
	}

	recent := resp.Filings.Recent
	metas := make([]FilingMeta, 0)
	for i := range recent.AccessionNumber {
		if !strings.HasPrefix(recent.Form[i], "13F-HR") {
			continue
		}
		meta := FilingMeta{
			CIK:             strings.TrimLeft(cik, "0"),
			CompanyName:     resp.Name,
			FormType:        recent.Form[i],
			AccessionNumber: recent.AccessionNumber[i],
			FiledAt:         parseSECDate(recent.FilingDate[i]),
		}
		if i < len(recent.ReportDate) {
			meta.ReportDate = parseSECDate(recent.ReportDate[i])
		}
		metas = append(metas, meta)
	}

	return orderAndCap(metas, maxCount), nil
}

// orderAndCap keeps only dated filings, oldest first, at most max of them.
func orderAndCap(metas []FilingMeta, max int) []FilingMeta {
	metas = lo.Filter(metas, func(m FilingMeta, _ int) bool {
		return !m.FiledAt.IsZero()
	})
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].FiledAt.Before(metas[j].FiledAt)
	})
	if max > 0 && len(metas) > max {
		metas = metas[:max]
	}
	return metas
}
