// Package figi maps security identifiers to tickers via the OpenFIGI API.
package figi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
)

const (
	mappingURL     = "https://api.openfigi.com/v3/mapping"
	defaultTimeout = 30 * time.Second

	// OpenFIGI accepts up to 100 mapping jobs per request with an API key,
	// 10 without.
	batchSizeKeyed   = 100
	batchSizeUnkeyed = 10
)

// Client is a rate-limited OpenFIGI mapping client. The service enforces its
// own per-minute ceiling, distinct from SEC's, and a lower one when no API
// key is supplied.
type Client struct {
	apiKey     string
	baseURL    string
	batchSize  int
	httpClient *http.Client
	limiter    ratelimit.Limiter
	log        *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	batch := batchSizeUnkeyed
	if cfg.OpenFIGIAPIKey != "" {
		batch = batchSizeKeyed
	}
	return &Client{
		apiKey:    cfg.OpenFIGIAPIKey,
		baseURL:   mappingURL,
		batchSize: batch,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(cfg.FIGIRatePerMin, ratelimit.Per(time.Minute)),
		log:     log,
	}
}

type mappingJob struct {
	IDType   string `json:"idType"`
	IDValue  string `json:"idValue"`
	ExchCode string `json:"exchCode"`
}

type mappingResult struct {
	Data []struct {
		Ticker string `json:"ticker"`
	} `json:"data"`
	Error string `json:"error"`
}

// MapCUSIPs resolves CUSIPs to tickers in batches. The result map only
// contains CUSIPs that resolved; callers keep unresolved holdings with a
// null company link rather than dropping them. A partial map is returned
// alongside any error so degraded operation stays possible.
func (c *Client) MapCUSIPs(ctx context.Context, cusips []string) (map[string]string, error) {
	out := make(map[string]string, len(cusips))

	for start := 0; start < len(cusips); start += c.batchSize {
		end := start + c.batchSize
		if end > len(cusips) {
			end = len(cusips)
		}
		batch := cusips[start:end]

		results, err := c.mapBatch(ctx, batch)
		if err != nil {
			return out, fmt.Errorf("mapping cusips [%d:%d]: %w", start, end, err)
		}
		for i, res := range results {
			if i >= len(batch) {
				break
			}
			if res.Error != "" || len(res.Data) == 0 || res.Data[0].Ticker == "" {
				continue
			}
			out[batch[i]] = res.Data[0].Ticker
		}
	}

	return out, nil
}

func (c *Client) mapBatch(ctx context.Context, cusips []string) ([]mappingResult, error) {
	jobs := make([]mappingJob, 0, len(cusips))
	for _, cusip := range cusips {
		jobs = append(jobs, mappingJob{IDType: "ID_CUSIP", IDValue: cusip, ExchCode: "US"})
	}

	payload, err := json.Marshal(jobs)
	if err != nil {
		return nil, fmt.Errorf("encoding mapping jobs: %w", err)
	}

	c.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfigi returned status %d", resp.StatusCode)
	}

	var results []mappingResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding mapping response: %w", err)
	}
	return results, nil
}
