package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
)

const (
	archivesBaseURL = "https://www.sec.gov/Archives/edgar/data"
	eftsSearchURL   = "https://efts.sec.gov/LATEST/search-index"
	submissionsURL  = "https://data.sec.gov/submissions/CIK%s.json"

	defaultTimeout = 30 * time.Second
	retryInterval  = 100 * time.Millisecond
	maxRetries     = 3
)

var (
	// ErrNotFound marks a permanent failure for one document (bad accession
	// number, withdrawn filing). Callers must not retry it.
	ErrNotFound = errors.New("edgar: document not found")

	// ErrRateLimited is returned after retries when SEC keeps answering 429.
	ErrRateLimited = errors.New("edgar: rate limited")
)

// Client is a rate-limited client for SEC EDGAR. One limiter gates every
// outbound request regardless of endpoint; SEC publishes a ~10 req/s ceiling
// and blocks clients without an identifying User-Agent.
type Client struct {
	userAgent  string
	baseURL    string
	searchURL  string
	subsURL    string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	log        *zap.Logger
}

// NewClient creates an EDGAR client from explicit configuration.
func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		userAgent: cfg.SECUserAgent,
		baseURL:   archivesBaseURL,
		searchURL: eftsSearchURL,
		subsURL:   submissionsURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(cfg.SECRatePerSec),
		log:     log,
	}
}

// Fetch downloads one URL under the client's rate limit. 4xx statuses are
// permanent (ErrNotFound); 429 and 5xx are retried with constant backoff and
// surface as transient errors for the scheduler to record.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		c.limiter.Take()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to read
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, url)
		case resp.StatusCode >= 500:
			return fmt.Errorf("SEC returned status %d for %s", resp.StatusCode, url)
		default:
			// 403 and 404 both mean the document is not servable.
			return backoff.Permanent(fmt.Errorf("%w: status %d for %s", ErrNotFound, resp.StatusCode, url))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}
