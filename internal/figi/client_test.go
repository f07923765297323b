package figi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
)

func testConfig(apiKey string) *config.Config {
	return &config.Config{OpenFIGIAPIKey: apiKey, FIGIRatePerMin: 250}
}

func testClient(ts *httptest.Server, apiKey string, batchSize int) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    ts.URL,
		batchSize:  batchSize,
		httpClient: ts.Client(),
		limiter:    ratelimit.NewUnlimited(),
		log:        zap.NewNop(),
	}
}

func TestMapCUSIPs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-OPENFIGI-APIKEY") != "test-key" {
			t.Errorf("missing api key header")
		}

		var jobs []mappingJob
		if err := json.NewDecoder(r.Body).Decode(&jobs); err != nil {
			t.Fatalf("decoding jobs: %v", err)
		}
		for _, job := range jobs {
			if job.IDType != "ID_CUSIP" || job.ExchCode != "US" {
				t.Errorf("job = %+v", job)
			}
		}

		results := make([]mappingResult, len(jobs))
		for i, job := range jobs {
			switch job.IDValue {
			case "037833100":
				results[i].Data = []struct {
					Ticker string `json:"ticker"`
				}{{Ticker: "AAPL"}}
			case "191216100":
				results[i].Error = "No identifier found."
			default:
				// empty data array: unmapped
			}
		}
		json.NewEncoder(w).Encode(results)
	}))
	defer ts.Close()

	c := testClient(ts, "test-key", 100)
	got, err := c.MapCUSIPs(context.Background(), []string{"037833100", "191216100", "594918104"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 mapped cusip, got %d", len(got))
	}
	if got["037833100"] != "AAPL" {
		t.Errorf("mapped ticker = %q", got["037833100"])
	}
}

func TestMapCUSIPsBatching(t *testing.T) {
	var batchSizes []int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var jobs []mappingJob
		json.NewDecoder(r.Body).Decode(&jobs)
		batchSizes = append(batchSizes, len(jobs))

		results := make([]mappingResult, len(jobs))
		for i := range jobs {
			results[i].Data = []struct {
				Ticker string `json:"ticker"`
			}{{Ticker: "T" + jobs[i].IDValue}}
		}
		json.NewEncoder(w).Encode(results)
	}))
	defer ts.Close()

	cusips := make([]string, 25)
	for i := range cusips {
		cusips[i] = fmt.Sprintf("%09d", i)
	}

	c := testClient(ts, "", 10)
	got, err := c.MapCUSIPs(context.Background(), cusips)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batchSizes) != 3 || batchSizes[0] != 10 || batchSizes[1] != 10 || batchSizes[2] != 5 {
		t.Errorf("batch sizes = %v, want [10 10 5]", batchSizes)
	}
	if len(got) != 25 {
		t.Errorf("expected all 25 mapped, got %d", len(got))
	}
}

func TestMapCUSIPsPartialOnError(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var jobs []mappingJob
		json.NewDecoder(r.Body).Decode(&jobs)
		results := make([]mappingResult, len(jobs))
		for i := range jobs {
			results[i].Data = []struct {
				Ticker string `json:"ticker"`
			}{{Ticker: "TICK"}}
		}
		json.NewEncoder(w).Encode(results)
	}))
	defer ts.Close()

	c := testClient(ts, "", 2)
	got, err := c.MapCUSIPs(context.Background(), []string{"000000001", "000000002", "000000003"})
	if err == nil {
		t.Fatal("expected error from failed second batch")
	}
	if len(got) != 2 {
		t.Errorf("expected partial map from first batch, got %d entries", len(got))
	}
}

func TestNewClientBatchSize(t *testing.T) {
	withKey := NewClient(testConfig("key"), zap.NewNop())
	if withKey.batchSize != batchSizeKeyed {
		t.Errorf("keyed batch size = %d", withKey.batchSize)
	}
	withoutKey := NewClient(testConfig(""), zap.NewNop())
	if withoutKey.batchSize != batchSizeUnkeyed {
		t.Errorf("unkeyed batch size = %d", withoutKey.batchSize)
	}
}
