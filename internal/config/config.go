package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-derived settings. It is built once in main
// and passed by reference into constructors; components never read the
// process environment themselves.
type Config struct {
	DatabaseURL string
	Port        string

	// SEC requires every request to identify the application and a contact
	// method, e.g. "InsiderFlow/1.0 (ops@insiderflow.dev)".
	SECUserAgent    string
	SECRatePerSec   int
	OpenFIGIAPIKey  string
	FIGIRatePerMin  int

	// Institutions whose 13F-HR filings are tracked, by CIK.
	TrackedInstitutions []string

	// Sweep defaults; each can be overridden per invocation.
	Form4LookbackDays int
	MaxFilingsPerRun  int
	SweepBudget       time.Duration
	InterFilingDelay  time.Duration
}

// Load reads the environment into a Config. DATABASE_URL and SEC_USER_AGENT
// are required; everything else has a sane default.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Port:              getDefault("PORT", "8080"),
		SECUserAgent:      strings.TrimSpace(os.Getenv("SEC_USER_AGENT")),
		SECRatePerSec:     getInt("SEC_RATE_PER_SEC", 8),
		OpenFIGIAPIKey:    strings.TrimSpace(os.Getenv("OPENFIGI_API_KEY")),
		Form4LookbackDays: getInt("FORM4_LOOKBACK_DAYS", 3),
		MaxFilingsPerRun:  getInt("MAX_FILINGS_PER_RUN", 40),
		SweepBudget:       getDuration("SWEEP_BUDGET", 55*time.Second),
		InterFilingDelay:  getDuration("INTER_FILING_DELAY", 150*time.Millisecond),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.SECUserAgent == "" {
		return nil, fmt.Errorf("SEC_USER_AGENT environment variable is required (SEC blocks unidentified clients)")
	}

	// OpenFIGI allows 25 requests/min without a key, 250/min with one.
	if cfg.OpenFIGIAPIKey != "" {
		cfg.FIGIRatePerMin = getInt("FIGI_RATE_PER_MIN", 250)
	} else {
		cfg.FIGIRatePerMin = getInt("FIGI_RATE_PER_MIN", 25)
	}

	if raw := os.Getenv("TRACKED_INSTITUTIONS"); raw != "" {
		for _, cik := range strings.Split(raw, ",") {
			cik = strings.TrimSpace(cik)
			if cik != "" {
				cfg.TrackedInstitutions = append(cfg.TrackedInstitutions, cik)
			}
		}
	}

	return cfg, nil
}

func getDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
