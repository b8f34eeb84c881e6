// Package fetcher implements HTTP fetch adapters driven by a declarative
// endpoint table.
//
// Endpoint URLs may contain placeholders:
//
//	{state}    jurisdiction abbreviation ("MD")
//	{fips}     jurisdiction FIPS code ("24")
//	{start}    start date, YYYY-MM-DD
//	{start_us} start date, MM-DD-YYYY
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
)

// Format is the response body format used for row counting.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Endpoint describes one fetchable source.
type Endpoint struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	PerState bool   `yaml:"per_state"`
	Format   Format `yaml:"format"`
	RowsPath string `yaml:"rows_path"` // dotted path to the record array in JSON bodies
}

// Config holds the adapter table.
type Config struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Endpoints []Endpoint    `yaml:"endpoints"`
}

// DefaultWQPEndpoint pulls one jurisdiction from the Water Quality Portal.
func DefaultWQPEndpoint() Endpoint {
	return Endpoint{
		ID:       fetch.WQPFetcherID,
		URL:      "https://www.waterqualitydata.us/data/Result/search?statecode=US:{fips}&startDateLo={start_us}&mimeType=csv&sorted=no&zip=no",
		PerState: true,
		Format:   FormatCSV,
	}
}

// HTTPFetcher pulls one endpoint.
type HTTPFetcher struct {
	endpoint   Endpoint
	userAgent  string
	httpClient *http.Client
}

// PerState implements fetch.Fetcher.
func (f *HTTPFetcher) PerState() bool {
	return f.endpoint.PerState
}

// URL renders the endpoint URL for req.
func (f *HTTPFetcher) URL(req fetch.Request) string {
	r := strings.NewReplacer(
		"{state}", req.State,
		"{fips}", req.FIPS,
		"{start}", req.Start.Format("2006-01-02"),
		"{start_us}", req.Start.Format("01-02-2006"),
	)
	return r.Replace(f.endpoint.URL)
}

// Fetch implements fetch.Fetcher. Non-2xx responses return *probe.HTTPStatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	url := f.URL(req)
	res := fetch.Result{URL: url}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return res, &probe.HTTPStatusError{Code: resp.StatusCode}
	}

	rows, err := CountRows(resp.Body, f.endpoint.Format, f.endpoint.RowsPath)
	if err != nil {
		return res, &fetch.PayloadError{StatusCode: resp.StatusCode, Err: err}
	}
	res.Rows = rows
	return res, nil
}

// NewTable builds a fetch.Table from cfg. All adapters share one HTTP client.
// The WQP adapter is added when cfg does not define one.
func NewTable(cfg Config) (fetch.Table, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = probe.DefaultConfig().UserAgent
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	table := make(fetch.Table, len(cfg.Endpoints)+1)
	add := func(ep Endpoint) error {
		if ep.ID == "" || ep.URL == "" {
			return fmt.Errorf("endpoint %q: id and url are required", ep.ID)
		}
		if _, dup := table[ep.ID]; dup {
			return fmt.Errorf("endpoint %q defined twice", ep.ID)
		}
		switch ep.Format {
		case "":
			ep.Format = FormatJSON
		case FormatJSON, FormatCSV:
		default:
			return fmt.Errorf("endpoint %q: unknown format %q", ep.ID, ep.Format)
		}
		table[ep.ID] = &HTTPFetcher{endpoint: ep, userAgent: cfg.UserAgent, httpClient: client}
		return nil
	}

	for _, ep := range cfg.Endpoints {
		if err := add(ep); err != nil {
			return nil, err
		}
	}
	if _, ok := table[fetch.WQPFetcherID]; !ok {
		if err := add(DefaultWQPEndpoint()); err != nil {
			return nil, err
		}
	}
	return table, nil
}
