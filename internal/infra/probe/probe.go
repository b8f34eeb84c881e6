// Package probe performs single liveness checks against endpoint URLs.
//
// A probe never fails with a Go error: transport problems are classified
// into an Outcome that the backoff policy consumes.
//
//	status < 300        -> live
//	300 <= status < 500 -> degraded ("HTTP 404")
//	status >= 500       -> dead     ("HTTP 503")
//	timeout             -> degraded ("Timeout")
//	anything else       -> dead     (truncated error message)
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// maxErrorLen bounds error messages kept in logs and outcomes.
const maxErrorLen = 120

// DefaultWQPTemplate is the minimal portal query used to check one
// jurisdiction. {fips} is replaced with the jurisdiction FIPS code.
const DefaultWQPTemplate = "https://www.waterqualitydata.us/data/Result/search?statecode=US:{fips}&characteristicName=pH&startDateLo=01-01-2025&mimeType=csv&sorted=no&zip=no"

// WQPURL renders template for one jurisdiction. An empty template selects
// DefaultWQPTemplate.
func WQPURL(template, fips string) string {
	if template == "" {
		template = DefaultWQPTemplate
	}
	return strings.ReplaceAll(template, "{fips}", fips)
}

// Mode selects the request shape.
type Mode int

const (
	ModeFull Mode = iota // GET, body closed unread
	ModeFast             // HEAD
)

func (m Mode) String() string {
	if m == ModeFast {
		return "fast"
	}
	return "full"
}

// Config holds prober settings.
type Config struct {
	FastTimeout time.Duration `yaml:"fast_timeout"`
	FullTimeout time.Duration `yaml:"full_timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

// DefaultConfig returns the standard probe timeouts.
func DefaultConfig() Config {
	return Config{
		FastTimeout: 5 * time.Second,
		FullTimeout: 15 * time.Second,
		UserAgent:   "pinwatch/1.0",
	}
}

// Outcome is the classified result of one probe.
type Outcome struct {
	Status     domain.Status
	StatusCode int           // 0 when no response was received
	Latency    time.Duration // meaningful only when StatusCode != 0
	Err        string
}

// Responded reports whether the endpoint returned an HTTP response.
func (o Outcome) Responded() bool {
	return o.StatusCode != 0
}

// LatencyMS returns the latency in milliseconds, or nil when there was no response.
func (o Outcome) LatencyMS() *float64 {
	if !o.Responded() {
		return nil
	}
	ms := float64(o.Latency) / float64(time.Millisecond)
	return &ms
}

// Prober issues HEAD/GET requests with bounded timeouts.
type Prober struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Prober.
func New(cfg Config) *Prober {
	def := DefaultConfig()
	if cfg.FastTimeout <= 0 {
		cfg.FastTimeout = def.FastTimeout
	}
	if cfg.FullTimeout <= 0 {
		cfg.FullTimeout = def.FullTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	return &Prober{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Probe checks url once. It does not touch registry state.
func (p *Prober) Probe(ctx context.Context, url string, mode Mode) Outcome {
	method, timeout := http.MethodGet, p.cfg.FullTimeout
	if mode == ModeFast {
		method, timeout = http.MethodHead, p.cfg.FastTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		status, msg := ClassifyError(err)
		return Outcome{Status: status, Err: msg}
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		status, msg := ClassifyError(err)
		return Outcome{Status: status, Err: msg}
	}
	latency := time.Since(start)
	// The body is never parsed; closing it is enough for a liveness check.
	_ = resp.Body.Close()

	status, msg := ClassifyStatusCode(resp.StatusCode)
	return Outcome{
		Status:     status,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Err:        msg,
	}
}

// Close releases idle connections.
func (p *Prober) Close() {
	p.httpClient.CloseIdleConnections()
}

// ClassifyStatusCode maps an HTTP status code to a liveness status.
func ClassifyStatusCode(code int) (domain.Status, string) {
	switch {
	case code < 300:
		return domain.StatusLive, ""
	case code < 500:
		return domain.StatusDegraded, fmt.Sprintf("HTTP %d", code)
	default:
		return domain.StatusDead, fmt.Sprintf("HTTP %d", code)
	}
}

// HTTPStatusError reports a non-2xx response from a fetch adapter.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// ClassifyError maps a transport error to a liveness status and a bounded message.
func ClassifyError(err error) (domain.Status, string) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatusCode(statusErr.Code)
	}
	if IsTimeout(err) {
		return domain.StatusDegraded, "Timeout"
	}
	return domain.StatusDead, truncate(err.Error())
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
