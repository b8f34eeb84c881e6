package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
)

func TestCountRows(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		format Format
		path   string
		want   int
	}{
		{"csv with header", "a,b\n1,2\n3,4\n", FormatCSV, "", 2},
		{"csv header only", "a,b\n", FormatCSV, "", 0},
		{"csv empty", "", FormatCSV, "", 0},
		{"csv quoted newline", "a,b\n\"x\ny\",2\n", FormatCSV, "", 1},
		{"json array", `[{"a":1},{"a":2},{"a":3}]`, FormatJSON, "", 3},
		{"json object", `{"a":1}`, FormatJSON, "", 1},
		{"json nested path", `{"value":{"timeSeries":[1,2]}}`, FormatJSON, "value.timeSeries", 2},
		{"json missing path", `{"value":{}}`, FormatJSON, "value.timeSeries", 0},
		{"json empty body", ``, FormatJSON, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountRows(strings.NewReader(tt.body), tt.format, tt.path)
			if err != nil {
				t.Fatalf("CountRows: %v", err)
			}
			if got != tt.want {
				t.Errorf("CountRows = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountRows_BadJSON(t *testing.T) {
	if _, err := CountRows(strings.NewReader("{oops"), FormatJSON, ""); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := CountRows(strings.NewReader(`{"value":[1]}`), FormatJSON, "value.inner"); err == nil {
		t.Error("expected error when path walks through an array")
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		switch r.URL.Path {
		case "/nwis":
			_, _ = w.Write([]byte(`{"value":{"timeSeries":[{},{},{}]}}`))
		case "/wqp":
			_, _ = w.Write([]byte("OrganizationIdentifier,ResultMeasureValue\nA,1\nB,2\n"))
		default:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	table, err := NewTable(Config{
		Timeout: 5 * time.Second,
		Endpoints: []Endpoint{
			{ID: "usgs-nwis", URL: server.URL + "/nwis?stateCd={state}&startDT={start}", PerState: true, RowsPath: "value.timeSeries"},
			{ID: fetch.WQPFetcherID, URL: server.URL + "/wqp?statecode=US:{fips}&startDateLo={start_us}", Format: FormatCSV},
			{ID: "broken", URL: server.URL + "/broken"},
		},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	ctx := context.Background()
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	nwis, ok := table.Lookup("usgs-nwis")
	if !ok || !nwis.PerState() {
		t.Fatal("usgs-nwis should be a per-state fetcher")
	}
	res, err := nwis.Fetch(ctx, fetch.Request{SourceID: "usgs-nwis", State: "MD", Start: start})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Rows != 3 {
		t.Errorf("rows = %d, want 3", res.Rows)
	}
	if gotQuery != "stateCd=MD&startDT=2024-01-15" {
		t.Errorf("query = %s", gotQuery)
	}

	wqp, _ := table.Lookup(fetch.WQPFetcherID)
	res, err = wqp.Fetch(ctx, fetch.Request{State: "MD", FIPS: "24", Start: start})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Rows != 2 || gotQuery != "statecode=US:24&startDateLo=01-15-2024" {
		t.Errorf("rows = %d, query = %s", res.Rows, gotQuery)
	}

	broken, _ := table.Lookup("broken")
	_, err = broken.Fetch(ctx, fetch.Request{Start: start})
	var statusErr *probe.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected HTTPStatusError 503, got %v", err)
	}
}

func TestHTTPFetcher_UnreadableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>scheduled maintenance</html>"))
	}))
	defer server.Close()

	table, err := NewTable(Config{Endpoints: []Endpoint{{ID: "frs", URL: server.URL}}})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	f, _ := table.Lookup("frs")
	_, err = f.Fetch(context.Background(), fetch.Request{SourceID: "frs", Start: time.Now()})

	var payloadErr *fetch.PayloadError
	if !errors.As(err, &payloadErr) || payloadErr.StatusCode != http.StatusOK {
		t.Fatalf("expected PayloadError 200, got %v", err)
	}
	var statusErr *probe.HTTPStatusError
	if errors.As(err, &statusErr) {
		t.Error("unreadable body must not look like a status failure")
	}
}

func TestNewTable(t *testing.T) {
	table, err := NewTable(Config{})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, ok := table.Lookup(fetch.WQPFetcherID); !ok {
		t.Error("default WQP adapter should be registered")
	}

	bad := []Config{
		{Endpoints: []Endpoint{{ID: "a"}}},
		{Endpoints: []Endpoint{{ID: "a", URL: "http://x"}, {ID: "a", URL: "http://y"}}},
		{Endpoints: []Endpoint{{ID: "a", URL: "http://x", Format: "xml"}}},
	}
	for i, cfg := range bad {
		if _, err := NewTable(cfg); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}
