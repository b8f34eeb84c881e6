package fetch

import (
	"context"
	"reflect"
	"testing"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

func targetRegistry() *domain.Registry {
	reg := testRegistry()
	reg.Sources = append(reg.Sources,
		&domain.Source{ID: "md-dnr", Type: domain.SourceTypeState, Priority: 2, Health: domain.Health{Status: domain.StatusLive}},
		&domain.Source{ID: "va-deq", Type: domain.SourceTypeState, Priority: 1, Health: domain.Health{Status: domain.StatusLive}},
		&domain.Source{ID: "de-dnrec", Type: domain.SourceTypeState, Priority: 3, Health: domain.Health{Status: domain.StatusDead}},
		&domain.Source{ID: "ca-ceden", Type: domain.SourceTypeState, Priority: 4, Health: domain.Health{Status: domain.StatusGated}},
	)
	reg.FindSource("wqp-portal").Type = domain.SourceTypeState
	reg.WQPStates["DE"] = &domain.WQPState{FIPS: "10", Health: domain.Health{Status: domain.StatusDead}}
	return reg
}

func itemKeys(report Report) []string {
	keys := make([]string, 0, len(report.Items))
	for _, it := range report.Items {
		keys = append(keys, it.Key)
	}
	return keys
}

func TestRunTargets_Source(t *testing.T) {
	nwis := &stubFetcher{perState: true, rows: map[string]int{"MD": 4, "VA": 6}}

	tests := []struct {
		name      string
		targets   Targets
		wantCalls []string
		wantRows  int
	}{
		{"every jurisdiction", Targets{Source: "usgs-nwis"}, []string{"DE", "MD", "VA"}, 10},
		{"one jurisdiction", Targets{Source: "usgs-nwis", State: "va"}, []string{"VA"}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nwis.calls = nil
			reg := targetRegistry()
			// Already fetched: the batch scheduler would never pick it.
			reg.FindSource("usgs-nwis").LastFetch = domain.TimePtr(now)

			report, err := newRunner(Table{"usgs-nwis": nwis}).RunTargets(context.Background(), reg, tt.targets, Options{Start: start})
			if err != nil {
				t.Fatalf("RunTargets: %v", err)
			}
			var calls []string
			for _, c := range nwis.calls {
				calls = append(calls, c.State)
			}
			if !reflect.DeepEqual(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if report.Fetched != 1 || report.Rows != tt.wantRows || len(report.Unknown) != 0 {
				t.Errorf("report = %+v", report)
			}
		})
	}
}

func TestRunTargets_Skips(t *testing.T) {
	tests := []struct {
		name       string
		targets    Targets
		wantReason string
	}{
		{"dead source", Targets{Source: "de-dnrec"}, "dead"},
		{"gated source", Targets{Source: "ca-ceden"}, "gated"},
		{"umbrella sentinel", Targets{Source: "wqp-portal"}, "pulled per jurisdiction, use --states"},
		{"dead jurisdiction", Targets{States: []string{"DE"}}, "dead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{}
			reg := targetRegistry()
			before := reg.Clone()

			report, err := newRunner(Table{"de-dnrec": f, "ca-ceden": f, "wqp-portal": f, WQPFetcherID: f}).
				RunTargets(context.Background(), reg, tt.targets, Options{})
			if err != nil {
				t.Fatalf("RunTargets: %v", err)
			}
			if len(report.Items) != 1 || !report.Items[0].Skipped || report.Items[0].Reason != tt.wantReason {
				t.Errorf("items = %+v", report.Items)
			}
			if report.Skipped != 1 || len(f.calls) != 0 {
				t.Errorf("report = %+v, calls = %d", report, len(f.calls))
			}
			if !reflect.DeepEqual(before, reg) {
				t.Error("skipped records must not be touched")
			}
		})
	}
}

func TestRunTargets_Segment(t *testing.T) {
	f := &stubFetcher{rows: map[string]int{"": 1}}
	reg := targetRegistry()

	report, err := newRunner(Table{"md-dnr": f, "va-deq": f}).
		RunTargets(context.Background(), reg, Targets{Segment: domain.SourceTypeState}, Options{})
	if err != nil {
		t.Fatalf("RunTargets: %v", err)
	}
	// Priority order; the sentinel was retyped into this segment.
	want := []string{"wqp-portal", "va-deq", "md-dnr", "de-dnrec", "ca-ceden"}
	if got := itemKeys(report); !reflect.DeepEqual(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
	if report.Fetched != 2 || report.Skipped != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunTargets_States(t *testing.T) {
	wqp := &stubFetcher{rows: map[string]int{"MD": 2, "VA": 3}}

	tests := []struct {
		name        string
		targets     Targets
		wantItems   []string
		wantUnknown []string
	}{
		{"list", Targets{States: []string{"va", "MD", "md"}}, []string{"wqp-VA", "wqp-MD"}, nil},
		{"unknown", Targets{States: []string{"MD", "ZZ"}}, []string{"wqp-MD"}, []string{"ZZ"}},
		{"all", Targets{AllStates: true}, []string{"wqp-DE", "wqp-MD", "wqp-VA"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newRunner(Table{WQPFetcherID: wqp}).
				RunTargets(context.Background(), targetRegistry(), tt.targets, Options{DryRun: true})
			if err != nil {
				t.Fatalf("RunTargets: %v", err)
			}
			if got := itemKeys(report); !reflect.DeepEqual(got, tt.wantItems) {
				t.Errorf("items = %v, want %v", got, tt.wantItems)
			}
			if !reflect.DeepEqual(report.Unknown, tt.wantUnknown) {
				t.Errorf("unknown = %v, want %v", report.Unknown, tt.wantUnknown)
			}
		})
	}
}

func TestRunTargets_UnknownSource(t *testing.T) {
	wqp := &stubFetcher{rows: map[string]int{"MD": 2}}
	reg := targetRegistry()

	report, err := newRunner(Table{WQPFetcherID: wqp}).
		RunTargets(context.Background(), reg, Targets{Source: "nope", States: []string{"MD"}}, Options{})
	if err != nil {
		t.Fatalf("RunTargets: %v", err)
	}
	if !reflect.DeepEqual(report.Unknown, []string{"nope"}) {
		t.Errorf("unknown = %v", report.Unknown)
	}
	if report.Fetched != 1 || reg.WQPStates["MD"].LastFetch == nil {
		t.Error("known targets still run alongside an unknown one")
	}
}

func TestRunTargets_UnknownState(t *testing.T) {
	nwis := &stubFetcher{perState: true}
	report, err := newRunner(Table{"usgs-nwis": nwis}).
		RunTargets(context.Background(), targetRegistry(), Targets{Source: "usgs-nwis", State: "ZZ"}, Options{})
	if err != nil {
		t.Fatalf("RunTargets: %v", err)
	}
	if !reflect.DeepEqual(report.Unknown, []string{"ZZ"}) || len(nwis.calls) != 0 {
		t.Errorf("report = %+v, calls = %d", report, len(nwis.calls))
	}
}
