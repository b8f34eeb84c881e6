package throttle

import "time"

// Family names a group of outbound requests that share one pacing interval.
type Family string

const (
	FamilyProbe    Family = "probe"     // source health checks
	FamilyWQPProbe Family = "wqp-probe" // per-jurisdiction portal checks
	FamilyFetch    Family = "fetch"     // data pulls
	FamilyRevive   Family = "revive"    // alternate URL attempts
)

// Config holds the minimum delay between consecutive requests per family.
type Config struct {
	Probe    time.Duration `yaml:"probe"`
	WQPProbe time.Duration `yaml:"wqp_probe"`
	Fetch    time.Duration `yaml:"fetch"`
	Revive   time.Duration `yaml:"revive"`
}

// DefaultConfig returns the production pacing intervals.
func DefaultConfig() Config {
	return Config{
		Probe:    300 * time.Millisecond,
		WQPProbe: 500 * time.Millisecond,
		Fetch:    2 * time.Second,
		Revive:   1 * time.Second,
	}
}

// Intervals returns the per-family table.
func (c Config) Intervals() map[Family]time.Duration {
	return map[Family]time.Duration{
		FamilyProbe:    c.Probe,
		FamilyWQPProbe: c.WQPProbe,
		FamilyFetch:    c.Fetch,
		FamilyRevive:   c.Revive,
	}
}
