package workflow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 5 * time.Second

// VendorCheck checks one vendor and returns a short description, usually its
// version.
type VendorCheck struct {
	Vendor string
	Check  func(ctx context.Context) (string, error)
}

// CheckResult is the outcome of one VendorCheck.
type CheckResult struct {
	Vendor     string `json:"vendor"`
	Reachable  bool   `json:"reachable"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Status runs all checks concurrently, each bounded by timeout. Results keep
// the order of checks. A failing check is reported, never returned as error.
func Status(ctx context.Context, checks []VendorCheck, timeout time.Duration) []CheckResult {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	results := make([]CheckResult, len(checks))

	var g errgroup.Group
	for i, p := range checks {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			detail, err := p.Check(pctx)
			r := CheckResult{Vendor: p.Vendor, Reachable: err == nil, Detail: detail, DurationMS: time.Since(start).Milliseconds()}
			if err != nil {
				r.Error = err.Error()
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()
	return results
}
