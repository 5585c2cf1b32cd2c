package database

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// CheckAll runs the checks concurrently and returns each result by name.
// A nil entry means the dependency is up.
func CheckAll(ctx context.Context, checks map[string]HealthCheck) map[string]error {
	results := make(map[string]error, len(checks))
	if len(checks) == 0 {
		return results
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(len(checks))
	for name, check := range checks {
		p.Go(func() {
			err := check(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		})
	}
	p.Wait()

	return results
}
