// Package health aggregates dependency probes into one service status.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregated service health.
type Status string

const (
	Healthy Status = "ok"
	// Degraded means a provider is failing; sparse and stored retrieval may still work.
	Degraded Status = "degraded"
	// Unhealthy means the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const (
	databaseCheck = "database"

	// DefaultTimeout bounds each probe when New gets a zero timeout.
	DefaultTimeout = 3 * time.Second
)

// Report aggregates probe results by name.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes the database and providers concurrently.
type Service struct {
	probes  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service. db is nil when no database is configured.
func New(db DBPinger, checkers map[string]Checker, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	probes := make(map[string]func(context.Context) error, len(checkers)+1)
	for name, c := range checkers {
		probes[name] = c.HealthCheck
	}
	if db != nil {
		probes[databaseCheck] = db.Ping
	}
	return &Service{probes: probes, timeout: timeout}
}

// Check runs every probe with its own timeout. A failing database makes the
// report Unhealthy; any other failure makes it Degraded.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.probes))
		g      errgroup.Group
	)
	for name, probe := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if probe(pctx) != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: aggregate(checks), Checks: checks}
}

func aggregate(checks map[string]CheckResult) Status {
	status := Healthy
	for name, res := range checks {
		if res == CheckOK {
			continue
		}
		if name == databaseCheck {
			return Unhealthy
		}
		status = Degraded
	}
	return status
}
