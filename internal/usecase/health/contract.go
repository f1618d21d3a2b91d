package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks one external dependency (embedding provider, LLM).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
