package health

import "context"

// Checker probes one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBPinger checks cache database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}
