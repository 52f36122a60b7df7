// Package health aggregates dependency checks for the /health endpoint.
package health

import (
	"context"
	"slices"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks []namedCheck
}

// New creates a Service. db may be nil when the cache is disabled.
func New(db DBPinger) *Service {
	s := &Service{}
	if db != nil {
		s.checks = append(s.checks, namedCheck{name: "database", check: db.Ping})
	}
	return s
}

// With adds a named dependency check. A nil checker is ignored.
func (s *Service) With(name string, c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, namedCheck{name: name, check: c.HealthCheck})
	}
	return s
}

// Names lists the registered checks in registration order.
func (s *Service) Names() []string {
	names := make([]string, len(s.checks))
	for i, c := range s.checks {
		names[i] = c.name
	}
	return slices.Clip(names)
}

// Check runs every registered check.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			checks[c.name] = CheckError
			status = Degraded
			continue
		}
		checks[c.name] = CheckOK
	}
	return Report{Status: status, Checks: checks}
}
