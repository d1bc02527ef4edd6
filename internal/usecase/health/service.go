package health

import (
	"context"
	"sort"
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
	name string
	fn   CheckFunc
}

// Service coordinates health checks.
type Service struct {
	checks []namedCheck
}

// New creates a Service that always checks the database.
func New(db DBPinger) *Service {
	return &Service{checks: []namedCheck{{name: "database", fn: db.Ping}}}
}

// WithCheck registers an extra named dependency check.
func (s *Service) WithCheck(name string, fn CheckFunc) *Service {
	s.checks = append(s.checks, namedCheck{name: name, fn: fn})
	return s
}

// Names lists the registered checks, sorted.
func (s *Service) Names() []string {
	names := make([]string, len(s.checks))
	for i, c := range s.checks {
		names[i] = c.name
	}
	sort.Strings(names)
	return names
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for _, c := range s.checks {
		if err := c.fn(ctx); err != nil {
			checks[c.name] = CheckError
			status = Degraded
			continue
		}
		checks[c.name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
