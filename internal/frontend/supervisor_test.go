package frontend

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func noopStart(ctx context.Context) (*exec.Cmd, error) {
	return &exec.Cmd{}, nil
}

func TestSupervisorHealthyStaysHealthy(t *testing.T) {
	s := NewSupervisor(3, time.Minute)
	s.Register(ChildSpec{
		Name:    "probe",
		Start:   noopStart,
		Healthy: func(ctx context.Context) error { return nil },
	})

	results := s.CheckAll(context.Background())
	if !results["probe"] {
		t.Fatal("expected probe healthy")
	}
	if s.Degraded("probe") {
		t.Fatal("should not be degraded")
	}
}

func TestSupervisorRestartsWithinBudget(t *testing.T) {
	s := NewSupervisor(2, time.Minute)
	restarts := 0
	s.Register(ChildSpec{
		Name: "backend",
		Start: func(ctx context.Context) (*exec.Cmd, error) {
			restarts++
			return &exec.Cmd{}, nil
		},
		Healthy: func(ctx context.Context) error { return errors.New("dead") },
	})

	results := s.CheckAll(context.Background())
	if !results["backend"] {
		t.Fatal("expected restart to succeed within budget")
	}
	if s.Degraded("backend") {
		t.Fatal("should not be degraded after a budgeted restart")
	}
	if restarts != 1 {
		t.Fatalf("expected 1 restart, got %d", restarts)
	}
}

func TestSupervisorDegradesAfterExhaustingBudget(t *testing.T) {
	s := NewSupervisor(1, time.Minute)
	s.Register(ChildSpec{
		Name:    "middleware",
		Start:   noopStart,
		Healthy: func(ctx context.Context) error { return errors.New("dead") },
	})

	s.CheckAll(context.Background()) // consumes the single restart budget
	results := s.CheckAll(context.Background())

	if results["middleware"] {
		t.Fatal("expected middleware to be unhealthy after budget exhausted")
	}
	if !s.Degraded("middleware") {
		t.Fatal("expected middleware to be flagged degraded")
	}
}

func TestSupervisorConcurrentChecks(t *testing.T) {
	s := NewSupervisor(3, time.Minute)
	for _, name := range []string{"probe", "backend", "middleware"} {
		s.Register(ChildSpec{
			Name:    name,
			Start:   noopStart,
			Healthy: func(ctx context.Context) error { return nil },
		})
	}

	results := s.CheckAll(context.Background())
	for _, name := range []string{"probe", "backend", "middleware"} {
		if !results[name] {
			t.Errorf("expected %s healthy", name)
		}
	}
}
