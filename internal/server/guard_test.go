package server

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/redigo/internal/sysstats"
)

func TestResourceGuardDisabledByDefault(t *testing.T) {
	sampler := sysstats.New(zerolog.New(io.Discard), time.Minute)
	g := NewResourceGuard(GuardConfig{}, sampler, zerolog.New(io.Discard))

	ok, reason := g.Admit()
	if !ok {
		t.Fatalf("Admit() with no thresholds configured = false, %q, want true", reason)
	}
}

func TestResourceGuardAdmitsBeforeFirstCPUSample(t *testing.T) {
	sampler := sysstats.New(zerolog.New(io.Discard), time.Minute)
	g := NewResourceGuard(GuardConfig{CPURejectPercent: 50}, sampler, zerolog.New(io.Discard))

	// A freshly constructed Sampler reports 0% CPU until its first
	// sample, so the guard admits by default.
	if ok, reason := g.Admit(); !ok {
		t.Fatalf("Admit() before any sample = false, %q, want true", reason)
	}
}
