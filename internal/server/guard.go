package server

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adred-codev/redigo/internal/sysstats"
)

// GuardConfig controls ResourceGuard's emergency-brake thresholds. A zero
// CPURejectPercent disables the CPU check; a zero MemoryLimitBytes is
// replaced by the detected cgroup limit in NewResourceGuard, and disables
// the memory check only when no such limit was detected.
type GuardConfig struct {
	CPURejectPercent float64 // reject new connections above this process CPU%
	MemoryLimitBytes int64   // reject new connections above this RSS
}

// ResourceGuard is a static, configuration-driven safety valve that sits
// alongside the connection semaphore and rate limiter: even when both of
// those have room, a connection is refused if the process is already
// under CPU or memory pressure, rather than letting it tip over.
type ResourceGuard struct {
	cfg     GuardConfig
	sampler *sysstats.Sampler
	logger  zerolog.Logger
}

// NewResourceGuard builds a guard reading live samples from sampler. If
// cfg.MemoryLimitBytes is zero, the sampler's detected cgroup limit (if
// any) is used instead.
func NewResourceGuard(cfg GuardConfig, sampler *sysstats.Sampler, logger zerolog.Logger) *ResourceGuard {
	if cfg.MemoryLimitBytes == 0 {
		cfg.MemoryLimitBytes = sampler.CgroupMemoryLimit()
	}
	return &ResourceGuard{cfg: cfg, sampler: sampler, logger: logger}
}

// Admit reports whether a new connection should be accepted given the
// most recently sampled resource usage. A false return comes with a
// human-readable reason suitable for a log line.
func (g *ResourceGuard) Admit() (bool, string) {
	if g.cfg.CPURejectPercent > 0 {
		if cpu := g.sampler.CPUPercent(); cpu > g.cfg.CPURejectPercent {
			return false, fmt.Sprintf("cpu %.1f%% > %.1f%%", cpu, g.cfg.CPURejectPercent)
		}
	}
	if g.cfg.MemoryLimitBytes > 0 {
		if rss := g.sampler.RSSBytes(); rss > g.cfg.MemoryLimitBytes {
			return false, fmt.Sprintf("rss %d > limit %d", rss, g.cfg.MemoryLimitBytes)
		}
	}
	return true, ""
}
