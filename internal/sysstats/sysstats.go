// Package sysstats periodically samples process CPU and memory usage and
// logs it, giving operators a signal independent of the Prometheus scrape
// interval.
package sysstats

import (
	"context"
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler periodically logs process resource usage until its context is
// canceled. The most recent sample is also published for synchronous
// readers, such as a connection-admission guard, via CPUPercent/RSSBytes.
type Sampler struct {
	logger   zerolog.Logger
	interval time.Duration

	cpuPercentBits uint64 // math.Float64bits, read/written via atomic
	rssBytes       int64

	cgroupMemoryLimit int64 // bytes; 0 when no limit was detected
}

// New returns a Sampler that logs at the given interval.
func New(logger zerolog.Logger, interval time.Duration) *Sampler {
	s := &Sampler{logger: logger, interval: interval}
	if limit, err := cgroupMemoryLimit(); err != nil {
		logger.Debug().Err(err).Msg("sysstats: no cgroup memory limit detected")
	} else if limit > 0 {
		s.cgroupMemoryLimit = limit
		logger.Info().Int64("memory_limit_bytes", limit).Msg("sysstats: detected container memory limit")
	}
	return s
}

// CPUPercent returns the most recently sampled process CPU percentage.
// Zero until the first sample completes.
func (s *Sampler) CPUPercent() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.cpuPercentBits))
}

// RSSBytes returns the most recently sampled resident set size in bytes.
// Zero until the first sample completes.
func (s *Sampler) RSSBytes() int64 {
	return atomic.LoadInt64(&s.rssBytes)
}

// CgroupMemoryLimit returns the container memory limit detected at
// startup, or 0 if none was found (bare metal, or an unsupported cgroup
// layout).
func (s *Sampler) CgroupMemoryLimit() int64 {
	return s.cgroupMemoryLimit
}

// Run blocks, sampling until ctx is canceled.
func (s *Sampler) Run(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Warn().Err(err).Msg("sysstats: could not attach to own process, memory samples disabled")
		proc = nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(proc)
		}
	}
}

func (s *Sampler) sample(proc *process.Process) {
	pct, err := cpu.Percent(0, false)
	var cpuPercent float64
	if err == nil && len(pct) > 0 {
		cpuPercent = pct[0]
	}

	var rssMB float64
	if proc != nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			rssMB = float64(mem.RSS) / 1024 / 1024
			atomic.StoreInt64(&s.rssBytes, int64(mem.RSS))
		}
	}
	atomic.StoreUint64(&s.cpuPercentBits, math.Float64bits(cpuPercent))

	s.logger.Info().
		Float64("cpu_percent", cpuPercent).
		Float64("rss_mb", rssMB).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("resource sample")
}
