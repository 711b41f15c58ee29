package sysstats

import (
	"os"
	"strconv"
	"strings"
)

// cgroupMemoryLimit returns the container memory limit in bytes, checking
// cgroup v2 before falling back to v1. It returns (0, nil) when no limit
// is in effect (bare metal, or an unconfined container).
func cgroupMemoryLimit() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limit := strings.TrimSpace(string(data))
		if limit == "max" {
			return 0, nil
		}
		return strconv.ParseInt(limit, 10, 64)
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		limit, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, err
		}
		// cgroup v1 reports an unconfined group as a value near the int64
		// maximum rather than a "max" keyword.
		if limit >= 1<<62 {
			return 0, nil
		}
		return limit, nil
	}

	return 0, nil
}
