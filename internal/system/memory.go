package system

import (
	"github.com/mackerelio/go-osstat/memory"
)

// GetTotalMemory returns the physical memory size in bytes.
func GetTotalMemory() (uint64, error) {
	stats, err := memory.Get()
	if err != nil {
		return 0, err
	}
	return stats.Total, nil
}
