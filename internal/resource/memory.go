// Package resource provides host resource checks used to admit or refuse
// processing work before it starts.
package resource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v4/mem"
)

// Memory requirements in GiB for pipeline admission.
const (
	// DefaultRequiredGiB is the minimum available memory for a standard run.
	DefaultRequiredGiB = 2.0
	// UltraHighResRequiredGiB applies when an input larger than 4K enters
	// the pipeline; decoded ultra-high-resolution frames are an order of
	// magnitude bigger.
	UltraHighResRequiredGiB = 8.0
)

const bytesPerGiB = 1 << 30

// InsufficientMemoryError reports a failed memory preflight check.
type InsufficientMemoryError struct {
	AvailableGiB float64
	RequiredGiB  float64
}

func (e *InsufficientMemoryError) Error() string {
	return fmt.Sprintf("insufficient memory: %.1fGiB available, %.1fGiB required",
		e.AvailableGiB, e.RequiredGiB)
}

// Monitor reads host memory statistics for preflight checks.
type Monitor struct {
	logger *slog.Logger
	// virtualMemory is swapped by tests.
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
}

// NewMonitor creates a Monitor. A nil logger falls back to slog.Default().
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:        logger,
		virtualMemory: mem.VirtualMemoryWithContext,
	}
}

// AvailableGiB reports the host's available memory. ok is false when the
// statistic cannot be read; callers treat that as unknown, not as zero.
func (m *Monitor) AvailableGiB(ctx context.Context) (gib float64, ok bool) {
	stat, err := m.virtualMemory(ctx)
	if err != nil {
		m.logger.Warn("memory statistics unavailable",
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return float64(stat.Available) / bytesPerGiB, true
}

// Require returns an InsufficientMemoryError when less than requiredGiB is
// available. An unreadable statistic passes the check: refusing all work on
// hosts with a restricted /proc would be worse than occasionally admitting a
// job that later trips the reactive out-of-memory handling.
func (m *Monitor) Require(ctx context.Context, requiredGiB float64) error {
	available, ok := m.AvailableGiB(ctx)
	if !ok {
		return nil
	}
	if available < requiredGiB {
		return &InsufficientMemoryError{AvailableGiB: available, RequiredGiB: requiredGiB}
	}
	m.logger.Debug("memory preflight passed",
		slog.Float64("available_gib", available),
		slog.Float64("required_gib", requiredGiB),
	)
	return nil
}
