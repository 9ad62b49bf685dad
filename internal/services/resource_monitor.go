package services

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

// ResourceSnapshot captures system resource usage at a point in time.
type ResourceSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUUsagePct   float64   `json:"cpu_usage_pct"`
	MemoryUsedPct float64   `json:"memory_used_pct"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	Goroutines    int       `json:"goroutines"`
}

// ResourceMonitor samples CPU and memory usage. The pipeline logs a
// snapshot around each stage and the detailed health endpoint serves the
// latest one; there is no background loop, samples are taken on demand.
type ResourceMonitor struct {
	mu             sync.RWMutex
	cpuCores       int
	memoryGB       float64
	latest         ResourceSnapshot
	history        []ResourceSnapshot
	maxHistorySize int
	logger         *slog.Logger
}

// NewResourceMonitor creates a resource monitor.
func NewResourceMonitor() *ResourceMonitor {
	var logger *slog.Logger
	if telemetryLogger := telemetry.GetLogger(); telemetryLogger != nil {
		logger = telemetryLogger
	} else {
		logger = slog.Default()
	}

	rm := &ResourceMonitor{
		cpuCores:       runtime.NumCPU(),
		maxHistorySize: 100,
		logger:         logger,
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		rm.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		rm.logger.Warn("Could not get memory info", "error", err)
	}

	return rm
}

// Sample takes one snapshot of current CPU and memory usage and appends
// it to the bounded history.
func (rm *ResourceMonitor) Sample(ctx context.Context) ResourceSnapshot {
	snapshot := ResourceSnapshot{
		Timestamp:  time.Now().UTC(),
		Goroutines: runtime.NumGoroutine(),
	}

	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		snapshot.CPUUsagePct = percentages[0]
	} else if err != nil {
		rm.logger.Debug("CPU sample failed", "error", err)
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snapshot.MemoryUsedPct = memInfo.UsedPercent
		snapshot.MemoryUsedMB = float64(memInfo.Used) / (1024 * 1024)
	} else {
		rm.logger.Debug("Memory sample failed", "error", err)
	}

	rm.mu.Lock()
	rm.latest = snapshot
	rm.history = append(rm.history, snapshot)
	if len(rm.history) > rm.maxHistorySize {
		rm.history = rm.history[len(rm.history)-rm.maxHistorySize:]
	}
	rm.mu.Unlock()

	return snapshot
}

// Latest returns the most recent snapshot, zero-valued before the first
// sample.
func (rm *ResourceMonitor) Latest() ResourceSnapshot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.latest
}

// History returns up to limit most recent snapshots, oldest first.
func (rm *ResourceMonitor) History(limit int) []ResourceSnapshot {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	history := rm.history
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]ResourceSnapshot, len(history))
	copy(out, history)
	return out
}

// SystemInfo returns static host facts for the detailed health payload.
func (rm *ResourceMonitor) SystemInfo() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return map[string]interface{}{
		"cpu_cores":  rm.cpuCores,
		"memory_gb":  rm.memoryGB,
		"goroutines": runtime.NumGoroutine(),
	}
}

// LogStageSnapshot samples and logs resource usage tagged with a
// pipeline stage, matching how stage boundaries are traced.
func (rm *ResourceMonitor) LogStageSnapshot(ctx context.Context, runID, stage string) {
	snapshot := rm.Sample(ctx)
	rm.logger.Info("Resource snapshot",
		"run_id", runID,
		"stage", stage,
		"cpu_pct", snapshot.CPUUsagePct,
		"memory_pct", snapshot.MemoryUsedPct,
		"goroutines", snapshot.Goroutines,
	)
}
