package tpcb

import (
	"sync"
	"sync/atomic"
	"time"
)

// RunStatistics is a snapshot of the counters of one sub-run.
type RunStatistics struct {
	TotalCount  int64
	FailedCount int64
	StartTime   time.Time
	EndTime     time.Time
	MinMemory   int64
	MaxMemory   int64
}

// PassedCount returns the number of successful transactions.
func (s RunStatistics) PassedCount() int64 {
	return s.TotalCount - s.FailedCount
}

// Elapsed returns the wall-clock duration of the sub-run with millisecond granularity.
func (s RunStatistics) Elapsed() time.Duration {
	if s.EndTime.Before(s.StartTime) {
		return 0
	}

	return s.EndTime.Sub(s.StartTime).Truncate(time.Millisecond)
}

// ElapsedSeconds returns Elapsed in seconds.
func (s RunStatistics) ElapsedSeconds() float64 {
	return float64(s.Elapsed().Milliseconds()) / 1000
}

// Throughput returns passed transactions per second.
// The second return value is false when no time has elapsed.
func (s RunStatistics) Throughput() (float64, bool) {
	elapsedSeconds := s.ElapsedSeconds()
	if elapsedSeconds <= 0 {
		return 0, false
	}

	return float64(s.PassedCount()) / elapsedSeconds, true
}

// StatisticsCollector accumulates the counters of one sub-run.
// It is shared by all workers of the sub-run and safe for concurrent use.
type StatisticsCollector struct {
	totalCount  atomic.Int64
	failedCount atomic.Int64

	mu            sync.Mutex
	startTime     time.Time
	endTime       time.Time
	minMemory     int64
	maxMemory     int64
	memorySampled bool
}

// NewStatisticsCollector creates an empty collector.
func NewStatisticsCollector() *StatisticsCollector {
	return &StatisticsCollector{}
}

// IncrementTotal counts one attempted transaction.
func (c *StatisticsCollector) IncrementTotal() {
	c.totalCount.Add(1)
}

// IncrementFailed counts one failed transaction.
func (c *StatisticsCollector) IncrementFailed() {
	c.failedCount.Add(1)
}

// MarkStart records the start of the sub-run.
func (c *StatisticsCollector) MarkStart(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = t
}

// MarkEnd records the end of the sub-run.
func (c *StatisticsCollector) MarkEnd(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endTime = t
}

// ObserveMemory widens the observed memory bounds with one sample in bytes.
func (c *StatisticsCollector) ObserveMemory(bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.memorySampled {
		c.minMemory = bytes
		c.maxMemory = bytes
		c.memorySampled = true

		return
	}

	c.minMemory = min(c.minMemory, bytes)
	c.maxMemory = max(c.maxMemory, bytes)
}

// Snapshot returns the current counters.
func (c *StatisticsCollector) Snapshot() RunStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	// failed is read first so that a concurrent increment can never yield failed > total
	failed := c.failedCount.Load()
	total := c.totalCount.Load()

	return RunStatistics{
		TotalCount:  total,
		FailedCount: failed,
		StartTime:   c.startTime,
		EndTime:     c.endTime,
		MinMemory:   c.minMemory,
		MaxMemory:   c.maxMemory,
	}
}

// Reset clears all counters, timestamps, and memory bounds.
func (c *StatisticsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalCount.Store(0)
	c.failedCount.Store(0)
	c.startTime = time.Time{}
	c.endTime = time.Time{}
	c.minMemory = 0
	c.maxMemory = 0
	c.memorySampled = false
}
