package tpcb

import (
	"runtime"
)

// MemorySampler reports the current memory usage in bytes.
type MemorySampler interface {
	SampleMemory() int64
}

// MemorySamplerFunc adapts a function to MemorySampler.
type MemorySamplerFunc func() int64

// SampleMemory calls f.
func (f MemorySamplerFunc) SampleMemory() int64 {
	return f()
}

// RuntimeMemorySampler samples the heap of the running Go process.
type RuntimeMemorySampler struct{}

// SampleMemory returns the bytes of allocated heap objects.
func (RuntimeMemorySampler) SampleMemory() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	return int64(stats.HeapAlloc) //nolint:gosec // heap sizes fit into int64
}
