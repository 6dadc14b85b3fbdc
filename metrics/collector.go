package metrics

import (
	"sync/atomic"
	"time"
)

// RunMetric summarises one ringmaster run.
type RunMetric struct {
	StartTime time.Time
	Duration  time.Duration
	Started   int
	Completed int
	Void      int
}

type Collector interface {
	Start()
	AddStarted()
	AddCompleted()
	AddVoid()
	Complete() RunMetric
}

type collector struct {
	startTime time.Time
	started   atomic.Int32
	completed atomic.Int32
	void      atomic.Int32
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start() {
	m.startTime = time.Now()
}

func (m *collector) AddStarted() {
	m.started.Add(1)
}

func (m *collector) AddCompleted() {
	m.completed.Add(1)
}

func (m *collector) AddVoid() {
	m.void.Add(1)
}

func (m *collector) Complete() RunMetric {
	return RunMetric{
		StartTime: m.startTime,
		Duration:  time.Since(m.startTime),
		Started:   int(m.started.Load()),
		Completed: int(m.completed.Load()),
		Void:      int(m.void.Load()),
	}
}
