package rowdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    rowsCreated prometheus.Counter
//	    saveBytes   prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCreateRow(duration time.Duration, err error) {
//	    p.rowsCreated.Inc()
//	}
type MetricsCollector interface {
	// RecordCreateRow is called after each row creation.
	RecordCreateRow(duration time.Duration, err error)

	// RecordQuery is called after each Where or With predicate.
	// scanned is the number of rows compared, matched the number that matched.
	RecordQuery(scanned, matched int, duration time.Duration)

	// RecordRemove is called after RemoveSelection with the number of rows removed.
	RecordRemove(count int, duration time.Duration, err error)

	// RecordSave is called after each save with the number of bytes written.
	RecordSave(bytes int, duration time.Duration, err error)

	// RecordLoad is called after each load with the number of bytes read.
	RecordLoad(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreateRow(time.Duration, error)   {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration)    {}
func (NoopMetricsCollector) RecordRemove(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CreateRowCount  atomic.Int64
	CreateRowErrors atomic.Int64
	QueryCount      atomic.Int64
	QueryScanned    atomic.Int64
	QueryMatched    atomic.Int64
	QueryTotalNanos atomic.Int64
	RemoveCount     atomic.Int64
	RowsRemoved     atomic.Int64
	RemoveErrors    atomic.Int64
	SaveCount       atomic.Int64
	SaveBytes       atomic.Int64
	SaveErrors      atomic.Int64
	LoadCount       atomic.Int64
	LoadBytes       atomic.Int64
	LoadErrors      atomic.Int64
}

// RecordCreateRow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreateRow(_ time.Duration, err error) {
	b.CreateRowCount.Add(1)
	if err != nil {
		b.CreateRowErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(scanned, matched int, duration time.Duration) {
	b.QueryCount.Add(1)
	b.QueryScanned.Add(int64(scanned))
	b.QueryMatched.Add(int64(matched))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(count int, _ time.Duration, err error) {
	b.RemoveCount.Add(1)
	b.RowsRemoved.Add(int64(count))
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(int64(bytes))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateRowCount:  b.CreateRowCount.Load(),
		CreateRowErrors: b.CreateRowErrors.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryScanned:    b.QueryScanned.Load(),
		QueryMatched:    b.QueryMatched.Load(),
		QueryAvgNanos:   b.getAvgQueryNanos(),
		RemoveCount:     b.RemoveCount.Load(),
		RowsRemoved:     b.RowsRemoved.Load(),
		RemoveErrors:    b.RemoveErrors.Load(),
		SaveCount:       b.SaveCount.Load(),
		SaveBytes:       b.SaveBytes.Load(),
		SaveErrors:      b.SaveErrors.Load(),
		LoadCount:       b.LoadCount.Load(),
		LoadBytes:       b.LoadBytes.Load(),
		LoadErrors:      b.LoadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateRowCount  int64
	CreateRowErrors int64
	QueryCount      int64
	QueryScanned    int64
	QueryMatched    int64
	QueryAvgNanos   int64
	RemoveCount     int64
	RowsRemoved     int64
	RemoveErrors    int64
	SaveCount       int64
	SaveBytes       int64
	SaveErrors      int64
	LoadCount       int64
	LoadBytes       int64
	LoadErrors      int64
}
