package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCollector samples host and Go runtime gauges on an interval.
type SystemCollector struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines    prometheus.Gauge
	goHeapAlloc     prometheus.Gauge
	goHeapSys       prometheus.Gauge
	goGCPauseNs     prometheus.Histogram
	goGCCPUFraction prometheus.Gauge

	mu sync.Mutex
}

var (
	systemCollector     *SystemCollector
	systemCollectorOnce sync.Once
)

// System returns the singleton collector, registering its gauges on first use.
func System() *SystemCollector {
	systemCollectorOnce.Do(func() {
		systemCollector = newSystemCollector(Registry())
	})
	return systemCollector
}

func newSystemCollector(reg prometheus.Registerer) *SystemCollector {
	sc := &SystemCollector{
		systemCPUUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_cpu_usage_percent",
				Help: "Current CPU usage percentage",
			},
			[]string{"core"},
		),
		systemMemoryUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
			[]string{"type"},
		),
		goGoroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dentalapp_goroutines",
				Help: "Number of goroutines that currently exist",
			},
		),
		goHeapAlloc: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dentalapp_heap_alloc_bytes",
				Help: "Heap memory usage in bytes",
			},
		),
		goHeapSys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dentalapp_heap_sys_bytes",
				Help: "Heap memory reserved in bytes",
			},
		),
		goGCPauseNs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dentalapp_gc_pause_nanoseconds",
				Help:    "GC pause time in nanoseconds",
				Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
			},
		),
		goGCCPUFraction: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dentalapp_gc_cpu_fraction",
				Help: "Fraction of CPU time used by GC",
			},
		),
	}

	reg.MustRegister(
		sc.systemCPUUsage,
		sc.systemMemoryUsage,
		sc.goGoroutines,
		sc.goHeapAlloc,
		sc.goHeapSys,
		sc.goGCPauseNs,
		sc.goGCCPUFraction,
	)
	return sc
}

// Start samples immediately and then every interval until ctx is done.
func (sc *SystemCollector) Start(ctx context.Context, interval time.Duration) {
	sc.Collect()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sc.Collect()
			}
		}
	}()
}

// Collect takes one sample.
func (sc *SystemCollector) Collect() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.collectSystemMetrics()
	sc.collectGoRuntimeMetrics()
}

func (sc *SystemCollector) collectSystemMetrics() {
	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			sc.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		sc.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		sc.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		sc.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
		sc.systemMemoryUsage.WithLabelValues("free").Set(float64(vmstat.Free))
	}
}

func (sc *SystemCollector) collectGoRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sc.goGoroutines.Set(float64(runtime.NumGoroutine()))
	sc.goHeapAlloc.Set(float64(m.HeapAlloc))
	sc.goHeapSys.Set(float64(m.HeapSys))
	sc.goGCPauseNs.Observe(float64(m.PauseNs[(m.NumGC+255)%256]))
	sc.goGCCPUFraction.Set(m.GCCPUFraction)
}
