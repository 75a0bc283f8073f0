package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentPerfStats publishes process gauges on every metric collection
// until ctx is done.
func InstrumentPerfStats(ctx context.Context) {
	reg, err := registerProcessGauges(otel.Meter("palmstat/process"))
	if err != nil {
		slog.WarnContext(ctx, "process gauges unavailable", "err", err)
		return
	}
	go func() {
		<-ctx.Done()
		reg.Unregister()
	}()
}

func registerProcessGauges(meter metric.Meter) (metric.Registration, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	cpuPercent, err := meter.Float64ObservableGauge("process.cpu.percent", metric.WithUnit("%"))
	if err != nil {
		return nil, err
	}
	rss, err := meter.Int64ObservableGauge("process.memory.rss", metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	heapObjects, err := meter.Int64ObservableGauge("process.heap.objects")
	if err != nil {
		return nil, err
	}
	goroutines, err := meter.Int64ObservableGauge("process.goroutines")
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		o.ObserveInt64(heapObjects, int64(mem.HeapObjects))
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))

		// gopsutil failures only drop the affected sample
		if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
			o.ObserveFloat64(cpuPercent, pct)
		}
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			o.ObserveInt64(rss, int64(info.RSS))
		}
		return nil
	}, cpuPercent, rss, heapObjects, goroutines)
}
