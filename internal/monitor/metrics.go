package monitor

import (
	"fmt"
	"net/http"

	"github.com/OCAP2/missionsim/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the latest performance sample as Prometheus gauges.
type Metrics struct {
	gatherer prometheus.Gatherer

	Tick              prometheus.Gauge
	Progress          prometheus.Gauge
	TicksPerSecond    prometheus.Gauge
	LastWriteDuration prometheus.Gauge
	BufferedRecords   *prometheus.GaugeVec
	WriteQueueLength  *prometheus.GaugeVec
}

// NewMetrics registers the monitor gauges against reg, defaulting to the
// global registry when nil. Registering twice on one registry returns the
// existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&m.Tick, "missionsim_tick", "Last completed simulation tick."},
		{&m.Progress, "missionsim_progress_ratio", "Completed share of the run window, 0 to 1."},
		{&m.TicksPerSecond, "missionsim_ticks_per_second", "Simulated ticks per wall-clock second since the previous sample."},
		{&m.LastWriteDuration, "missionsim_last_write_duration_seconds", "Duration of the last database batch write."},
	}
	for _, g := range gauges {
		*g.dst, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
	}

	m.BufferedRecords, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "missionsim_buffered_records",
		Help: "Records waiting in the dispatcher buffers, labeled by stream.",
	}, []string{"stream"}), "missionsim_buffered_records")
	if err != nil {
		return nil, err
	}

	m.WriteQueueLength, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "missionsim_write_queue_length",
		Help: "Rows waiting for the database writer, labeled by table.",
	}, []string{"table"}), "missionsim_write_queue_length")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Observe publishes one sample.
func (m *Metrics) Observe(perf model.SimPerformance, progress float64) {
	if m == nil {
		return
	}
	m.Tick.Set(float64(perf.Tick))
	m.Progress.Set(progress)
	m.TicksPerSecond.Set(perf.TicksPerSecond)
	m.LastWriteDuration.Set(float64(perf.LastWriteDurationMs) / 1000)

	m.BufferedRecords.WithLabelValues("events").Set(float64(perf.BufferLengths.Events))
	m.BufferedRecords.WithLabelValues("timeline").Set(float64(perf.BufferLengths.Timeline))

	q := perf.WriteQueueLengths
	m.WriteQueueLength.WithLabelValues("timeline_positions").Set(float64(q.TimelinePositions))
	m.WriteQueueLength.WithLabelValues("detection_events").Set(float64(q.DetectionEvents))
	m.WriteQueueLength.WithLabelValues("detonation_events").Set(float64(q.DetonationEvents))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
