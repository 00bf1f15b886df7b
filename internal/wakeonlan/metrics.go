package wakeonlan

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "wolgate"

type metrics struct {
	devices         prometheus.Gauge
	reachable       *prometheus.GaugeVec
	probes          *prometheus.CounterVec
	wakes           *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	discoveryErrors prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "devices",
			Help:      "Number of registered Wake-on-LAN devices.",
		}),
		reachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "device_reachable",
			Help:      "Last probe outcome per device (1 reachable, 0 unreachable).",
		}, []string{"device_id"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "probes_total",
			Help:      "Reachability probes by result.",
		}, []string{"result"}),
		wakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "wakes_total",
			Help:      "Wake actions by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of periodic reachability sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		discoveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "discovery_errors_total",
			Help:      "Failed ARP discovery scans.",
		}),
	}
}

// register adds the collectors to reg. Collectors already registered by a
// previous instance are reused.
func (m *metrics) register(reg prometheus.Registerer) error {
	var errs []error
	m.devices = registerOrExisting(reg, m.devices, &errs)
	m.reachable = registerOrExisting(reg, m.reachable, &errs)
	m.probes = registerOrExisting(reg, m.probes, &errs)
	m.wakes = registerOrExisting(reg, m.wakes, &errs)
	m.sweepDuration = registerOrExisting(reg, m.sweepDuration, &errs)
	m.discoveryErrors = registerOrExisting(reg, m.discoveryErrors, &errs)
	return errors.Join(errs...)
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C, errs *[]error) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errs = append(*errs, err)
	}
	return c
}

func boolResult(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
