package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fcm_send_total",
		Help: "Total FCM send attempts by outcome.",
	}, []string{"outcome"})

	SendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fcm_send_duration_seconds",
		Help:    "Latency of FCM send calls, including the token fetch.",
		Buckets: prometheus.DefBuckets,
	})
)

const OutcomeSuccess = "success"

// Register adds the collectors to reg. Registering twice on the same
// registry is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{SendTotal, SendDuration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSend records one send with its outcome label.
func ObserveSend(outcome string, elapsed time.Duration) {
	SendTotal.WithLabelValues(outcome).Inc()
	SendDuration.Observe(elapsed.Seconds())
}
