package consensus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics 共识协调器的 Prometheus 指标
//
// nil 接收者安全：未注入注册器时所有记录方法为空操作。
type promMetrics struct {
	roundsStarted     prometheus.Counter
	electionsComputed prometheus.Counter
	electionsFailed   prometheus.Counter
	statsEntries      *prometheus.CounterVec
	electionDuration  prometheus.Histogram
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &promMetrics{
		roundsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vchat",
			Subsystem: "consensus",
			Name:      "rounds_started_total",
			Help:      "Total election rounds started on this participant.",
		}),
		electionsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vchat",
			Subsystem: "consensus",
			Name:      "elections_computed_total",
			Help:      "Total elections computed successfully.",
		}),
		electionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vchat",
			Subsystem: "consensus",
			Name:      "elections_failed_total",
			Help:      "Total election rounds abandoned (e.g. insufficient metrics).",
		}),
		statsEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vchat",
			Subsystem: "consensus",
			Name:      "stats_entries_total",
			Help:      "Metrics entries processed, by outcome.",
		}, []string{"outcome"}),
		electionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vchat",
			Subsystem: "consensus",
			Name:      "election_duration_seconds",
			Help:      "Wall time of the election computation.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 7),
		}),
	}
}

func (p *promMetrics) roundStarted() {
	if p == nil {
		return
	}
	p.roundsStarted.Inc()
}

func (p *promMetrics) electionComputed(d time.Duration) {
	if p == nil {
		return
	}
	p.electionsComputed.Inc()
	p.electionDuration.Observe(d.Seconds())
}

func (p *promMetrics) electionFailed() {
	if p == nil {
		return
	}
	p.electionsFailed.Inc()
}

func (p *promMetrics) statsAccepted(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.statsEntries.WithLabelValues("accepted").Add(float64(n))
}

func (p *promMetrics) statsRejected(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.statsEntries.WithLabelValues("rejected").Add(float64(n))
}
