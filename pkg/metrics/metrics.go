// Package metrics records how long each execution phase takes.
//
// Every operator phase reports into one prometheus histogram labelled by
// phase. The histogram lives on a package registry that the command line
// can expose over HTTP (Handler, NewServer) or print once at exit (Dump).
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Phase names one timed section of query execution.
type Phase string

const (
	PhaseQueryParse       Phase = "query_parse"
	PhaseFilterScan       Phase = "filter_scan"
	PhaseJoin             Phase = "join"
	PhaseJoinResolve      Phase = "join_resolve"
	PhaseJoinBuild        Phase = "join_build"
	PhaseJoinProbeCount   Phase = "join_probe_count"
	PhaseJoinProbeScatter Phase = "join_probe_scatter"
	PhaseSelfJoin         Phase = "self_join"
	PhaseChecksum         Phase = "checksum"
	PhaseQueueingDelay    Phase = "queueing_delay"
)

// AllPhases lists phases in the order Dump prints them.
var AllPhases = []Phase{
	PhaseQueryParse,
	PhaseFilterScan,
	PhaseJoin,
	PhaseJoinResolve,
	PhaseJoinBuild,
	PhaseJoinProbeCount,
	PhaseJoinProbeScatter,
	PhaseSelfJoin,
	PhaseChecksum,
	PhaseQueueingDelay,
}

// Registry holds every parajoin collector.
var Registry = prometheus.NewRegistry()

var phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "parajoin",
	Name:      "phase_duration_seconds",
	Help:      "Wall time spent in each query execution phase.",
	Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
}, []string{"phase"})

var queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parajoin",
	Name:      "queries_total",
	Help:      "Queries executed, by outcome.",
}, []string{"outcome"})

func init() {
	Registry.MustRegister(phaseDuration, queriesTotal)
}

// Observe records d against phase.
func Observe(phase Phase, d time.Duration) {
	phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// Track starts timing phase and returns the function that stops it.
//
//	defer metrics.Track(metrics.PhaseJoin)()
func Track(phase Phase) func() {
	start := time.Now()
	return func() {
		Observe(phase, time.Since(start))
	}
}

// QueryDone counts one finished query.
func QueryDone(err error) {
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		return
	}
	queriesTotal.WithLabelValues("ok").Inc()
}

// Reset clears every recorded sample.
func Reset() {
	phaseDuration.Reset()
	queriesTotal.Reset()
}

// PhaseStats is the summary Dump prints for one phase.
type PhaseStats struct {
	Phase Phase
	Count uint64
	Sum   time.Duration
}

// Avg returns the mean duration, zero when nothing was recorded.
func (s PhaseStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / time.Duration(s.Count)
}

// Snapshot gathers the current per-phase totals from the registry.
func Snapshot() (map[Phase]PhaseStats, error) {
	families, err := Registry.Gather()
	if err != nil {
		return nil, err
	}

	stats := make(map[Phase]PhaseStats)
	for _, mf := range families {
		if mf.GetName() != "parajoin_phase_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			phase := Phase(labelValue(m, "phase"))
			h := m.GetHistogram()
			stats[phase] = PhaseStats{
				Phase: phase,
				Count: h.GetSampleCount(),
				Sum:   time.Duration(h.GetSampleSum() * float64(time.Second)),
			}
		}
	}
	return stats, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// Dump writes one line per recorded phase: average, sum and sample count.
func Dump(w io.Writer) error {
	stats, err := Snapshot()
	if err != nil {
		return err
	}

	for _, phase := range AllPhases {
		s, ok := stats[phase]
		if !ok || s.Count == 0 {
			continue
		}
		_, err := fmt.Fprintf(w, "%-20s avg=%s sum=%s (%s)\n",
			phase,
			humanize.SIWithDigits(s.Avg().Seconds(), 2, "s"),
			humanize.SIWithDigits(s.Sum.Seconds(), 2, "s"),
			humanize.Comma(int64(s.Count)))
		if err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// NewServer returns an HTTP server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
