package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records scheduled maintenance job runs.
type JobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_job_runs_total",
		Help: "Scheduled job runs by outcome.",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run of each job.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &JobMetrics{duration: duration, runs: runs, lastSuccess: lastSuccess}
}

// Observe records one finished run. A nil err counts as success.
func (j *JobMetrics) Observe(job string, duration time.Duration, err error) {
	if j == nil || j.runs == nil {
		return
	}
	job = normalizeLabel(job)
	j.duration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		j.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	j.runs.WithLabelValues(job, "success").Inc()
	j.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}
