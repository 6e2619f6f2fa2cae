package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielortegac/qlase/core"
)

const namespace = "qlase"

type PrometheusRecorder struct {
	registry *prometheus.Registry

	submissions      *prometheus.CounterVec
	grades           prometheus.Counter
	storageBytes     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	notificationErrs *prometheus.CounterVec
}

var _ core.Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the workflow collectors on a registry of its own,
// together with the go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Assignment submissions recorded, by lateness.",
		}, []string{"late"}),
		grades: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_saved_total",
			Help:      "Student grades written by instructors.",
		}),
		storageBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_charged_bytes_total",
			Help:      "Bytes charged to storage quotas, by source.",
		}, []string{"source"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dispatched_total",
			Help:      "Notification records written, by type.",
		}, []string{"type"}),
		notificationErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification batches that could not be written, by type.",
		}, []string{"type"}),
	}
}

func (r *PrometheusRecorder) SubmissionRecorded(late bool) {
	r.submissions.WithLabelValues(strconv.FormatBool(late)).Inc()
}

func (r *PrometheusRecorder) GradesSaved(count int) {
	if count > 0 {
		r.grades.Add(float64(count))
	}
}

func (r *PrometheusRecorder) StorageCharged(source string, bytes int64) {
	// zero-byte charges are no-ops; counters cannot go down anyway
	if bytes > 0 {
		r.storageBytes.WithLabelValues(source).Add(float64(bytes))
	}
}

func (r *PrometheusRecorder) NotificationsDispatched(kind string, count int) {
	if count > 0 {
		r.notifications.WithLabelValues(kind).Add(float64(count))
	}
}

func (r *PrometheusRecorder) NotificationFailed(kind string) {
	r.notificationErrs.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
