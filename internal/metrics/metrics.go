// Package metrics exposes Prometheus instrumentation for the history and
// clipboard engines. Metrics are registered on the default registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture results
const (
	CaptureCreated    = "created"
	CaptureCoalesced  = "coalesced"
	CaptureSuppressed = "suppressed"
	CaptureError      = "error"
)

// Notification results
const (
	NotificationHandled    = "handled"
	NotificationSuppressed = "suppressed"
	NotificationIgnored    = "ignored"
)

var (
	// snapshotCaptureTotal counts capture calls by trigger and outcome
	snapshotCaptureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_snapshot_capture_total",
		Help: "Snapshot capture calls by trigger kind and result",
	}, []string{"trigger", "result"})

	// restoreTotal counts undo/redo restores by direction and outcome
	restoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_restore_total",
		Help: "Undo/redo restores by direction and result",
	}, []string{"direction", "result"})

	// restoreDuration tracks restore latency including the store round trip
	restoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_restore_duration_seconds",
		Help:    "Undo/redo restore duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"direction"})

	// clipboardPasteTotal counts paste calls by level and outcome
	clipboardPasteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_clipboard_paste_total",
		Help: "Clipboard paste calls by level (meal/day) and result",
	}, []string{"level", "result"})

	// notificationTotal counts change notifications by how they were handled
	notificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_change_notification_total",
		Help: "Change notifications by handling result",
	}, []string{"result"})

	// httpRequestDuration tracks API latency by route pattern
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// queueDepth tracks operations waiting in all operation queues
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_queue_depth",
		Help: "Write operations waiting in operation queues",
	})
)

// RecordCapture counts a capture outcome
func RecordCapture(trigger, result string) {
	snapshotCaptureTotal.WithLabelValues(trigger, result).Inc()
}

// RecordRestore counts a restore and observes its duration
func RecordRestore(direction string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	restoreTotal.WithLabelValues(direction, result).Inc()
	restoreDuration.WithLabelValues(direction).Observe(took.Seconds())
}

// RecordPaste counts a paste; empty means the clipboard was inactive
func RecordPaste(level string, empty bool) {
	result := "ok"
	if empty {
		result = "empty"
	}
	clipboardPasteTotal.WithLabelValues(level, result).Inc()
}

// RecordNotification counts a change notification outcome
func RecordNotification(result string) {
	notificationTotal.WithLabelValues(result).Inc()
}

// QueueEnqueued increments the queue depth gauge
func QueueEnqueued() {
	queueDepth.Inc()
}

// QueueDequeued decrements the queue depth gauge
func QueueDequeued() {
	queueDepth.Dec()
}

// RecordHTTPRequest observes one API request. Unmatched routes share a label.
func RecordHTTPRequest(method, route string, status int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(took.Seconds())
}
