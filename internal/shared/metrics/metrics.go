package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	resourcesReceivedTotal  atomic.Uint64
	uploadsCompletedTotal   atomic.Uint64
	uploadsFailedTotal      atomic.Uint64
	compressFallbackTotal   atomic.Uint64
	eventsPublishedTotal    atomic.Uint64
	publishFailedTotal      atomic.Uint64
	callbacksProcessedTotal atomic.Uint64
	callbacksFailedTotal    atomic.Uint64

	ingestDuration   = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	compressDuration = newHistogram([]float64{500, 1000, 5000, 15000, 30000, 60000, 120000, 300000})
)

// IncResourcesReceived increments the received-resources counter by n.
func IncResourcesReceived(n int) {
	if n > 0 {
		resourcesReceivedTotal.Add(uint64(n))
	}
}

// IncUploadsCompleted increments the completed-uploads counter.
func IncUploadsCompleted() {
	uploadsCompletedTotal.Add(1)
}

// IncUploadsFailed increments the failed-uploads counter.
func IncUploadsFailed() {
	uploadsFailedTotal.Add(1)
}

// IncCompressFallback increments the compression-fallback counter.
func IncCompressFallback() {
	compressFallbackTotal.Add(1)
}

// IncEventsPublished increments the published-events counter.
func IncEventsPublished() {
	eventsPublishedTotal.Add(1)
}

// IncPublishFailed increments the failed-publish counter.
func IncPublishFailed() {
	publishFailedTotal.Add(1)
}

// IncCallbacksProcessed increments the processed-callbacks counter.
func IncCallbacksProcessed() {
	callbacksProcessedTotal.Add(1)
}

// IncCallbacksFailed increments the failed-callbacks counter.
func IncCallbacksFailed() {
	callbacksFailedTotal.Add(1)
}

// ObserveIngestDurationMs records an ingestion batch duration in milliseconds.
func ObserveIngestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ingestDuration.Observe(value)
}

// ObserveCompressDurationMs records a transcode duration in milliseconds.
func ObserveCompressDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	compressDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "training_resources_received_total", "Total training resources received", resourcesReceivedTotal.Load())
	writeCounter(&buf, "training_uploads_completed_total", "Total file uploads completed", uploadsCompletedTotal.Load())
	writeCounter(&buf, "training_uploads_failed_total", "Total file uploads failed", uploadsFailedTotal.Load())
	writeCounter(&buf, "training_compress_fallback_total", "Total transcodes that fell back to original bytes", compressFallbackTotal.Load())
	writeCounter(&buf, "training_events_published_total", "Total broker events published", eventsPublishedTotal.Load())
	writeCounter(&buf, "training_publish_failed_total", "Total broker publishes failed", publishFailedTotal.Load())
	writeCounter(&buf, "training_callbacks_processed_total", "Total completion callbacks processed", callbacksProcessedTotal.Load())
	writeCounter(&buf, "training_callbacks_failed_total", "Total completion callbacks failed", callbacksFailedTotal.Load())
	writeHistogram(&buf, "training_ingest_duration_ms", "Ingestion batch duration in milliseconds", ingestDuration.Snapshot())
	writeHistogram(&buf, "training_compress_duration_ms", "Transcode duration in milliseconds", compressDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
