package metrics

import (
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    operations = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdftoolkit",
            Name:      "operations_total",
            Help:      "Toolkit operations by operation and result (success, rejected, error, cancelled, busy)",
        },
        []string{"operation", "result"},
    )

    operationLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdftoolkit",
            Name:      "operation_duration_seconds",
            Help:      "Duration of toolkit operations including upload parsing",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"operation"},
    )

    pagesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdftoolkit",
            Name:      "pages_processed_total",
            Help:      "Pages written to output documents by operation",
        },
        []string{"operation"},
    )

    uploadBytes = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdftoolkit",
            Name:      "upload_bytes",
            Help:      "Size of multipart uploads by operation",
            Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
        },
        []string{"operation"},
    )

    imagesExtracted = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdftoolkit",
            Name:      "images_extracted_total",
            Help:      "Embedded images written to extraction archives by file format",
        },
        []string{"format"},
    )

    extractionPageFailures = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdftoolkit",
            Name:      "extraction_page_failures_total",
            Help:      "Pages skipped during image extraction because enumeration failed",
        },
    )

    httpRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdftoolkit",
            Name:      "http_requests_total",
            Help:      "HTTP requests by route and status code",
        },
        []string{"route", "code"},
    )

    inflight = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdftoolkit",
            Name:      "operations_inflight",
            Help:      "Operations currently holding a concurrency slot",
        },
    )

    capacity = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdftoolkit",
            Name:      "operations_capacity",
            Help:      "Concurrency slots available to operations",
        },
    )

    registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    registerOnce.Do(func() {
        prometheus.MustRegister(operations, operationLatency, pagesProcessed, uploadBytes, imagesExtracted, extractionPageFailures, httpRequests, inflight, capacity)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveOperation(op, result string, dur time.Duration) {
    operations.WithLabelValues(op, result).Inc()
    operationLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func AddPages(op string, n int) {
    if n > 0 {
        pagesProcessed.WithLabelValues(op).Add(float64(n))
    }
}

func ObserveUpload(op string, size int64) { uploadBytes.WithLabelValues(op).Observe(float64(size)) }

func AddImagesExtracted(format string, n int) {
    if n > 0 {
        imagesExtracted.WithLabelValues(format).Add(float64(n))
    }
}

func AddExtractionPageFailures(n int) {
    if n > 0 {
        extractionPageFailures.Add(float64(n))
    }
}

func ObserveHTTP(route string, code int) { httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc() }

func SetInFlight(n int) { inflight.Set(float64(n)) }

func SetCapacity(n int) { capacity.Set(float64(n)) }
