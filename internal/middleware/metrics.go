package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	IntakesCreated  uint64
	AnalysesTotal   uint64
	AnalysesFailed  uint64
	ExportsTotal    uint64
	ExportsFallback uint64
	ExportsFailed   uint64
	EmailsSent      uint64
	EmailsFailed    uint64
	StartTime       time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()   { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()    { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()     { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }

// IncrementIntakes counts created intakes.
func IncrementIntakes() { atomic.AddUint64(&globalMetrics.IntakesCreated, 1) }

// RecordAnalysis counts AI analysis runs and their failures.
func RecordAnalysis(err error) {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
	if err != nil {
		atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
	}
}

// RecordExport counts Notion exports; fallback means the page was saved without photos.
func RecordExport(fallback bool, err error) {
	atomic.AddUint64(&globalMetrics.ExportsTotal, 1)
	switch {
	case err != nil:
		atomic.AddUint64(&globalMetrics.ExportsFailed, 1)
	case fallback:
		atomic.AddUint64(&globalMetrics.ExportsFallback, 1)
	}
}

// RecordEmail counts report e-mails.
func RecordEmail(err error) {
	if err != nil {
		atomic.AddUint64(&globalMetrics.EmailsFailed, 1)
		return
	}
	atomic.AddUint64(&globalMetrics.EmailsSent, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"intakes_created":      atomic.LoadUint64(&globalMetrics.IntakesCreated),
		"analyses_total":       atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_failed":      atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"exports_total":        atomic.LoadUint64(&globalMetrics.ExportsTotal),
		"exports_fallback":     atomic.LoadUint64(&globalMetrics.ExportsFallback),
		"exports_failed":       atomic.LoadUint64(&globalMetrics.ExportsFailed),
		"emails_sent":          atomic.LoadUint64(&globalMetrics.EmailsSent),
		"emails_failed":        atomic.LoadUint64(&globalMetrics.EmailsFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetMetrics())
}
