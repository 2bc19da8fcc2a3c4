package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// MetricsMiddleware records request count and latency under endpoint and
// logs each request at debug level.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	log := logger.Get().Named("http")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		status := rec.status()
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(status), float64(elapsed.Microseconds())/1000)
		log.Debug(r.Context(), "request served",
			logger.String("endpoint", endpoint),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Int("bytes", rec.bytes),
			logger.Duration("elapsed", elapsed),
		)
	}
}

// statusRecorder remembers the first status written and the body size.
type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.code == 0 {
		rw.code = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.code == 0 {
		rw.code = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *statusRecorder) status() int {
	if rw.code == 0 {
		return http.StatusOK
	}
	return rw.code
}
