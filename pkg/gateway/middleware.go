package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/internal/telemetry"
	metrics "github.com/rouse2617/NimbusStore/pkg/metrics/prometheus"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMiddleware tags every request with an id, emits a span, records
// metrics, and logs the outcome.
func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("x-amz-request-id", requestID)

		ctx, span := telemetry.StartSpan(r.Context(), "s3."+r.Method,
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.EndSpan(span, nil)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

		logger.SubInfo(logger.SubsysGateway, "request",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, rec.status,
			logger.KeyClientIP, r.RemoteAddr,
			logger.KeyDurationMs, logger.Duration(start))
	})
}
