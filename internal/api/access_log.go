package api

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/rulegate/internal/client"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
)

// accessLogWriter wraps http.ResponseWriter to capture the status code
type accessLogWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *accessLogWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *accessLogWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack keeps websocket upgrades working behind the logger.
func (rw *accessLogWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// AccessLog returns middleware that logs every request at debug level and
// records it in reg, labelled by its mux route template.
func AccessLog(logger *logging.Logger, reg *metrics.Registry, proxies Proxies) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &accessLogWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			route := RouteTemplate(r)
			reg.RecordAPIRequest(r.Method, route, rw.status, duration)
			logger.Debug("access",
				"method", r.Method,
				"route", route,
				"ip", proxies.ClientIP(r),
				"status", rw.status,
				"size", rw.size,
				"duration", duration.Round(time.Microsecond),
				"request_id", r.Header.Get(client.RequestIDHeader))
		})
	}
}

// RouteTemplate returns the matched mux route template, or the raw path
// when no route matched.
func RouteTemplate(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
