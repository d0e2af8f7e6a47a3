package wopi

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/ratelimiter"
)

// requestLogger logs one line per request at DEBUG, and 5xx responses at WARN.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqID := middleware.GetReqID(r.Context())
		elapsed := time.Since(start)

		if status >= http.StatusInternalServerError {
			logger.Warn("HTTP %s %s status=%d bytes=%d client=%s req=%s took=%v",
				r.Method, r.URL.Path, status, ww.BytesWritten(), r.RemoteAddr, reqID, elapsed)
			return
		}
		logger.Debug("HTTP %s %s status=%d bytes=%d client=%s req=%s took=%v",
			r.Method, r.URL.Path, status, ww.BytesWritten(), r.RemoteAddr, reqID, elapsed)
	})
}

// rateLimit rejects callers that exceed their per-address budget with 429.
func rateLimit(limiter *ratelimiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientAddress(r)
			if !limiter.Allow(client) {
				logger.Debug("Rate limit exceeded: client=%s path=%s", client, r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(1))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddress is the host part of RemoteAddr. When middleware.RealIP is
// installed RemoteAddr already holds the forwarded address.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
