package wopi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
)

const (
	reasonUnsupported  = "Unsupported"
	reasonNotFound     = "File Unknown/User Unauthorized"
	reasonServerError  = "Server Error"
	reasonTransient    = "Transient backend failure"
	reasonUnauthorized = "Invalid access token"
)

// statusRecorder remembers the status written for metrics and so a
// recovered panic does not write headers twice.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(p)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// writeStatus writes status with reason as a plain-text body.
func writeStatus(w http.ResponseWriter, status int, reason string) {
	if rec, ok := w.(*statusRecorder); ok && rec.wroteHeader {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reason)
}

func writeServerError(w http.ResponseWriter, reason string) {
	w.Header().Set(HeaderServerError, reason)
	writeStatus(w, http.StatusInternalServerError, reason)
}

// writeError maps engine errors onto WOPI statuses and headers.
func (h *Handler) writeError(w http.ResponseWriter, op, id string, err error) {
	var (
		conflict *engine.ConflictError
		reqErr   *engine.RequestError
	)

	switch {
	case errors.As(err, &conflict):
		logger.Info("WOPI %s conflict: file=%s lock=%q reason=%q", op, id, conflict.Lock, conflict.Reason)
		w.Header().Set(HeaderLock, conflict.Lock)
		w.Header().Set(HeaderLockFailureReason, conflict.Reason)
		writeStatus(w, http.StatusConflict, conflict.Reason)

	case errors.As(err, &reqErr):
		logger.Info("WOPI %s rejected: file=%s status=%d reason=%q", op, id, reqErr.Status, reqErr.Reason)
		if reqErr.Status >= http.StatusInternalServerError {
			w.Header().Set(HeaderServerError, reqErr.Reason)
		}
		writeStatus(w, reqErr.Status, reqErr.Reason)

	case errors.Is(err, engine.ErrNotFound):
		logger.Debug("WOPI %s not found: file=%s error=%v", op, id, err)
		writeStatus(w, http.StatusNotFound, reasonNotFound)

	case errors.Is(err, engine.ErrTransient):
		logger.Warn("WOPI %s transient failure: file=%s error=%v", op, id, err)
		writeServerError(w, reasonTransient)

	case errors.Is(err, context.Canceled):
		logger.Debug("WOPI %s cancelled: file=%s", op, id)
		writeServerError(w, reasonServerError)

	default:
		logger.Error("WOPI %s failed: file=%s error=%v", op, id, err)
		writeServerError(w, reasonServerError)
	}
}

// writeResponse writes a successful engine response.
func (h *Handler) writeResponse(w http.ResponseWriter, op string, resp *engine.Response) {
	if resp.Lock != nil {
		w.Header().Set(HeaderLock, *resp.Lock)
	}
	if resp.ItemVersion != "" {
		w.Header().Set(HeaderItemVersion, resp.ItemVersion)
	}

	switch {
	case resp.Content != nil:
		defer resp.Content.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		n, err := io.Copy(w, resp.Content)
		h.metrics.RecordBytesTransferred("read", n)
		if err != nil {
			logger.Warn("WOPI %s streaming failed after %d bytes: %v", op, n, err)
		}

	case resp.JSON != nil:
		data, err := json.Marshal(resp.JSON)
		if err != nil {
			logger.Error("WOPI %s encode response: %v", op, err)
			writeServerError(w, reasonServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	default:
		w.WriteHeader(http.StatusOK)
	}
}
