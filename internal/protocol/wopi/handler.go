// Package wopi serves the WOPI REST contract.
//
// A request flows through a fixed preamble before reaching the engine:
//
//  1. Classify the path/verb/override; unsupported kinds get 501.
//  2. Load the file; a missing file gets 404.
//  3. Validate the proof signature (when enabled); failures get 500.
//  4. Validate the access token (when enabled); failures get 401.
//  5. Resolve discovery actions and contextual URLs.
//  6. Run the operation from the dispatch table.
//
// Panics and unclassified errors become 500 without internals.
package wopi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/metrics"
	"github.com/marmos91/dittowopi/pkg/proof"
)

// DefaultMaxBodySize bounds PutFile, PutRelativeFile and PutUserInfo bodies.
const DefaultMaxBodySize = 256 << 20

// ProofValidator checks X-WOPI-Proof signatures. *proof.Validator
// implements it.
type ProofValidator interface {
	Validate(ctx context.Context, req proof.Request) error
}

// TokenValidator checks access tokens. *auth.Issuer implements it.
type TokenValidator interface {
	Validate(token, fileID string) (*auth.Claims, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Engine *engine.Engine

	// Proof is optional; nil disables proof validation.
	Proof ProofValidator

	// Tokens is optional. A valid token supplies the caller identity;
	// with RequireToken a missing or invalid token is rejected.
	Tokens       TokenValidator
	RequireToken bool

	// ServerVersion and MachineName are sent on every response.
	// MachineName defaults to the host name.
	ServerVersion string
	MachineName   string

	// MaxBodySize defaults to DefaultMaxBodySize.
	MaxBodySize int64

	// Scheme is the scheme the WOPI client uses to reach the host. It is
	// part of the signed URL. Empty means: https when the request arrived
	// over TLS or X-Forwarded-Proto says so (with TrustForwardedHeaders),
	// otherwise http.
	Scheme string

	// TrustForwardedHeaders honours X-Forwarded-Host and X-Forwarded-Proto.
	TrustForwardedHeaders bool

	// Metrics is optional.
	Metrics metrics.WOPIMetrics
}

// Handler is the WOPI http.Handler.
type Handler struct {
	cfg     HandlerConfig
	engine  *engine.Engine
	metrics metrics.WOPIMetrics
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("wopi: engine is required")
	}
	if cfg.RequireToken && cfg.Tokens == nil {
		return nil, errors.New("wopi: require_token needs a token validator")
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MachineName == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.MachineName = host
		}
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopWOPIMetrics()
	}

	return &Handler{cfg: cfg, engine: cfg.Engine, metrics: m}, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	kind, id := Classify(r.URL.Path, r.Method, r.Header.Get(HeaderOverride), hasHeader(r, HeaderOldLock))
	op := kind.String()

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	if h.cfg.ServerVersion != "" {
		rec.Header().Set(HeaderServerVersion, h.cfg.ServerVersion)
	}
	if h.cfg.MachineName != "" {
		rec.Header().Set(HeaderMachineName, h.cfg.MachineName)
	}

	h.metrics.RecordRequestStart(op)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("WOPI %s panic: file=%s panic=%v\n%s", op, id, p, debug.Stack())
			writeServerError(rec, reasonServerError)
		}
		h.metrics.RecordRequestEnd(op)
		h.metrics.RecordRequest(op, rec.status, time.Since(start))
	}()

	h.serve(rec, r, kind, id)
}

func (h *Handler) serve(w *statusRecorder, r *http.Request, kind Kind, id string) {
	ctx := r.Context()
	op := kind.String()

	info, ok := dispatchTable[kind]
	if !ok {
		logger.Debug("WOPI unsupported request: %s %s override=%q", r.Method, r.URL.Path, r.Header.Get(HeaderOverride))
		writeStatus(w, http.StatusNotImplemented, reasonUnsupported)
		return
	}

	file, err := h.engine.Load(ctx, id)
	if err != nil {
		h.writeError(w, op, id, err)
		return
	}

	req := h.buildRequest(r, id)

	if h.cfg.Proof != nil {
		if err := h.cfg.Proof.Validate(ctx, h.proofRequest(r, req)); err != nil {
			h.metrics.RecordProofFailure()
			logger.Warn("WOPI %s proof rejected: file=%s client=%s error=%v", op, id, r.RemoteAddr, err)
			writeServerError(w, reasonServerError)
			return
		}
	}

	if err := h.authenticate(r, req); err != nil {
		h.metrics.RecordTokenFailure()
		logger.Warn("WOPI %s token rejected: file=%s client=%s error=%v", op, id, r.RemoteAddr, err)
		writeStatus(w, http.StatusUnauthorized, reasonUnauthorized)
		return
	}

	if info.ReadsBody {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeStatus(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			logger.Warn("WOPI %s body read failed: file=%s error=%v", op, id, err)
			writeStatus(w, http.StatusBadRequest, "Request body could not be read")
			return
		}
		req.Body = body
		h.metrics.RecordBytesTransferred("write", int64(len(body)))
	}

	call := h.engine.Prepare(ctx, req, file)

	resp, err := info.Handler(h.engine, ctx, call)
	if err != nil {
		h.writeError(w, op, id, err)
		return
	}

	logger.Debug("WOPI %s ok: file=%s", op, id)
	h.writeResponse(w, op, resp)
}

// buildRequest extracts the header values the engine reads.
func (h *Handler) buildRequest(r *http.Request, id string) *engine.Request {
	req := &engine.Request{
		FileID:          id,
		Authority:       h.authority(r),
		Lock:            r.Header.Get(HeaderLock),
		OldLock:         r.Header.Get(HeaderOldLock),
		RequestedName:   optionalHeader(r, HeaderRequestedName),
		RelativeTarget:  optionalHeader(r, HeaderRelativeTarget),
		SuggestedTarget: optionalHeader(r, HeaderSuggestedTarget),
		MaxExpectedSize: -1,
	}

	if v := strings.TrimSpace(r.Header.Get(HeaderMaxExpectedSize)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			req.MaxExpectedSize = n
		}
	}

	return req
}

func (h *Handler) proofRequest(r *http.Request, req *engine.Request) proof.Request {
	return proof.Request{
		AccessToken: r.URL.Query().Get(AccessTokenParam),
		URL:         fmt.Sprintf("%s://%s%s", h.scheme(r), req.Authority, r.URL.RequestURI()),
		Proof:       r.Header.Get(HeaderProof),
		ProofOld:    r.Header.Get(HeaderProofOld),
		Timestamp:   r.Header.Get(HeaderTimestamp),
	}
}

// authenticate fills the caller identity from the access token.
func (h *Handler) authenticate(r *http.Request, req *engine.Request) error {
	if h.cfg.Tokens == nil {
		return nil
	}

	token := r.URL.Query().Get(AccessTokenParam)
	if token == "" {
		if h.cfg.RequireToken {
			return errors.New("access token missing")
		}
		return nil
	}

	claims, err := h.cfg.Tokens.Validate(token, req.FileID)
	if err != nil {
		if h.cfg.RequireToken {
			return err
		}
		logger.Debug("WOPI ignoring invalid access token for %s: %v", req.FileID, err)
		return nil
	}

	req.UserID = claims.Subject
	req.UserName = claims.UserName
	return nil
}

func (h *Handler) authority(r *http.Request) string {
	if h.cfg.TrustForwardedHeaders {
		if fwd := firstForwarded(r.Header.Get("X-Forwarded-Host")); fwd != "" {
			return fwd
		}
	}
	return r.Host
}

func (h *Handler) scheme(r *http.Request) string {
	if h.cfg.Scheme != "" {
		return h.cfg.Scheme
	}
	if r.TLS != nil {
		return "https"
	}
	if h.cfg.TrustForwardedHeaders {
		if proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto != "" {
			return strings.ToLower(proto)
		}
	}
	return "http"
}

func firstForwarded(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func hasHeader(r *http.Request, key string) bool {
	return len(r.Header.Values(key)) > 0
}

func optionalHeader(r *http.Request, key string) *string {
	if !hasHeader(r, key) {
		return nil
	}
	v := r.Header.Get(key)
	return &v
}
