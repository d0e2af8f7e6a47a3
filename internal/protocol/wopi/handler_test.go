package wopi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/internal/clock"
	"github.com/marmos91/dittowopi/internal/protocol/wopi"
	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/proof"
	"github.com/marmos91/dittowopi/pkg/proof/prooftest"
	"github.com/marmos91/dittowopi/pkg/store/content"
	contentmemory "github.com/marmos91/dittowopi/pkg/store/content/memory"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
	metamemory "github.com/marmos91/dittowopi/pkg/store/metadata/memory"
)

const (
	host   = "wopi.contoso.com"
	docID  = "doc-1"
	docURL = "https://" + host + "/wopi/files/" + docID
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	handler *wopi.Handler
	files   metadata.MetadataStore
	content content.ContentStore
	clock   *clock.Mock
	tokens  *auth.Issuer
	signer  *prooftest.Signer
}

type envOption func(*env, *engine.Config, *wopi.HandlerConfig)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	e := &env{
		files:   metamemory.NewMemoryMetadataStore(),
		content: contentmemory.NewMemoryContentStore(),
		clock:   clock.NewMock(epoch),
		signer:  prooftest.NewSigner(t),
	}

	var err error
	e.tokens, err = auth.NewIssuer(auth.IssuerConfig{Secret: []byte("s3cret"), Clock: e.clock})
	require.NoError(t, err)

	ecfg := engine.Config{Files: e.files, Content: e.content, Tokens: e.tokens, Clock: e.clock}
	hcfg := wopi.HandlerConfig{ServerVersion: "1.2.3", MachineName: "wopi-01"}
	for _, opt := range opts {
		opt(e, &ecfg, &hcfg)
	}

	eng, err := engine.New(ecfg)
	require.NoError(t, err)
	hcfg.Engine = eng

	e.handler, err = wopi.NewHandler(hcfg)
	require.NoError(t, err)

	require.NoError(t, e.files.CreateFile(context.Background(), &metadata.FileRecord{
		ID:           docID,
		Container:    "docs",
		BaseFileName: "Report.docx",
		Version:      1,
		OwnerID:      "owner",
	}))
	return e
}

func withProof() envOption {
	return func(e *env, _ *engine.Config, h *wopi.HandlerConfig) {
		h.Proof = proof.NewValidator(e.signer)
	}
}

func withRequiredToken() envOption {
	return func(e *env, _ *engine.Config, h *wopi.HandlerConfig) {
		h.Tokens = e.tokens
		h.RequireToken = true
	}
}

func (e *env) do(t *testing.T, method, target string, headers map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func override(kind string, extra ...string) map[string]string {
	h := map[string]string{wopi.HeaderOverride: kind}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

// ============================================================================
// Preamble
// ============================================================================

func TestHandler_CommonHeaders(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, docURL, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.2.3", w.Header().Get(wopi.HeaderServerVersion))
	assert.Equal(t, "wopi-01", w.Header().Get(wopi.HeaderMachineName))

	w = e.do(t, http.MethodGet, "https://"+host+"/wopi/folders/x", nil, "")
	assert.Equal(t, "1.2.3", w.Header().Get(wopi.HeaderServerVersion))
}

func TestHandler_Unsupported(t *testing.T) {
	e := newEnv(t)

	for _, tc := range []struct {
		method, target, override string
	}{
		{http.MethodGet, "https://" + host + "/wopi/folders/x", ""},
		{http.MethodPost, docURL, "COBALT"},
		{http.MethodGet, "https://" + host + "/other", ""},
	} {
		w := e.do(t, tc.method, tc.target, override(tc.override), "")
		assert.Equal(t, http.StatusNotImplemented, w.Code, tc.target)
		assert.Equal(t, "Unsupported", w.Body.String())
	}
}

func TestHandler_MissingFile(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "https://"+host+"/wopi/files/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File Unknown/User Unauthorized", w.Body.String())
}

func TestHandler_BasePath(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "https://"+host+"/apps/office/wopi/files/"+docID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Proof(t *testing.T) {
	e := newEnv(t, withProof())
	target := docURL + "?access_token=tok"
	ts := int64(638000000000000000)

	sign := func(key bool) string {
		k := e.signer.Current
		if !key {
			k = e.signer.Old
		}
		return prooftest.Sign(t, k, "tok", target, ts)
	}
	foreign := prooftest.Sign(t, prooftest.NewSigner(t).Current, "tok", target, ts)
	stamp := strconv.FormatInt(ts, 10)

	tests := []struct {
		name     string
		proof    string
		proofOld string
		want     int
	}{
		{"current key", sign(true), "", http.StatusOK},
		{"old key", sign(false), "", http.StatusOK},
		{"secondary proof with current key", foreign, sign(true), http.StatusOK},
		{"foreign", foreign, foreign, http.StatusInternalServerError},
		{"missing", "", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodGet, target, map[string]string{
				wopi.HeaderProof:     tt.proof,
				wopi.HeaderProofOld:  tt.proofOld,
				wopi.HeaderTimestamp: stamp,
			}, "")
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "Server Error", w.Body.String())
				assert.Equal(t, "Server Error", w.Header().Get(wopi.HeaderServerError))
			}
		})
	}
}

func TestHandler_ProofCheckedAfterLoad(t *testing.T) {
	e := newEnv(t, withProof())

	w := e.do(t, http.MethodGet, "https://"+host+"/wopi/files/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RequiredToken(t *testing.T) {
	e := newEnv(t, withRequiredToken())

	w := e.do(t, http.MethodGet, docURL, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, _, err := e.tokens.Issue(auth.Grant{UserID: "bob", FileID: "doc-2"})
	require.NoError(t, err)
	w = e.do(t, http.MethodGet, docURL+"?access_token="+other, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := e.tokens.Issue(auth.Grant{UserID: "alice", UserName: "Alice", FileID: docID})
	require.NoError(t, err)
	w = e.do(t, http.MethodGet, docURL+"?access_token="+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "alice", info["UserId"])
	assert.Equal(t, "Alice", info["UserFriendlyName"])
}

// ============================================================================
// Operations
// ============================================================================

func TestHandler_CheckFileInfo(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, docURL, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get(wopi.HeaderItemVersion))

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "Report.docx", info["BaseFileName"])
	assert.Equal(t, "https://"+host, info["CloseUrl"])
	assert.Equal(t, true, info["SupportsLocks"])
}

func TestHandler_LockFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, docURL, override("LOCK", wopi.HeaderLock, "A"), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, docURL, override("GET_LOCK"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", w.Header().Get(wopi.HeaderLock))

	w = e.do(t, http.MethodPost, docURL, override("LOCK", wopi.HeaderLock, "B"), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "A", w.Header().Get(wopi.HeaderLock))
	assert.Equal(t, "File already locked by A", w.Header().Get(wopi.HeaderLockFailureReason))

	w = e.do(t, http.MethodPost, docURL, override("LOCK", wopi.HeaderLock, "B", wopi.HeaderOldLock, "A"), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, docURL, override("UNLOCK", wopi.HeaderLock, "A"), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "B", w.Header().Get(wopi.HeaderLock))
	assert.Equal(t, "Lock mismatch", w.Header().Get(wopi.HeaderLockFailureReason))

	w = e.do(t, http.MethodPost, docURL, override("UNLOCK", wopi.HeaderLock, "B"), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, docURL, override("REFRESH_LOCK", wopi.HeaderLock, "B"), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{""}, w.Header().Values(wopi.HeaderLock), "409 always carries X-WOPI-Lock")
	assert.Equal(t, "File isn't locked", w.Header().Get(wopi.HeaderLockFailureReason))

	w = e.do(t, http.MethodPost, docURL, override("GET_LOCK"), "")
	assert.Equal(t, []string{""}, w.Header().Values(wopi.HeaderLock))
}

func TestHandler_PutAndGetFile(t *testing.T) {
	e := newEnv(t)
	contents := docURL + "/contents"

	// The document starts empty, so the first write needs no lock.
	w := e.do(t, http.MethodPost, contents, nil, "body")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(wopi.HeaderItemVersion))

	w = e.do(t, http.MethodPost, contents, map[string]string{wopi.HeaderLock: "A"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "File isn't locked", w.Header().Get(wopi.HeaderLockFailureReason))

	w = e.do(t, http.MethodPost, docURL, override("LOCK", wopi.HeaderLock, "A"), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, contents, map[string]string{wopi.HeaderLock: "A"}, "new body")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get(wopi.HeaderItemVersion))

	w = e.do(t, http.MethodGet, contents, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new body", w.Body.String())
	assert.Equal(t, "3", w.Header().Get(wopi.HeaderItemVersion))

	w = e.do(t, http.MethodGet, contents, map[string]string{wopi.HeaderMaxExpectedSize: "3"}, "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestHandler_BodyTooLarge(t *testing.T) {
	e := newEnv(t, func(_ *env, _ *engine.Config, h *wopi.HandlerConfig) { h.MaxBodySize = 4 })

	w := e.do(t, http.MethodPost, docURL, override("PUT_USER_INFO"), "too large")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandler_PutRelativeFile(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, docURL, override("PUT_RELATIVE", wopi.HeaderSuggestedTarget, ".xlsx"), "sheet")
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Name string `json:"Name"`
		URL  string `json:"Url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Report.xlsx", out.Name)
	assert.True(t, strings.HasPrefix(out.URL, "https://"+host+"/wopi/files/"))

	w = e.do(t, http.MethodPost, docURL, override("PUT_RELATIVE",
		wopi.HeaderSuggestedTarget, ".xlsx", wopi.HeaderRelativeTarget, "a.xlsx"), "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "Both RELATIVE_TARGET and SUGGESTED_TARGET were present", w.Body.String())
	assert.Equal(t, "Both RELATIVE_TARGET and SUGGESTED_TARGET were present", w.Header().Get(wopi.HeaderServerError))

	w = e.do(t, http.MethodPost, docURL, override("PUT_RELATIVE"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PutRelativeFile mode was not provided in the request", w.Body.String())
}

func TestHandler_RenameFile(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, docURL, override("RENAME_FILE"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, docURL, override("RENAME_FILE", wopi.HeaderRequestedName, "Minutes", wopi.HeaderLock, "A"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Name":"Minutes"}`, w.Body.String())

	f, err := e.files.GetFile(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "Minutes.docx", f.BaseFileName)
}

func TestHandler_PutUserInfo(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, docURL, override("PUT_USER_INFO"), "info-blob")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, docURL, nil, "")
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "info-blob", info["UserInfo"])
}

// ============================================================================
// Failure Containment
// ============================================================================

type panickingContent struct {
	content.ContentStore
}

func (panickingContent) ReadContent(ctx context.Context, id content.ContentID) (io.ReadCloser, error) {
	panic("backend exploded")
}

func TestHandler_RecoversPanics(t *testing.T) {
	e := newEnv(t, func(e *env, cfg *engine.Config, _ *wopi.HandlerConfig) {
		cfg.Content = panickingContent{ContentStore: e.content}
	})

	w := e.do(t, http.MethodGet, docURL+"/contents", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server Error", w.Body.String())
	assert.NotContains(t, w.Body.String(), "exploded")
}

type failingFiles struct {
	metadata.MetadataStore
}

func (failingFiles) UpdateFile(ctx context.Context, f *metadata.FileRecord) error {
	return &metadata.StoreError{Code: metadata.ErrIOError, Message: "disk on fire", ID: f.ID}
}

func TestHandler_BackendFailureIsTransient(t *testing.T) {
	e := newEnv(t, func(e *env, cfg *engine.Config, _ *wopi.HandlerConfig) {
		cfg.Files = failingFiles{MetadataStore: e.files}
	})

	w := e.do(t, http.MethodPost, docURL, override("LOCK", wopi.HeaderLock, "A"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Transient backend failure", w.Header().Get(wopi.HeaderServerError))
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := wopi.NewHandler(wopi.HandlerConfig{})
	assert.Error(t, err)
}
