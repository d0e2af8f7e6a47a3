// Package engine executes WOPI operations against a file record.
//
// The engine owns the lock state machine:
//
//	Unlocked --Lock(t)--> Locked(t, now+30m)
//	Locked(t) --Lock(t) / RefreshLock(t)--> Locked(t, now+30m)
//	Locked(o) --UnlockAndRelock(n, o)--> Locked(n, now+30m)
//	Locked(t) --Unlock(t)--> Unlocked
//	Locked(_, e) --now > e--> Unlocked (lazily, on the next write)
//
// Every mutation is a read-decide-write cycle against the metadata store's
// revision-checked UpdateFile. A lost race re-reads the record and decides
// again; once retries are exhausted the operation fails with ErrTransient.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/marmos91/dittowopi/internal/clock"
	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/discovery"
	"github.com/marmos91/dittowopi/pkg/store/content"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

const (
	// DefaultLockDuration is how long a lock lives without a refresh.
	DefaultLockDuration = 30 * time.Minute

	// DefaultConflictRetries is how many times a lost revision race is
	// retried before the request fails.
	DefaultConflictRetries = 1

	defaultRetryInterval = 10 * time.Millisecond
)

// ActionResolver resolves discovery actions and their URLs.
// *discovery.Service implements it.
type ActionResolver interface {
	Actions(ctx context.Context, fileName string) ([]discovery.Action, error)
	ActionURL(action discovery.Action, fileID, authority string) string
}

// TokenIssuer mints access tokens for files created by PutRelativeFile.
// *auth.Issuer implements it.
type TokenIssuer interface {
	Issue(grant auth.Grant) (string, time.Time, error)
}

// Config configures an Engine.
type Config struct {
	Files   metadata.MetadataStore
	Content content.ContentStore
	Tokens  TokenIssuer

	// Actions is optional; without it files have no actions or host URLs.
	Actions ActionResolver

	// Clock is optional.
	Clock clock.Clock

	// LockDuration defaults to DefaultLockDuration.
	LockDuration time.Duration

	// ConflictRetries defaults to DefaultConflictRetries. Negative disables
	// retries.
	ConflictRetries int

	// RetryInterval is the initial wait before a retry.
	RetryInterval time.Duration

	// HostViewURLTemplate and HostEditURLTemplate, when set, replace the
	// discovery action URLs in HostViewUrl/HostEditUrl. "{id}" is replaced
	// with the file id.
	HostViewURLTemplate string
	HostEditURLTemplate string

	BreadcrumbBrandName    string
	BreadcrumbBrandURL     string
	AllowErrorReportPrompt bool

	// DefaultUserID and DefaultUserName are reported when the request
	// carries no identity.
	DefaultUserID   string
	DefaultUserName string

	// Metrics is optional.
	Metrics Metrics
}

// Engine runs WOPI operations.
type Engine struct {
	cfg     Config
	files   metadata.MetadataStore
	content content.ContentStore
	tokens  TokenIssuer
	actions ActionResolver
	clock   clock.Clock
	metrics Metrics

	lockDuration  time.Duration
	retries       int
	retryInterval time.Duration
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Files == nil {
		return nil, errors.New("engine: metadata store is required")
	}
	if cfg.Content == nil {
		return nil, errors.New("engine: content store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("engine: token issuer is required")
	}

	e := &Engine{
		cfg:           cfg,
		files:         cfg.Files,
		content:       cfg.Content,
		tokens:        cfg.Tokens,
		actions:       cfg.Actions,
		clock:         cfg.Clock,
		metrics:       cfg.Metrics,
		lockDuration:  cfg.LockDuration,
		retries:       cfg.ConflictRetries,
		retryInterval: cfg.RetryInterval,
	}

	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.lockDuration <= 0 {
		e.lockDuration = DefaultLockDuration
	}
	switch {
	case e.retries == 0:
		e.retries = DefaultConflictRetries
	case e.retries < 0:
		e.retries = 0
	}
	if e.retryInterval <= 0 {
		e.retryInterval = defaultRetryInterval
	}

	return e, nil
}

// Load fetches the file a request targets.
func (e *Engine) Load(ctx context.Context, id string) (*metadata.FileRecord, error) {
	file, err := e.files.GetFile(ctx, id)
	if err != nil {
		return nil, e.storeError(err)
	}
	return file, nil
}

// Prepare binds req to file and resolves its actions and contextual URLs.
// A discovery failure is logged and leaves the call without actions.
func (e *Engine) Prepare(ctx context.Context, req *Request, file *metadata.FileRecord) *Call {
	c := &Call{
		Request:  req,
		File:     file,
		CloseURL: "https://" + req.Authority,
	}

	c.Actions = e.resolveActions(ctx, file.BaseFileName)

	if view, ok := discovery.Find(c.Actions, "view"); ok {
		c.HostViewURL = e.hostURL(e.cfg.HostViewURLTemplate, view, file.ID, req.Authority)
	}
	if edit, ok := discovery.Find(c.Actions, "edit"); ok {
		c.HostEditURL = e.hostURL(e.cfg.HostEditURLTemplate, edit, file.ID, req.Authority)
	}
	if embed, ok := discovery.Find(c.Actions, "embedview"); ok {
		c.EmbedURL = e.actions.ActionURL(embed, file.ID, req.Authority)
	}

	return c
}

func (e *Engine) resolveActions(ctx context.Context, fileName string) []discovery.Action {
	if e.actions == nil {
		return nil
	}
	actions, err := e.actions.Actions(ctx, fileName)
	if err != nil {
		logger.Warn("Actions unavailable for %q: %v", fileName, err)
		return nil
	}
	return actions
}

func (e *Engine) hostURL(template string, action discovery.Action, fileID, authority string) string {
	if template != "" {
		return strings.ReplaceAll(template, "{id}", url.PathEscape(fileID))
	}
	return e.actions.ActionURL(action, fileID, authority)
}

func (e *Engine) userID(c *Call) string {
	if c.UserID != "" {
		return c.UserID
	}
	return e.cfg.DefaultUserID
}

func (e *Engine) userName(c *Call) string {
	if c.UserName != "" {
		return c.UserName
	}
	return e.cfg.DefaultUserName
}

// ============================================================================
// Read-Decide-Write
// ============================================================================

// mutation decides what to do with f at now. It edits f in place and returns
// write=true to persist it. err is the operation's outcome and is returned
// after the write, so a mutation may persist a change and still fail (an
// expired lock is cleared, then reported as a conflict).
type mutation func(f *metadata.FileRecord, now time.Time) (write bool, err error)

// mutate runs m against a private copy of file and persists the result with
// a conditional update. On a revision conflict the record is re-read and m
// runs again.
func (e *Engine) mutate(ctx context.Context, op string, file *metadata.FileRecord, m mutation) (*metadata.FileRecord, error) {
	current := file.Clone()
	reload := false
	var outcome error

	attempt := func() error {
		if reload {
			fresh, err := e.files.GetFile(ctx, current.ID)
			if err != nil {
				return backoff.Permanent(e.storeError(err))
			}
			current = fresh
		}
		reload = true

		write, err := m(current, e.clock.Now())
		outcome = err
		if !write {
			return nil
		}

		if err := e.files.UpdateFile(ctx, current); err != nil {
			if metadata.IsConflictError(err) {
				return err
			}
			return backoff.Permanent(e.storeError(err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.metrics.RecordRevisionConflict(op, false)
		logger.Debug("%s: revision conflict on %s, retrying in %v", op, current.ID, wait)
	}

	if err := backoff.RetryNotify(attempt, e.retryPolicy(ctx), notify); err != nil {
		if metadata.IsConflictError(err) {
			e.metrics.RecordRevisionConflict(op, true)
			logger.Warn("%s: giving up on %s after %d revision conflicts", op, current.ID, e.retries+1)
			return nil, fmt.Errorf("%w: %s on %s kept losing revision races", ErrTransient, op, current.ID)
		}
		return nil, err
	}

	if outcome != nil {
		var conflict *ConflictError
		if errors.As(outcome, &conflict) {
			e.metrics.RecordLockConflict(op)
		}
		return current, outcome
	}
	return current, nil
}

func (e *Engine) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.retries)), ctx)
}

// storeError maps store failures onto the engine's error taxonomy.
func (e *Engine) storeError(err error) error {
	switch {
	case metadata.IsNotFoundError(err), errors.Is(err, content.ErrContentNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
}

func contentID(f *metadata.FileRecord) content.ContentID {
	return content.NewContentID(f.Container, f.ID)
}
