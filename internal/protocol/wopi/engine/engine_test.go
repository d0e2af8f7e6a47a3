package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/internal/clock"
	"github.com/marmos91/dittowopi/internal/protocol/wopi/engine"
	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/discovery"
	contentmemory "github.com/marmos91/dittowopi/pkg/store/content/memory"
	"github.com/marmos91/dittowopi/pkg/store/metadata"
	metamemory "github.com/marmos91/dittowopi/pkg/store/metadata/memory"
)

const (
	authority = "wopi.contoso.com"
	fileID    = "4c1f6a0e-0000-4000-8000-000000000001"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	engine  *engine.Engine
	files   metadata.MetadataStore
	content *contentmemory.MemoryContentStore
	clock   *clock.Mock
	tokens  *auth.Issuer
	metrics *countingMetrics
}

func newFixture(t *testing.T, configure ...func(*engine.Config)) *fixture {
	t.Helper()

	fx := &fixture{
		files:   metamemory.NewMemoryMetadataStore(),
		content: contentmemory.NewMemoryContentStore(),
		clock:   clock.NewMock(epoch),
		metrics: &countingMetrics{},
	}

	var err error
	fx.tokens, err = auth.NewIssuer(auth.IssuerConfig{Secret: []byte("test-secret"), Clock: fx.clock})
	require.NoError(t, err)

	cfg := engine.Config{
		Files:         fx.files,
		Content:       fx.content,
		Tokens:        fx.tokens,
		Actions:       fakeResolver{actions: testActions},
		Clock:         fx.clock,
		RetryInterval: time.Millisecond,
		Metrics:       fx.metrics,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	fx.engine, err = engine.New(cfg)
	require.NoError(t, err)
	return fx
}

func (fx *fixture) seed(t *testing.T, mutate ...func(*metadata.FileRecord)) *metadata.FileRecord {
	t.Helper()
	f := &metadata.FileRecord{
		ID:           fileID,
		Container:    "docs",
		BaseFileName: "Report.docx",
		Size:         0,
		Version:      1,
		OwnerID:      "owner@contoso.com",
	}
	for _, fn := range mutate {
		fn(f)
	}
	require.NoError(t, fx.files.CreateFile(context.Background(), f))
	return f
}

func (fx *fixture) call(t *testing.T, req engine.Request) *engine.Call {
	t.Helper()
	if req.FileID == "" {
		req.FileID = fileID
	}
	if req.Authority == "" {
		req.Authority = authority
	}
	if req.MaxExpectedSize == 0 {
		req.MaxExpectedSize = -1
	}

	file, err := fx.engine.Load(context.Background(), req.FileID)
	require.NoError(t, err)
	return fx.engine.Prepare(context.Background(), &req, file)
}

func (fx *fixture) stored(t *testing.T) *metadata.FileRecord {
	t.Helper()
	f, err := fx.files.GetFile(context.Background(), fileID)
	require.NoError(t, err)
	return f
}

func locked(value string, expires time.Time) func(*metadata.FileRecord) {
	return func(f *metadata.FileRecord) { f.SetLock(value, expires) }
}

func ptr(s string) *string { return &s }

// ============================================================================
// Fakes
// ============================================================================

// testActions are already in resolver order: defaults last.
var testActions = []discovery.Action{
	{App: "Word", Name: "view", Ext: "docx", URLSrc: "https://office.example/wv/wordviewerframe.aspx?<ui=UI_LLCC&><wopisrc=WOPI_SOURCE&>"},
	{App: "Word", Name: "embedview", Ext: "docx", URLSrc: "https://office.example/wv/wordviewerframe.aspx?embed=1&<wopisrc=WOPI_SOURCE&>"},
	{App: "Word", Name: "edit", Ext: "docx", URLSrc: "https://office.example/we/wordeditorframe.aspx?<ui=UI_LLCC&><wopisrc=WOPI_SOURCE&>", IsDefault: true},
	{App: "Excel", Name: "view", Ext: "xlsx", URLSrc: "https://office.example/x/_layouts/xlviewerinternal.aspx?<wopisrc=WOPI_SOURCE&>"},
}

type fakeResolver struct {
	actions []discovery.Action
	err     error
}

func (r fakeResolver) Actions(ctx context.Context, fileName string) ([]discovery.Action, error) {
	if r.err != nil {
		return nil, r.err
	}
	ext := metadata.Extension(fileName)
	var out []discovery.Action
	for _, a := range r.actions {
		if a.Ext == ext {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeResolver) ActionURL(action discovery.Action, id, host string) string {
	return discovery.ActionURL(action, discovery.URLParams{FileID: id, Authority: host})
}

type countingMetrics struct {
	lockConflicts     atomic.Int32
	revisionConflicts atomic.Int32
	exhausted         atomic.Int32
}

func (m *countingMetrics) RecordLockConflict(op string) { m.lockConflicts.Add(1) }

func (m *countingMetrics) RecordRevisionConflict(op string, exhausted bool) {
	m.revisionConflicts.Add(1)
	if exhausted {
		m.exhausted.Add(1)
	}
}

// racingStore makes the next `losses` UpdateFile calls lose a revision race
// by bumping the stored record first.
type racingStore struct {
	metadata.MetadataStore
	losses  atomic.Int32
	updates atomic.Int32
}

func (s *racingStore) UpdateFile(ctx context.Context, f *metadata.FileRecord) error {
	s.updates.Add(1)
	if s.losses.Add(-1) >= 0 {
		other, err := s.MetadataStore.GetFile(ctx, f.ID)
		if err != nil {
			return err
		}
		other.UserInfo = "concurrent writer"
		if err := s.MetadataStore.UpdateFile(ctx, other); err != nil {
			return err
		}
	}
	return s.MetadataStore.UpdateFile(ctx, f)
}

// ============================================================================
// Construction and Preparation
// ============================================================================

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := engine.New(engine.Config{})
	assert.Error(t, err)

	_, err = engine.New(engine.Config{Files: metamemory.NewMemoryMetadataStore()})
	assert.Error(t, err)

	_, err = engine.New(engine.Config{
		Files:   metamemory.NewMemoryMetadataStore(),
		Content: contentmemory.NewMemoryContentStore(),
	})
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.engine.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestPrepare_ResolvesActionsAndURLs(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)

	c := fx.call(t, engine.Request{})

	assert.Equal(t, "https://"+authority, c.CloseURL)
	require.Len(t, c.Actions, 3)
	assert.True(t, c.Actions[2].IsDefault, "default actions come last")
	assert.Equal(t,
		"https://office.example/wv/wordviewerframe.aspx?ui=en-US&wopisrc=https://wopi.contoso.com/wopi/files/"+fileID,
		c.HostViewURL)
	assert.Contains(t, c.HostEditURL, "wordeditorframe.aspx")
	assert.Contains(t, c.EmbedURL, "embed=1&wopisrc=")
}

func TestPrepare_HostTemplatesOverrideActionURLs(t *testing.T) {
	fx := newFixture(t, func(cfg *engine.Config) {
		cfg.HostViewURLTemplate = "https://portal.contoso.com/docs/{id}?action=view"
		cfg.HostEditURLTemplate = "https://portal.contoso.com/docs/{id}?action=edit"
	})
	fx.seed(t)

	c := fx.call(t, engine.Request{})
	assert.Equal(t, "https://portal.contoso.com/docs/"+fileID+"?action=view", c.HostViewURL)
	assert.Equal(t, "https://portal.contoso.com/docs/"+fileID+"?action=edit", c.HostEditURL)
}

func TestPrepare_DiscoveryFailureLeavesNoActions(t *testing.T) {
	fx := newFixture(t, func(cfg *engine.Config) {
		cfg.Actions = fakeResolver{err: assert.AnError}
	})
	fx.seed(t)

	c := fx.call(t, engine.Request{})
	assert.Empty(t, c.Actions)
	assert.Empty(t, c.HostViewURL)
	assert.Equal(t, "https://"+authority, c.CloseURL)
}

// ============================================================================
// Optimistic Concurrency
// ============================================================================

func TestMutate_RetriesOneLostRace(t *testing.T) {
	fx := newFixture(t)
	racing := &racingStore{MetadataStore: fx.files}
	racing.losses.Store(1)
	fx.engine, _ = engine.New(engine.Config{
		Files: racing, Content: fx.content, Tokens: fx.tokens, Clock: fx.clock,
		RetryInterval: time.Millisecond, Metrics: fx.metrics,
	})
	fx.seed(t)

	c := fx.call(t, engine.Request{Lock: "L1"})
	_, err := fx.engine.Lock(context.Background(), c)
	require.NoError(t, err)

	stored := fx.stored(t)
	assert.Equal(t, "L1", stored.LockValue)
	assert.Equal(t, "concurrent writer", stored.UserInfo, "retry re-read the record")
	assert.Equal(t, int32(2), racing.updates.Load())
	assert.Equal(t, int32(1), fx.metrics.revisionConflicts.Load())
	assert.Zero(t, fx.metrics.exhausted.Load())
}

func TestMutate_SecondLostRaceIsTransient(t *testing.T) {
	fx := newFixture(t)
	racing := &racingStore{MetadataStore: fx.files}
	racing.losses.Store(2)
	fx.engine, _ = engine.New(engine.Config{
		Files: racing, Content: fx.content, Tokens: fx.tokens, Clock: fx.clock,
		RetryInterval: time.Millisecond, Metrics: fx.metrics,
	})
	fx.seed(t)

	c := fx.call(t, engine.Request{Lock: "L1"})
	_, err := fx.engine.Lock(context.Background(), c)
	assert.ErrorIs(t, err, engine.ErrTransient)
	assert.Equal(t, int32(2), racing.updates.Load())
	assert.Equal(t, int32(1), fx.metrics.exhausted.Load())
	assert.Empty(t, fx.stored(t).LockValue)
}

func TestMutate_FileVanishedDuringRetry(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	c := fx.call(t, engine.Request{Lock: "L1"})

	// A stale revision on a store that no longer has the record.
	empty := metamemory.NewMemoryMetadataStore()
	fx.engine, _ = engine.New(engine.Config{
		Files: empty, Content: fx.content, Tokens: fx.tokens, Clock: fx.clock,
	})

	_, err := fx.engine.Lock(context.Background(), c)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}
