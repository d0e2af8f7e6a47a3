package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context is cancelled, Stop is
// called, or fail is closed.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	mu      sync.Mutex
	stopped bool
	order   *[]string

	stop chan struct{}
	once sync.Once
}

func newFake(protocol string, port int, order *[]string) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, port: port, order: order, stop: make(chan struct{})}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.stop:
		return nil
	}
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.protocol)
	}
	f.mu.Unlock()
	f.once.Do(func() { close(f.stop) })
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func (f *fakeAdapter) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestAddAdapter_Conflicts(t *testing.T) {
	s := New()

	require.NoError(t, s.AddAdapter(newFake("WOPI", 8080, nil)))
	assert.Error(t, s.AddAdapter(newFake("WOPI", 8081, nil)), "duplicate protocol")
	assert.Error(t, s.AddAdapter(newFake("Metrics", 8080, nil)), "duplicate port")
	assert.Error(t, s.AddAdapter(nil))
	require.NoError(t, s.AddAdapter(newFake("Metrics", 9090, nil)))

	assert.Len(t, s.Adapters(), 2)
}

func TestServe_NoAdapters(t *testing.T) {
	assert.Error(t, New().Serve(context.Background()))
}

func TestServe_CancelStopsAllInReverseOrder(t *testing.T) {
	var order []string
	s := New(WithStopTimeout(time.Second))
	wopi := newFake("WOPI", 8080, &order)
	metrics := newFake("Metrics", 9090, &order)
	require.NoError(t, s.AddAdapter(wopi))
	require.NoError(t, s.AddAdapter(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, []string{"Metrics", "WOPI"}, order)
	assert.Error(t, s.Serve(context.Background()), "second Serve is rejected")
	assert.Error(t, s.AddAdapter(newFake("Other", 1, nil)), "no adapters after Serve")
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	s := New(WithStopTimeout(time.Second))
	healthy := newFake("Metrics", 9090, nil)
	broken := newFake("WOPI", 8080, nil)
	broken.failWith = errors.New("address already in use")
	require.NoError(t, s.AddAdapter(healthy))
	require.NoError(t, s.AddAdapter(broken))

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WOPI adapter error")
	assert.Contains(t, err.Error(), "address already in use")
	assert.True(t, healthy.wasStopped())
}

func TestServe_AdapterReturningEarlyIsFatal(t *testing.T) {
	s := New(WithStopTimeout(time.Second))
	quitter := newFake("WOPI", 8080, nil)
	require.NoError(t, s.AddAdapter(quitter))

	close(quitter.stop)
	quitter.once.Do(func() {})

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped unexpectedly")
}
