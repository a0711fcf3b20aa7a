// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func testSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHTTPServer struct {
	serveErr     error
	shutdownErr  error
	stopCh       chan struct{}
	shutdownSeen atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{stopCh: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stopCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdownSeen.Add(1)
	close(f.stopCh)
	return f.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if got := server.shutdownSeen.Load(); got != 1 {
		t.Fatalf("Shutdown called %d times, want 1", got)
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	server.serveErr = errors.New("bind: address already in use")
	svc := NewHTTPService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.serveErr) {
		t.Fatalf("Serve() = %v, want wrapped serve error", err)
	}
}

type fakeRouter struct {
	runErr error
}

func (f *fakeRouter) Run(ctx context.Context) error {
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return nil
}

func TestRouterServiceReturnsOnCancel(t *testing.T) {
	t.Parallel()

	svc := NewRouterService(&fakeRouter{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestRouterServicePropagatesRunError(t *testing.T) {
	t.Parallel()

	runErr := errors.New("subscriber closed")
	svc := NewRouterService(&fakeRouter{runErr: runErr})

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, runErr) {
		t.Fatalf("Serve() = %v, want wrapped run error", err)
	}
}

type fakeBroker struct {
	running  atomic.Bool
	shutdown atomic.Int32
}

func (f *fakeBroker) IsRunning() bool { return f.running.Load() }

func (f *fakeBroker) Shutdown(ctx context.Context) error {
	f.shutdown.Add(1)
	f.running.Store(false)
	return nil
}

func TestBrokerServiceShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	broker.running.Store(true)
	svc := NewBrokerService(broker, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if got := broker.shutdown.Load(); got != 1 {
		t.Fatalf("Shutdown called %d times, want 1", got)
	}
}

func TestBrokerServiceDetectsDeadBroker(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{} // never running
	svc := NewBrokerService(broker, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := svc.Serve(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve() = %v, want dead-broker error", err)
	}
}

func TestTreeDefaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", cfg.FailureThreshold)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}

	// Zero-valued config picks up the same defaults.
	tree := NewTree(testSlogLogger(), TreeConfig{})
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
}

func TestTreeServesAndStops(t *testing.T) {
	t.Parallel()

	tree := NewTree(testSlogLogger(), DefaultTreeConfig())

	broker := &fakeBroker{}
	broker.running.Store(true)
	tree.AddBrokerService(NewBrokerService(broker, time.Second))
	tree.AddPipelineService(NewRouterService(&fakeRouter{}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("tree stopped with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}
