// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches *http.Server's lifecycle methods so the service
// can be tested with a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server's blocking ListenAndServe to
// suture's context-driven Serve. On context cancellation it attempts a
// graceful shutdown bounded by shutdownTimeout.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server as a supervised service.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The serve context is already cancelled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }

// MessageRouter matches the event router's blocking Run method.
type MessageRouter interface {
	Run(ctx context.Context) error
}

// RouterService supervises the event router. Run already blocks until
// its context is cancelled, so the adaptation is direct.
type RouterService struct {
	router MessageRouter
}

// NewRouterService wraps the event router as a supervised service.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	if err := s.router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

func (s *RouterService) String() string { return "event-router" }

// BrokerServer matches the embedded NATS server's lifecycle. The server
// is already running when the service is constructed; the service holds
// it up and shuts it down when the tree stops.
type BrokerServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// BrokerService supervises the embedded broker.
type BrokerService struct {
	server          BrokerServer
	shutdownTimeout time.Duration
}

// NewBrokerService wraps a running embedded broker as a supervised
// service.
func NewBrokerService(server BrokerServer, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. The broker runs on its own
// goroutines, so Serve only watches liveness and handles shutdown.
func (s *BrokerService) Serve(ctx context.Context) error {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("broker shutdown: %w", err)
			}
			return ctx.Err()
		case <-tick.C:
			if !s.server.IsRunning() {
				return errors.New("embedded broker stopped unexpectedly")
			}
		}
	}
}

func (s *BrokerService) String() string { return "embedded-broker" }
