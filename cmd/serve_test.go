package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeServer struct {
	runErr error
	stop   chan struct{}

	mu        sync.Mutex
	shutdowns int
}

func newFakeServer(runErr error) *fakeServer {
	return &fakeServer{runErr: runErr, stop: make(chan struct{})}
}

func (s *fakeServer) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	if s.shutdowns == 1 && s.runErr == nil {
		close(s.stop)
	}
	return nil
}

func (s *fakeServer) Shutdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdowns
}

func TestRunUntilSignalShutsDownWhenRunFails(t *testing.T) {
	srv := newFakeServer(errors.New("listen tcp :8080: bind: address already in use"))

	err := runUntilSignal(srv, make(chan os.Signal), zaptest.NewLogger(t).Sugar())

	assert.ErrorContains(t, err, "address already in use")
	assert.Equal(t, 1, srv.Shutdowns())
}

func TestRunUntilSignalShutsDownOnSignal(t *testing.T) {
	srv := newFakeServer(nil)
	quit := make(chan os.Signal, 1)
	quit <- syscall.SIGTERM

	done := make(chan error, 1)
	go func() { done <- runUntilSignal(srv, quit, zaptest.NewLogger(t).Sugar()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runUntilSignal did not return")
	}
	assert.Equal(t, 1, srv.Shutdowns())
}
