package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestServeUntilSignal_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serveUntilSignal(ctx, srv, time.Second, zap.NewNop()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeUntilSignal_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1"}
	if err := serveUntilSignal(context.Background(), srv, time.Second, zap.NewNop()); err == nil {
		t.Fatal("expected listen error")
	}
}
