package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/vango-go/vai-bridge/pkg/bridge/config"
	bridgeserver "github.com/vango-go/vai-bridge/pkg/bridge/server"
	"github.com/vango-go/vai-bridge/pkg/bridge/store"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, bridgeDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		openStore: func(context.Context, config.Config, *slog.Logger) (store.Store, func(), error) {
			t.Fatal("openStore should not be called when config load fails")
			return nil, nil, nil
		},
		newServer:    bridgeserver.New,
		signalNotify: func(chan<- os.Signal, ...os.Signal) {},
		signalStop:   func(chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if stderr.String() == "" {
		t.Fatal("expected stderr output for startup error")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestOpenStore_DefaultsToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	st, closeStore, err := openStore(context.Background(), config.Config{}, logger)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeStore()

	if _, ok := st.(*store.Memory); !ok {
		t.Fatalf("store = %T, want *store.Memory", st)
	}
}

func TestRunBridge_GracefulShutdownOnSignal(t *testing.T) {
	var sigCh chan<- os.Signal
	notified := make(chan struct{})

	deps := bridgeDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{
				Addr:                "127.0.0.1:0",
				OpenAIAPIKey:        "sk-test",
				MaxSessions:         2,
				ConnectTimeout:      time.Second,
				GreetingDelay:       time.Second,
				ReadHeaderTimeout:   time.Second,
				ShutdownGracePeriod: time.Second,
			}, nil
		},
		openStore: func(context.Context, config.Config, *slog.Logger) (store.Store, func(), error) {
			return store.NewMemory(), func() {}, nil
		},
		newServer: bridgeserver.New,
		signalNotify: func(c chan<- os.Signal, _ ...os.Signal) {
			sigCh = c
			close(notified)
		},
		signalStop: func(chan<- os.Signal) {},
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	done := make(chan error, 1)
	go func() { done <- runBridge(context.Background(), logger, deps) }()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("signal channel never registered")
	}
	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runBridge returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runBridge did not stop after SIGTERM")
	}
}
