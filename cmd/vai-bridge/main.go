package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vango-go/vai-bridge/internal/dotenv"
	"github.com/vango-go/vai-bridge/pkg/bridge/billing"
	"github.com/vango-go/vai-bridge/pkg/bridge/config"
	bridgeserver "github.com/vango-go/vai-bridge/pkg/bridge/server"
	"github.com/vango-go/vai-bridge/pkg/bridge/store"
	"github.com/vango-go/vai-bridge/pkg/bridge/summary"
	"github.com/vango-go/vai-bridge/pkg/bridge/twiliorest"
)

type bridgeDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error)
	newServer    func(config.Config, *slog.Logger, bridgeserver.Collaborators) *bridgeserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultBridgeDeps() bridgeDeps {
	return bridgeDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  openStore,
		newServer:  bridgeserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// openStore selects Postgres when a database URL is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return pg, pg.Close, nil
}

func buildCollaborators(ctx context.Context, cfg config.Config, logger *slog.Logger, st store.Store) (bridgeserver.Collaborators, error) {
	collab := bridgeserver.Collaborators{Store: st}

	if cfg.TwilioAccountSID != "" {
		twilio, err := twiliorest.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, nil)
		if err != nil {
			return bridgeserver.Collaborators{}, fmt.Errorf("twilio client: %w", err)
		}
		collab.Twilio = twilio
	} else {
		logger.Warn("twilio credentials not configured, sms and spoken fallback disabled")
	}

	if cfg.GeminiAPIKey != "" {
		summarizer, err := summary.New(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			return bridgeserver.Collaborators{}, fmt.Errorf("summarizer: %w", err)
		}
		collab.Summarizer = summarizer
	}

	if cfg.StripeKey != "" {
		collab.Billing = billing.New(cfg.StripeKey, cfg.StripeMeter, logger)
	}

	return collab, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runBridge(ctx context.Context, logger *slog.Logger, deps bridgeDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newServer == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, closeStore, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	collab, err := buildCollaborators(ctx, cfg, logger, st)
	if err != nil {
		return err
	}

	srv := deps.newServer(cfg, logger, collab)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting bridge", "addr", cfg.Addr, "max_sessions", cfg.MaxSessions)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	srv.SetDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !srv.WaitSessions(waitCtx) {
		canceled := srv.CancelSessions()
		logger.Warn("force-closed live calls", "count", canceled)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("bridge stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps bridgeDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "vai-bridge: %v\n", err)
		return 1
	}

	if err := runBridge(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "vai-bridge: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultBridgeDeps()))
}
