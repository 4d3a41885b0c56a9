package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/aerocopilot/internal/advisory"
	"github.com/ent0n29/aerocopilot/internal/config"
	"github.com/ent0n29/aerocopilot/internal/copilot"
	"github.com/ent0n29/aerocopilot/internal/flights"
	"github.com/ent0n29/aerocopilot/internal/httpapi"
	"github.com/ent0n29/aerocopilot/internal/observability"
	"github.com/ent0n29/aerocopilot/internal/session"
	"github.com/ent0n29/aerocopilot/internal/speech"
	"github.com/ent0n29/aerocopilot/internal/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		return serve(cmd.Context(), cfg, logger)
	},
}

// newSpeechManager wires the local engine, the remote voice and the audio
// player. A missing local engine is not fatal: remote speech still works and
// local requests fail with ErrEngineUnavailable.
func newSpeechManager(cfg config.Config, logger *log.Logger, metrics *observability.Metrics) (*speech.Manager, error) {
	mcfg := speech.ManagerConfig{
		Synthesizer: speech.NewElevenLabsClient(speech.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			BaseURL:      cfg.ElevenLabsBaseURL,
			VoiceID:      cfg.ElevenLabsVoiceID,
			ModelID:      cfg.ElevenLabsModelID,
			OutputFormat: cfg.ElevenLabsOutputFormat,
			Timeout:      cfg.ElevenLabsTimeout,
		}),
		Player:          speech.NewOtoPlayer(),
		Logger:          logger,
		Metrics:         metrics,
		Provider:        cfg.Provider(),
		PreferredVoices: cfg.PreferredVoices,
		CacheSize:       cfg.AudioCacheSize,
	}
	engine, err := speech.NewEspeakEngine(speech.EspeakConfig{Binary: cfg.EspeakBinary, BaseWPM: cfg.EspeakWPM})
	if err != nil {
		logger.Warn("local speech engine unavailable", "err", err)
	} else {
		mcfg.Engine = engine
	}
	return speech.NewManager(mcfg)
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	voice, err := newSpeechManager(cfg, logger, metrics)
	if err != nil {
		return err
	}
	logger.Info("speech ready", "provider", voice.Provider(), "remote_available", voice.RemoteAvailable())

	store, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	backend := advisory.NewClient(advisory.Config{
		BaseURL:    cfg.BackendURL,
		Timeout:    cfg.BackendTimeout,
		MaxRetries: cfg.BackendMaxRetries,
		Logger:     logger,
		Metrics:    metrics,
	})
	monitor := advisory.NewMonitor(backend)
	monitor.OnChange(func(connected bool) {
		if connected {
			logger.Info("advisory backend connected", "url", backend.BaseURL())
			return
		}
		logger.Warn("advisory backend unreachable, replies will use fallback text", "url", backend.BaseURL())
	})

	// with polling disabled the poller has no source and serves demo flights
	var source flights.Source
	if !cfg.FlightsPollDisabled {
		source = flights.NewOpenSkyClient(flights.OpenSkyConfig{
			BaseURL:     cfg.OpenSkyURL,
			MinInterval: cfg.FlightsMinInterval,
		})
	}
	poller := flights.NewPoller(source, logger, metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	svc := copilot.NewService(copilot.Config{
		Sessions: sessions,
		Store:    store,
		Backend:  backend,
		Speaker:  voice,
		Logger:   logger,
		Metrics:  metrics,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Speech:     voice,
		Flights:    poller,
		Copilot:    svc,
		Backend:    monitor,
		BackendURL: backend.BaseURL(),
		Metrics:    metrics,
		Logger:     logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)
	monitor.Start(runCtx, cfg.BackendPingInterval)
	if cfg.FlightsPollDisabled {
		poller.Refresh(runCtx)
	} else {
		poller.Start(runCtx, cfg.FlightsRefresh)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-sigCh:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	runCancel()
	voice.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		_ = httpServer.Close()
	}
	api.Close()
	svc.Close()

	logger.Info("shutdown complete")
	return nil
}
