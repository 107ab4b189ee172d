package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/api"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/backend"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/preview"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/services"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/thermal"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/utils"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/voice"
)

const (
	appName    = "RestoRank Print Bridge"
	appVersion = "1.0.0"
	configFile = "config/config.json"
)

// --- Main ---

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, model.ContextAppName, appName)
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)
	ctx = context.WithValue(ctx, model.ContextAppAuthor, "Riboost Studio")
	ctx = context.WithValue(ctx, model.ContextConfigFile, configFile)

	// 1. Load Configuration
	config, err := utils.LoadConfig(ctx, os.Stdin, os.Stdout)
	if err != nil {
		observability.InitLogger("info", true)
		logger := observability.GetLogger()
		logger.Fatal().Err(err).Msg("Config error")
	}
	observability.InitLogger(config.LogLevel, config.LogPretty)
	logger := observability.Component("main")
	logger.Info().
		Str("app", appName).
		Str("version", config.AppVersion).
		Str("server_url", config.ServerURL).
		Str("restaurant_id", config.RestaurantID).
		Msg("Configuration loaded")

	sysInfo := utils.ValidateSystemRequirements(logger, config.SpeechCommand)

	// 2. Load Printers
	store, err := utils.NewPrinterStore(config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load printers")
	}
	logger.Info().Int("printers", len(store.Printers())).Msg("Printers loaded")

	// 3. Wire the print pipeline
	client := backend.NewClient(store, config.APIKey)
	sender := thermal.NewSender(config)
	encoder := escpos.NewEncoder(config.RestaurantName)

	var engine voice.Engine
	if sysInfo.SpeechPath != "" {
		engine = voice.NewCommandSpeaker(sysInfo.SpeechPath, sysInfo.SpeechArgs...)
	}
	sequencer := voice.NewSequencer(voice.Settings{
		Enabled: config.VoiceEnabled,
		Role:    config.DeviceRole,
	}, engine, voice.TerminalBeeper{Out: os.Stdout})
	go sequencer.Run(ctx)

	orchestrator := services.NewOrchestrator(client, store, sender, encoder, sequencer)
	bridge := services.NewBridge(store, sender, encoder, client, sequencer)

	// 4. Start polling and the push channel
	if !orchestrator.Start(ctx) {
		logger.Info().Msg("Auto print is disabled, polling not started")
	}

	syncer := orchestrator.Syncer()
	push := services.NewPushListener(config, orchestrator.Wake, func() {
		go syncer.Sync(ctx)
	})
	go push.Run(ctx)

	// 5. Local API
	handler := &api.Handler{
		Service:  bridge,
		Poller:   orchestrator,
		Printers: store,
		Sync:     syncer.Sync,
		Push:     push,
		Name:     appName,
		Version:  appVersion,
		PollCtx:  ctx,
	}
	if sysInfo.ChromePresent {
		handler.Renderer = preview.NewRenderer(sysInfo.ChromePath)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           api.SetupRouter(handler, config.MetricsEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", config.ListenAddr).Msg("Local API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Local API stopped")
		}
	}()

	logger.Info().Msg("--- System Running ---")

	// Wait for interrupt to exit cleanly
	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	orchestrator.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Local API shutdown failed")
	}
}
