package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

// PrinterSync refreshes the local printer snapshot from the backend.
type PrinterSync struct {
	backend  Backend
	printers PrinterManager
	logger   zerolog.Logger

	// running guards against overlapping syncs started fire-and-forget.
	running sync.Mutex
}

func NewPrinterSync(backend Backend, printers PrinterManager) *PrinterSync {
	return &PrinterSync{
		backend:  backend,
		printers: printers,
		logger:   observability.Component("printer-sync"),
	}
}

// Sync fetches the printer list and replaces the local snapshot. A failed
// fetch keeps the current snapshot. It returns false when another sync was
// already running.
func (s *PrinterSync) Sync(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Debug().Msg("Printer sync already running")
		return false
	}
	defer s.running.Unlock()

	printers, err := s.backend.FetchPrinters(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to sync printers from server")
		return true
	}

	if err := s.printers.Replace(printers); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save synced printers")
		return true
	}

	enabled := len(s.printers.EnabledPrinters())
	observability.SetEnabledPrinters(enabled)
	s.logger.Info().Int("printers", len(printers)).Int("enabled", enabled).Msg("Printers synced from server")
	return true
}
