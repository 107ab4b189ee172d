package services

import (
	"context"
	"time"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

// Backend is the POS backend as seen by the print pipeline.
type Backend interface {
	FetchPrintJobs(ctx context.Context) ([]model.PrintJob, error)
	FetchPendingTestPrints(ctx context.Context) ([]model.TestPrintRequest, error)
	FetchPrinters(ctx context.Context) ([]model.Printer, error)
	Acknowledge(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, message string) error
	CompleteTestPrint(ctx context.Context, id, message string) error
	MarkOrderPrinted(ctx context.Context, orderID string) error
	MarkBillPrinted(ctx context.Context, orderID string) error
}

// PrinterManager owns the printer configuration and runtime settings.
type PrinterManager interface {
	Printers() []model.Printer
	EnabledPrinters() []model.Printer
	Replace(printers []model.Printer) error
	AutoPrintEnabled() bool
	PollInterval() time.Duration
	SetLastOrderID(id string)
	LastOrderID() string
}

// Transport delivers an encoded receipt to a printer.
type Transport interface {
	Send(ctx context.Context, ip string, port int, data []byte) error
}

// Announcer speaks kitchen tickets.
type Announcer interface {
	Announce(job model.PrintJob, repeat bool) bool
}
