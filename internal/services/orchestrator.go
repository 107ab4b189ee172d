package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/dedup"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/router"
)

// SyncEvery is the number of polling cycles between printer refreshes.
const SyncEvery = 10

// Orchestrator runs the polling loop: fetch queued jobs, print each unseen
// one and report the outcome. Cycles run one at a time on the goroutine that
// called Run; the dedup caches and the sync counter are only touched there.
type Orchestrator struct {
	backend   Backend
	printers  PrinterManager
	transport Transport
	encoder   *escpos.Encoder
	voice     Announcer
	syncer    *PrinterSync

	kitchenSeen *dedup.Cache
	billSeen    *dedup.Cache
	testSeen    *dedup.Cache
	syncCounter int

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger

	mu          sync.RWMutex
	polling     bool
	cycles      uint64
	lastCycleAt time.Time
}

func NewOrchestrator(backend Backend, printers PrinterManager, transport Transport, encoder *escpos.Encoder, voice Announcer) *Orchestrator {
	return &Orchestrator{
		backend:     backend,
		printers:    printers,
		transport:   transport,
		encoder:     encoder,
		voice:       voice,
		syncer:      NewPrinterSync(backend, printers),
		kitchenSeen: dedup.New(dedup.KitchenCapacity),
		billSeen:    dedup.New(dedup.BillCapacity),
		testSeen:    dedup.New(dedup.TestCapacity),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		logger:      observability.Component("orchestrator"),
	}
}

// Syncer returns the printer sync shared with the push listener.
func (o *Orchestrator) Syncer() *PrinterSync {
	return o.syncer
}

// Run polls until ctx is cancelled, Stop is called or auto print is turned
// off. The stop condition is checked between cycles; a cycle in progress
// always completes. Run returns at once if a loop is already running.
func (o *Orchestrator) Run(ctx context.Context) {
	if !o.claim() {
		return
	}
	o.loop(ctx)
}

// Start runs the polling loop in a new goroutine unless one is running or
// auto print is off.
func (o *Orchestrator) Start(ctx context.Context) bool {
	if !o.claim() {
		return false
	}
	go o.loop(ctx)
	return true
}

func (o *Orchestrator) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.printers.AutoPrintEnabled() {
		o.logger.Info().Msg("Auto print disabled, polling not started")
		return false
	}
	if o.polling {
		return false
	}
	o.polling = true
	return true
}

func (o *Orchestrator) loop(ctx context.Context) {
	o.logger.Info().Dur("interval", o.printers.PollInterval()).Msg("Polling started")
	go o.syncer.Sync(context.WithoutCancel(ctx))

	for {
		o.RunCycle(ctx)
		if o.release() {
			return
		}

		timer := time.NewTimer(o.printers.PollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			o.setPolling(false)
			o.logger.Info().Msg("Polling stopped")
			return
		case <-o.stop:
			timer.Stop()
			o.setPolling(false)
			o.logger.Info().Msg("Polling stopped")
			return
		case <-o.wake:
			timer.Stop()
		case <-timer.C:
		}

		// Auto print may have been turned off while waiting.
		if o.release() {
			return
		}
	}
}

// release ends the loop's claim when auto print is off. The check and the
// clear share one critical section with claim, so a concurrent Start either
// finds the loop still running or is free to launch a new one.
func (o *Orchestrator) release() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.printers.AutoPrintEnabled() {
		return false
	}
	o.polling = false
	o.logger.Info().Msg("Auto print disabled, polling stopped")
	return true
}

// Wake starts the next cycle without waiting for the poll interval. Calls
// made while a wake-up is already pending are merged.
func (o *Orchestrator) Wake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// RunCycle performs one polling cycle. Errors never leave it.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	ctx = context.WithValue(ctx, model.ContextCycleID, cycleID)
	logger := o.logger.With().Str("cycle_id", cycleID).Logger()
	start := time.Now()

	o.syncCounter++
	if o.syncCounter >= SyncEvery {
		o.syncCounter = 0
		go o.syncer.Sync(context.WithoutCancel(ctx))
	}

	jobs, err := o.backend.FetchPrintJobs(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch print jobs")
		jobs = nil
	}
	for _, job := range jobs {
		o.processJob(ctx, logger, job)
	}

	tests, err := o.backend.FetchPendingTestPrints(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch pending test prints")
		tests = nil
	}
	for _, req := range tests {
		o.processTestPrint(ctx, logger, req)
	}

	elapsed := time.Since(start)
	observability.RecordPollCycle(elapsed.Seconds())
	logger.Debug().Int("jobs", len(jobs)).Int("test_prints", len(tests)).Dur("elapsed", elapsed).Msg("Cycle complete")

	o.mu.Lock()
	o.cycles++
	o.lastCycleAt = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) processJob(ctx context.Context, logger zerolog.Logger, job model.PrintJob) {
	id := job.ID.String()
	if id == "" {
		return
	}

	kind, ok := job.Kind()
	if !ok {
		logger.Debug().Str("job_id", id).Str("type", job.Type).Msg("Skipping job of unknown type")
		observability.RecordJob(job.Type, "skipped")
		return
	}

	seen := o.kitchenSeen
	if kind == model.KindBill {
		seen = o.billSeen
	}
	if !seen.Add(id) {
		observability.RecordDuplicate(string(kind))
		return
	}

	jobLogger := logger.With().Str("job_id", id).Str("order_id", job.OrderID.String()).Str("kind", string(kind)).Logger()

	var err error
	switch {
	case job.Malformed() != nil:
		err = job.Malformed()
	case kind == model.KindBill:
		err = o.printBillJob(ctx, jobLogger, job)
	default:
		err = o.printKitchenJob(ctx, jobLogger, job)
		if job.OrderID != "" {
			o.printers.SetLastOrderID(job.OrderID.String())
		}
	}

	if err != nil {
		jobLogger.Error().Err(err).Msg("Print job failed")
		observability.RecordJob(string(kind), "failed")
		if ferr := o.backend.Fail(ctx, id, err.Error()); ferr != nil {
			jobLogger.Warn().Err(ferr).Msg("Failed to mark print job as failed")
		}
		return
	}

	jobLogger.Info().Msg("Print job printed")
	observability.RecordJob(string(kind), "printed")
	if aerr := o.backend.Acknowledge(ctx, id); aerr != nil {
		jobLogger.Warn().Err(aerr).Msg("Failed to acknowledge print job")
	}
}

// delivery is one encoded receipt addressed to a printer.
type delivery struct {
	name string
	ip   string
	port int
	data []byte
}

// printKitchenJob prints a kitchen ticket to the job's printer, or routes
// its items across the enabled printers when the job names none.
func (o *Orchestrator) printKitchenJob(ctx context.Context, logger zerolog.Logger, job model.PrintJob) error {
	var deliveries []delivery
	if job.PrinterIP != "" {
		deliveries = append(deliveries, delivery{
			name: job.PrinterName,
			ip:   job.PrinterIP,
			port: job.Port(),
			data: o.encoder.KitchenTicket(job, escpos.SubtitleKitchen),
		})
	} else {
		dests, dropped := router.Route(job.Items, o.printers.EnabledPrinters())
		if len(dropped) > 0 {
			logger.Warn().Interface("printer_ids", dropped).Msg("Items assigned to unknown or disabled printers were dropped")
		}
		for _, d := range dests {
			subtitle := d.Printer.Name
			if subtitle == "" {
				subtitle = escpos.SubtitleKitchen
			}
			deliveries = append(deliveries, delivery{
				name: d.Printer.Name,
				ip:   d.Printer.IP,
				port: d.Printer.PortOrDefault(),
				data: o.encoder.KitchenTicket(job.WithItems(d.Items), subtitle),
			})
		}
	}

	if len(deliveries) == 0 {
		return model.ErrNoPrinterIP
	}

	if o.voice != nil {
		o.voice.Announce(job, true)
	}
	return o.deliver(ctx, logger, deliveries)
}

// printBillJob prints a tax invoice to the job's printer, falling back to
// the first enabled printer.
func (o *Orchestrator) printBillJob(ctx context.Context, logger zerolog.Logger, job model.PrintJob) error {
	d := delivery{name: job.PrinterName, ip: job.PrinterIP, port: job.Port()}
	if d.ip == "" {
		enabled := o.printers.EnabledPrinters()
		if len(enabled) == 0 {
			return model.ErrNoPrinterIP
		}
		d = delivery{name: enabled[0].Name, ip: enabled[0].IP, port: enabled[0].PortOrDefault()}
	}
	d.data = o.encoder.Bill(job)
	return o.deliver(ctx, logger, []delivery{d})
}

// deliver sends every receipt and joins the failures.
func (o *Orchestrator) deliver(ctx context.Context, logger zerolog.Logger, deliveries []delivery) error {
	var errs []error
	for _, d := range deliveries {
		if d.ip == "" {
			errs = append(errs, model.ErrNoPrinterIP)
			continue
		}
		if err := o.transport.Send(ctx, d.ip, d.port, d.data); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug().Str("printer", d.name).Str("ip", d.ip).Int("bytes", len(d.data)).Msg("Receipt sent")
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) processTestPrint(ctx context.Context, logger zerolog.Logger, req model.TestPrintRequest) {
	id := req.ID.String()
	if id == "" || !o.testSeen.Add(id) {
		if id != "" {
			observability.RecordDuplicate(string(model.KindTest))
		}
		return
	}

	logger = logger.With().Str("job_id", id).Str("kind", string(model.KindTest)).Str("printer", req.Name()).Logger()

	var message string
	if req.NetworkIP == "" {
		message = "No IP address configured"
	} else if err := o.transport.Send(ctx, req.NetworkIP, req.Port(), o.encoder.TestReceipt(req.Name(), req.NetworkIP, req.Port())); err != nil {
		message = err.Error()
	}

	if message != "" {
		logger.Error().Str("error", message).Msg("Test print failed")
		observability.RecordJob(string(model.KindTest), "failed")
	} else {
		logger.Info().Msg("Test print sent")
		observability.RecordJob(string(model.KindTest), "printed")
	}

	if err := o.backend.CompleteTestPrint(ctx, id, message); err != nil {
		logger.Warn().Err(err).Msg("Failed to complete test print")
	}
}

// Status returns a snapshot of the polling state.
func (o *Orchestrator) Status() observability.BridgeStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status := observability.BridgeStatus{
		Polling:          o.polling,
		AutoPrintEnabled: o.printers.AutoPrintEnabled(),
		Cycles:           o.cycles,
		LastOrderID:      o.printers.LastOrderID(),
		Printers:         len(o.printers.Printers()),
		EnabledPrinters:  len(o.printers.EnabledPrinters()),
	}
	if !o.lastCycleAt.IsZero() {
		status.LastCycleAt = o.lastCycleAt.UTC().Format(time.RFC3339)
	}
	return status
}

func (o *Orchestrator) setPolling(on bool) {
	o.mu.Lock()
	o.polling = on
	o.mu.Unlock()
}
