package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/router"
)

// Results returned to the UI by the on-demand calls. With no enabled
// printer the result is model.ErrNoEnabledPrinters' message.
const (
	ResultOK          = "OK"
	ResultPrintFailed = "Print failed"
)

// Bridge serves synchronous print requests from the UI. Nothing here passes
// through the dedup caches or the job acknowledgement endpoints.
type Bridge struct {
	printers  PrinterManager
	transport Transport
	encoder   *escpos.Encoder
	backend   Backend
	voice     Announcer
	logger    zerolog.Logger
}

func NewBridge(printers PrinterManager, transport Transport, encoder *escpos.Encoder, backend Backend, voice Announcer) *Bridge {
	return &Bridge{
		printers:  printers,
		transport: transport,
		encoder:   encoder,
		backend:   backend,
		voice:     voice,
		logger:    observability.Component("bridge"),
	}
}

// PrintBill prints a customer bill on every enabled printer. It returns OK
// when at least one printer received it.
func (b *Bridge) PrintBill(ctx context.Context, orderID string, payload []byte) string {
	order, err := decodeOrder(orderID, payload)
	if err != nil {
		return "Error: " + err.Error()
	}

	enabled := b.printers.EnabledPrinters()
	if len(enabled) == 0 {
		b.logger.Warn().Err(model.ErrNoEnabledPrinters).Str("order_id", order.OrderRef()).Msg("Nothing printed")
		return model.ErrNoEnabledPrinters.Error()
	}

	data := b.encoder.CustomerBill(order)
	printed := false
	for _, p := range enabled {
		if err := b.transport.Send(ctx, p.IP, p.PortOrDefault(), data); err != nil {
			b.logger.Error().Err(err).Str("printer", p.Name).Msg("Failed to print bill")
			continue
		}
		printed = true
	}
	if !printed {
		observability.RecordJob("bill_on_demand", "failed")
		return ResultPrintFailed
	}

	observability.RecordJob("bill_on_demand", "printed")
	if ref := order.OrderRef(); ref != "" {
		if err := b.backend.MarkBillPrinted(ctx, ref); err != nil {
			b.logger.Warn().Err(err).Str("order_id", ref).Msg("Failed to mark bill as printed")
		}
	}
	return ResultOK
}

// PrintOrder routes an order's items to the enabled printers, announces it
// and marks it printed when any station ticket was delivered.
func (b *Bridge) PrintOrder(ctx context.Context, orderID string, payload []byte) string {
	order, err := decodeOrder(orderID, payload)
	if err != nil {
		return "Error: " + err.Error()
	}

	enabled := b.printers.EnabledPrinters()
	if len(enabled) == 0 {
		b.logger.Warn().Err(model.ErrNoEnabledPrinters).Str("order_id", order.OrderRef()).Msg("Nothing printed")
		return model.ErrNoEnabledPrinters.Error()
	}

	if b.voice != nil {
		b.voice.Announce(order, true)
	}

	dests, dropped := router.Route(order.Items, enabled)
	if len(dropped) > 0 {
		b.logger.Warn().Interface("printer_ids", dropped).Msg("Items assigned to unknown or disabled printers were dropped")
	}

	printed := false
	for _, d := range dests {
		data := b.encoder.StationTicket(order.WithItems(d.Items), d.Printer.Name)
		if err := b.transport.Send(ctx, d.Printer.IP, d.Printer.PortOrDefault(), data); err != nil {
			b.logger.Error().Err(err).Str("printer", d.Printer.Name).Msg("Failed to print order")
			continue
		}
		b.logger.Debug().Str("printer", d.Printer.Name).Int("items", len(d.Items)).Bool("broadcast", d.Broadcast).Msg("Printed items")
		printed = true
	}
	if !printed {
		observability.RecordJob("order_on_demand", "failed")
		return ResultPrintFailed
	}

	observability.RecordJob("order_on_demand", "printed")
	if ref := order.OrderRef(); ref != "" {
		if err := b.backend.MarkOrderPrinted(ctx, ref); err != nil {
			b.logger.Warn().Err(err).Str("order_id", ref).Msg("Failed to mark order as printed")
		}
	}
	return ResultOK
}

// TestPrint sends the diagnostic receipt to ip:port.
func (b *Bridge) TestPrint(ctx context.Context, ip string, port int) string {
	if ip == "" {
		return "Error: " + model.ErrNoPrinterIP.Error()
	}
	if port <= 0 {
		port = model.DefaultPrinterPort
	}

	name := "Unknown"
	for _, p := range b.printers.Printers() {
		if p.IP == ip && p.PortOrDefault() == port {
			name = p.Name
			break
		}
	}

	if err := b.transport.Send(ctx, ip, port, b.encoder.TestReceipt(name, ip, port)); err != nil {
		return "Error: " + err.Error()
	}
	return ResultOK
}

// Preview encodes a customer bill without printing it.
func (b *Bridge) Preview(orderID string, payload []byte) ([]byte, error) {
	order, err := decodeOrder(orderID, payload)
	if err != nil {
		return nil, err
	}
	return b.encoder.CustomerBill(order), nil
}

func decodeOrder(orderID string, payload []byte) (model.PrintJob, error) {
	var order model.PrintJob
	if err := json.Unmarshal(payload, &order); err != nil {
		return order, &model.FormatError{Field: "order", Err: err}
	}
	if order.ID == "" {
		order.ID = model.ID(orderID)
	}
	return order, nil
}
