package escpos

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

const (
	SubtitleKitchen      = "KITCHEN ORDER"
	SubtitleBill         = "TAX INVOICE / RECEIPT"
	SubtitleCustomerBill = "CUSTOMER BILL"
	SubtitleTest         = "*** TEST PRINT ***"
)

// Encoder renders receipts. It performs no I/O; with a fixed Now the output
// for a given job is byte-identical across calls.
type Encoder struct {
	RestaurantName string
	Now            func() time.Time
}

func NewEncoder(restaurantName string) *Encoder {
	return &Encoder{RestaurantName: restaurantName, Now: time.Now}
}

func (e *Encoder) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Encoder) title() string {
	if e.RestaurantName == "" {
		return "RESTORANK"
	}
	return e.RestaurantName
}

// layout is the structure every receipt kind shares: header, metadata,
// kind-specific body, footer.
type layout struct {
	title     string
	titleSize Size
	subtitle  string
	meta      []string
	body      func(b *Builder)
	trailer   func(b *Builder)
	footer    []string
	cut       byte
}

func (l layout) encode() []byte {
	b := &Builder{}

	// Header
	b.Init().Align(AlignCenter).Bold(true).Size(l.titleSize)
	b.Line(l.title)
	b.Size(SizeNormal)
	if l.subtitle != "" {
		b.Line(l.subtitle)
	}
	b.Bold(false)
	b.Line(ruleDouble)

	// Metadata
	b.Align(AlignLeft)
	for _, m := range l.meta {
		b.Line(m)
	}
	b.Line(ruleSingle)

	if l.body != nil {
		l.body(b)
	}

	// Footer
	b.Line(ruleDouble)
	if l.trailer != nil {
		l.trailer(b)
	}
	b.Align(AlignCenter)
	for _, f := range l.footer {
		b.Line(f)
	}
	b.Feed(3)
	b.Cut(l.cut)
	return b.Bytes()
}

// KitchenTicket renders a kitchen order. subtitle is "KITCHEN ORDER" for
// jobs addressed to one printer and the printer name for routed tickets.
func (e *Encoder) KitchenTicket(job model.PrintJob, subtitle string) []byte {
	return layout{
		title:     e.title(),
		titleSize: SizeDoubleHeight,
		subtitle:  subtitle,
		meta:      e.kitchenMeta(job),
		body: func(b *Builder) {
			b.Bold(true)
			for _, it := range job.Items {
				b.Line(fmt.Sprintf("%dx %s", it.Qty(), it.DisplayName()))
				writeNotes(b, it)
			}
			b.Bold(false)
		},
		cut: CutPartial,
	}.encode()
}

// StationTicket renders the items routed to one printer for an on-demand
// order: kitchen header subtitled with the printer name, each item followed
// by its amount, and the station subtotal.
func (e *Encoder) StationTicket(job model.PrintJob, printerName string) []byte {
	subtotal := job.ItemsSubtotal()
	return layout{
		title:     e.title(),
		titleSize: SizeDoubleHeight,
		subtitle:  printerName,
		meta:      e.kitchenMeta(job),
		body: func(b *Builder) {
			b.Bold(true)
			for _, it := range job.Items {
				b.Line(fmt.Sprintf("%dx %s", it.Qty(), it.DisplayName()))
				b.Line("   " + Money(it.LineTotal()))
				writeNotes(b, it)
			}
			b.Bold(false)
		},
		trailer: func(b *Builder) {
			b.Bold(true).Line("Subtotal: " + Money(subtotal)).Bold(false)
		},
		cut: CutPartial,
	}.encode()
}

func (e *Encoder) kitchenMeta(job model.PrintJob) []string {
	meta := []string{
		"Order: #" + orderNumber(job.OrderRef(), 6),
		"Type: " + job.OrderTypeLabel(),
	}
	if job.TableName != "" {
		meta = append(meta, "Table: "+job.TableName)
	}
	return append(meta, "Time: "+e.now().Format("15:04"))
}

// Bill renders a queued tax invoice. The order number is upper-cased and the
// subtotal is computed from the items.
func (e *Encoder) Bill(job model.PrintJob) []byte {
	return e.bill(job, SubtitleBill, true, job.ItemsSubtotal())
}

// CustomerBill renders a bill requested on demand by the UI. It trusts the
// payload subtotal and falls back to the total when absent.
func (e *Encoder) CustomerBill(job model.PrintJob) []byte {
	subtotal := job.Total.Decimal()
	if job.Subtotal.IsSet() {
		subtotal = job.Subtotal.Decimal()
	} else if !job.Total.IsSet() {
		subtotal = job.ItemsSubtotal()
	}
	return e.bill(job, SubtitleCustomerBill, false, subtotal)
}

func (e *Encoder) bill(job model.PrintJob, subtitle string, upper bool, subtotal decimal.Decimal) []byte {
	number := orderNumber(job.OrderRef(), 8)
	if upper {
		number = strings.ToUpper(number)
	}
	meta := []string{
		"Order: #" + number,
		"Type: " + job.OrderTypeLabel(),
	}
	if job.TableName != "" {
		meta = append(meta, "Table: "+job.TableName)
	}
	meta = append(meta, "Date: "+e.now().Format("02/01/2006 15:04"))
	if job.PaymentMethod != "" {
		meta = append(meta, "Payment: "+capitalize(job.PaymentMethod))
	}

	discount := job.DiscountValue()
	total := subtotal.Sub(discount)
	if job.Total.IsSet() {
		total = job.Total.Decimal()
	}

	return layout{
		title:     e.title(),
		titleSize: SizeDouble,
		subtitle:  subtitle,
		meta:      meta,
		body: func(b *Builder) {
			for _, it := range job.Items {
				left := fmt.Sprintf("%dx %s", it.Qty(), it.DisplayName())
				b.Line(PadLine(left, Money(it.LineTotal())))
				writeNotes(b, it)
			}

			// Totals
			b.Line(ruleSingle)
			b.Line(PadLine("Subtotal", Money(subtotal)))
			if discount.IsPositive() {
				b.Line(PadLine("Discount", "-"+Money(discount)))
			}
			b.Line(ruleDouble)
			b.Bold(true).Size(SizeDoubleHeight)
			b.Line(PadLine("TOTAL", Money(total)))
			b.Size(SizeNormal).Bold(false)
		},
		footer: []string{"", "Thank you for dining with us!", "Please come again"},
		cut:    CutPartial,
	}.encode()
}

// TestReceipt renders the diagnostic page used to verify a printer.
func (e *Encoder) TestReceipt(printerName, ip string, port int) []byte {
	if printerName == "" {
		printerName = "Unknown"
	}
	return layout{
		title:     e.title(),
		titleSize: SizeDoubleHeight,
		subtitle:  SubtitleTest,
		meta: []string{
			"Printer: " + printerName,
			"IP: " + ip + ":" + strconv.Itoa(port),
			"Time: " + e.now().Format("2006-01-02 15:04:05"),
		},
		footer: []string{"If you see this, printing works!"},
		cut:    CutFeed,
	}.encode()
}

// Money formats an amount as RM with exactly two decimals.
func Money(d decimal.Decimal) string {
	return "RM " + d.StringFixed(2)
}

func writeNotes(b *Builder, it model.LineItem) {
	if note := it.Note(); note != "" {
		b.Line("   > " + note)
	}
}

// orderNumber keeps the last n characters of the order reference.
func orderNumber(ref string, n int) string {
	if ref == "" {
		return "N/A"
	}
	r := []rune(ref)
	if len(r) > n {
		r = r[len(r)-n:]
	}
	return string(r)
}

func capitalize(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
