package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// JobKind is the dedup namespace and receipt family of a queued job.
type JobKind string

const (
	KindKitchen JobKind = "kot"
	KindBill    JobKind = "bill"
	KindTest    JobKind = "test"
)

// --- Print Job Structures (Matching the backend JSON) ---

// PrintJob is a unit of work pulled from the remote queue. The same shape is
// used for orders handed over by the UI for on-demand printing.
type PrintJob struct {
	ID             ID         `json:"id"`
	Type           string     `json:"type"`
	OrderID        ID         `json:"orderId"`
	OrderType      string     `json:"orderType"`
	TableName      string     `json:"tableName"`
	TableNumber    ID         `json:"tableNumber"`
	Items          []LineItem `json:"items"`
	Total          Amount     `json:"total"`
	Subtotal       Amount     `json:"subtotal"`
	Discount       Amount     `json:"discount"`
	DiscountAmount Amount     `json:"discountAmount"`
	PaymentMethod  string     `json:"paymentMethod"`
	PrinterIP      string     `json:"printerIp"`
	PrinterPort    Int        `json:"printerPort"`
	PrinterName    string     `json:"printerName"`
	EventType      string     `json:"eventType"`

	decodeErr error
}

func (j *PrintJob) UnmarshalJSON(raw []byte) error {
	raw, err := stringifyKeys(raw, "type", "orderType", "tableName", "paymentMethod", "printerIp", "printerName", "eventType")
	if err != nil {
		return err
	}
	type plain PrintJob
	return json.Unmarshal(raw, (*plain)(j))
}

// MalformedJob stands in for a queued job whose payload could not be
// decoded. It still carries the id so the job can be reported as failed.
func MalformedJob(id ID, err error) PrintJob {
	return PrintJob{ID: id, decodeErr: &FormatError{Field: "print job", Err: err}}
}

// Malformed returns the decode error of a job built by MalformedJob.
func (j PrintJob) Malformed() error {
	return j.decodeErr
}

// Kind maps the job type onto a dedup namespace. An absent type is a kitchen
// ticket; ok is false for types this bridge does not print.
func (j PrintJob) Kind() (kind JobKind, ok bool) {
	switch strings.ToLower(strings.TrimSpace(j.Type)) {
	case "", string(KindKitchen):
		return KindKitchen, true
	case string(KindBill):
		return KindBill, true
	}
	return "", false
}

func (j PrintJob) Port() int {
	if p := j.PrinterPort.Or(0); p > 0 {
		return p
	}
	return DefaultPrinterPort
}

// OrderRef is the order identifier printed on receipts. On-demand payloads
// carry it in id rather than orderId.
func (j PrintJob) OrderRef() string {
	if j.OrderID != "" {
		return string(j.OrderID)
	}
	return string(j.ID)
}

// OrderTypeLabel falls back to the legacy type field, then to Dine-in.
func (j PrintJob) OrderTypeLabel() string {
	if j.OrderType != "" {
		return j.OrderType
	}
	if _, queued := j.Kind(); !queued && j.Type != "" {
		return j.Type
	}
	return "Dine-in"
}

// DiscountValue prefers discountAmount and falls back to discount.
func (j PrintJob) DiscountValue() decimal.Decimal {
	if d := j.DiscountAmount.Decimal(); d.IsPositive() {
		return d
	}
	return j.Discount.Decimal()
}

// ItemsSubtotal sums price x quantity over all items.
func (j PrintJob) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range j.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// WithItems returns a copy of the job carrying only items.
func (j PrintJob) WithItems(items []LineItem) PrintJob {
	j.Items = items
	return j
}

type LineItem struct {
	Name         string `json:"name"`
	Quantity     Int    `json:"quantity"`
	Price        Amount `json:"price"`
	Notes        string `json:"notes"`
	Instructions string `json:"instructions"`
	PrinterID    ID     `json:"printerId"`
	PrinterIDs   []ID   `json:"printerIds"`
}

func (it *LineItem) UnmarshalJSON(raw []byte) error {
	raw, err := stringifyKeys(raw, "name", "notes", "instructions")
	if err != nil {
		return err
	}
	type plain LineItem
	return json.Unmarshal(raw, (*plain)(it))
}

// Qty defaults to 1 when the payload omits quantity.
func (it LineItem) Qty() int {
	return it.Quantity.Or(1)
}

func (it LineItem) DisplayName() string {
	if it.Name == "" {
		return "Item"
	}
	return it.Name
}

// Note is the free text printed under the item: notes, else instructions.
func (it LineItem) Note() string {
	if notes := strings.TrimSpace(it.Notes); notes != "" {
		return notes
	}
	return strings.TrimSpace(it.Instructions)
}

func (it LineItem) LineTotal() decimal.Decimal {
	return it.Price.Decimal().Mul(decimal.NewFromInt(int64(it.Qty())))
}

// Unassigned reports an item with neither printerId nor printerIds.
func (it LineItem) Unassigned() bool {
	if it.PrinterID != "" {
		return false
	}
	for _, id := range it.PrinterIDs {
		if id != "" {
			return false
		}
	}
	return true
}

// TestPrintRequest asks the bridge to print a diagnostic receipt.
type TestPrintRequest struct {
	ID          ID     `json:"id"`
	PrinterName string `json:"printerName"`
	NetworkIP   string `json:"networkIp"`
	NetworkPort Int    `json:"networkPort"`
}

func (t *TestPrintRequest) UnmarshalJSON(raw []byte) error {
	raw, err := stringifyKeys(raw, "printerName", "networkIp")
	if err != nil {
		return err
	}
	type plain TestPrintRequest
	return json.Unmarshal(raw, (*plain)(t))
}

func (t TestPrintRequest) Port() int {
	if p := t.NetworkPort.Or(0); p > 0 {
		return p
	}
	return DefaultPrinterPort
}

func (t TestPrintRequest) Name() string {
	if t.PrinterName == "" {
		return "Unknown"
	}
	return t.PrinterName
}
