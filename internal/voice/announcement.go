package voice

import (
	"fmt"
	"strings"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

const (
	// MaxSpokenItems is the largest order read out item by item.
	MaxSpokenItems = 5
	maxSpokenNotes = 3
)

// suppressedEvents are job events that never produce a kitchen announcement.
var suppressedEvents = map[string]bool{
	"delivery_order_created": true,
	"bill_printed":           true,
	"payment_completed":      true,
}

// Suppressed reports whether a job with this event type must stay silent.
func Suppressed(eventType string) bool {
	return suppressedEvents[strings.TrimSpace(eventType)]
}

// BuildAnnouncement returns the text spoken for a kitchen ticket, or "" when
// the order has no items.
func BuildAnnouncement(job model.PrintJob) string {
	if len(job.Items) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(location(job))

	if len(job.Items) > MaxSpokenItems {
		sb.WriteString("Multiple items. ")
	} else {
		for _, it := range job.Items {
			name := strings.TrimSpace(it.Name)
			if name == "" {
				continue
			}
			if qty := it.Qty(); qty > 1 {
				fmt.Fprintf(&sb, "%d %s. ", qty, name)
			} else {
				sb.WriteString(name + ". ")
			}
		}
	}

	if notes := collectNotes(job.Items); len(notes) > 0 {
		sb.WriteString("Notes: " + strings.Join(notes, ". "))
	}
	return strings.TrimSpace(sb.String())
}

func location(job model.PrintJob) string {
	switch {
	case job.TableName != "":
		return "Table " + job.TableName + ". "
	case job.TableNumber != "":
		return "Table " + job.TableNumber.String() + ". "
	}

	kind := job.OrderType
	if kind == "" {
		kind = job.Type
	}
	switch {
	case strings.EqualFold(kind, "takeaway"):
		return "Takeaway order. "
	case strings.EqualFold(kind, "delivery"):
		return "Delivery order. "
	}
	return "New order. "
}

// collectNotes gathers the first few notes and instructions in item order.
// Instructions identical to the item's notes are not repeated.
func collectNotes(items []model.LineItem) []string {
	var notes []string
	for _, it := range items {
		n := strings.TrimSpace(it.Notes)
		in := strings.TrimSpace(it.Instructions)
		if n != "" {
			notes = append(notes, n)
		}
		if in != "" && in != n {
			notes = append(notes, in)
		}
	}
	if len(notes) > maxSpokenNotes {
		notes = notes[:maxSpokenNotes]
	}
	return notes
}
