package router

import (
	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

// Destination is one receipt to print: the items of an order that belong on
// a printer.
type Destination struct {
	Printer model.Printer
	Items   []model.LineItem
	// Broadcast marks the unassigned-items copy sent to every enabled printer.
	Broadcast bool
}

// Route partitions items across printers. An item goes to its printerId, or
// to every id in printerIds, or, with neither, to every enabled printer.
// Buckets naming a printer that is not in enabled are dropped and their ids
// returned. Assigned buckets come first in order of first appearance,
// followed by the broadcast copies in printer order.
func Route(items []model.LineItem, enabled []model.Printer) (dests []Destination, dropped []model.ID) {
	byID := make(map[model.ID]model.Printer, len(enabled))
	for _, p := range enabled {
		byID[p.ID] = p
	}

	var (
		order      []model.ID
		buckets    = make(map[model.ID][]model.LineItem)
		unassigned []model.LineItem
	)
	add := func(id model.ID, it model.LineItem) {
		if _, ok := buckets[id]; !ok {
			order = append(order, id)
		}
		buckets[id] = append(buckets[id], it)
	}

	for _, it := range items {
		switch {
		case it.PrinterID != "":
			add(it.PrinterID, it)
		case !it.Unassigned():
			seen := make(map[model.ID]bool, len(it.PrinterIDs))
			for _, id := range it.PrinterIDs {
				if id == "" || seen[id] {
					continue
				}
				seen[id] = true
				add(id, it)
			}
		default:
			unassigned = append(unassigned, it)
		}
	}

	for _, id := range order {
		p, ok := byID[id]
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		dests = append(dests, Destination{Printer: p, Items: buckets[id]})
	}

	if len(unassigned) > 0 {
		for _, p := range enabled {
			dests = append(dests, Destination{Printer: p, Items: unassigned, Broadcast: true})
		}
	}
	return dests, dropped
}
