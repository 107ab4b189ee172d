package observability

import (
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// BridgeStatus is the operational snapshot served to the UI.
type BridgeStatus struct {
	Polling          bool   `json:"polling"`
	AutoPrintEnabled bool   `json:"autoPrintEnabled"`
	Cycles           uint64 `json:"cycles"`
	LastCycleAt      string `json:"lastCycleAt,omitempty"`
	LastOrderID      string `json:"lastOrderId,omitempty"`
	Printers         int    `json:"printers"`
	EnabledPrinters  int    `json:"enabledPrinters"`
	PushConnected    bool   `json:"pushConnected"`
}

func NewHealthStatus(service, version string) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   service,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
