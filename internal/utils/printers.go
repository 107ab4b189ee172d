package utils

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

// PrinterStore is the local record of printer configuration and bridge
// settings that change at runtime. It is safe for concurrent use.
type PrinterStore struct {
	mu sync.RWMutex

	file         string
	printers     []model.Printer
	serverURL    string
	restaurantID string
	pollInterval time.Duration
	autoPrint    bool
	lastOrderID  string
}

// NewPrinterStore loads the printers file named in config. A missing file
// yields an empty snapshot.
func NewPrinterStore(config model.Config) (*PrinterStore, error) {
	printers, err := LoadPrinters(config.PrintersFile)
	if err != nil {
		return nil, err
	}
	return &PrinterStore{
		file:         config.PrintersFile,
		printers:     printers,
		serverURL:    config.ServerURL,
		restaurantID: config.RestaurantID,
		pollInterval: config.PollInterval(),
		autoPrint:    config.AutoPrint,
	}, nil
}

// Printers returns a copy of every configured printer.
func (s *PrinterStore) Printers() []model.Printer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Printer(nil), s.printers...)
}

func (s *PrinterStore) EnabledPrinters() []model.Printer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var enabled []model.Printer
	for _, p := range s.printers {
		if p.IsEnabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// Replace swaps the snapshot for printers and persists it.
func (s *PrinterStore) Replace(printers []model.Printer) error {
	s.mu.Lock()
	s.printers = append([]model.Printer(nil), printers...)
	file := s.file
	s.mu.Unlock()

	if file == "" {
		return nil
	}
	return SavePrinters(file, printers)
}

func (s *PrinterStore) AutoPrintEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoPrint
}

func (s *PrinterStore) SetAutoPrint(enabled bool) {
	s.mu.Lock()
	s.autoPrint = enabled
	s.mu.Unlock()
}

func (s *PrinterStore) PollInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollInterval
}

func (s *PrinterStore) ServerURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverURL
}

func (s *PrinterStore) RestaurantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restaurantID
}

func (s *PrinterStore) SetLastOrderID(id string) {
	s.mu.Lock()
	s.lastOrderID = id
	s.mu.Unlock()
}

func (s *PrinterStore) LastOrderID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOrderID
}

// --- Files ---

func LoadPrinters(printersFile string) ([]model.Printer, error) {
	if _, err := os.Stat(printersFile); os.IsNotExist(err) {
		return []model.Printer{}, nil
	}
	data, err := os.ReadFile(printersFile)
	if err != nil {
		return nil, err
	}
	var printers []model.Printer
	if err := json.Unmarshal(data, &printers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal printers: %w", err)
	}
	return printers, nil
}

func SavePrinters(printersFile string, printers []model.Printer) error {
	// Ensure config directory exists
	configDir := filepath.Dir(printersFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if printers == nil {
		printers = []model.Printer{}
	}
	data, err := json.MarshalIndent(printers, "", "  ")
	if err != nil {
		return err
	}

	// Written to a temp file and renamed into place.
	tmp := printersFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, printersFile)
}

// Probe reports whether something accepts TCP connections on ip:port.
func Probe(ip string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
