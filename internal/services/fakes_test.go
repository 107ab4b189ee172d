package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

type fakeBackend struct {
	mu sync.Mutex

	jobs      []model.PrintJob
	tests     []model.TestPrintRequest
	printers  []model.Printer
	fetchErr  error
	printerFn int

	acked       []string
	failed      map[string]string
	completed   map[string]string
	ordersDone  []string
	billsDone   []string
	testFetches int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failed: map[string]string{}, completed: map[string]string{}}
}

func (f *fakeBackend) FetchPrintJobs(ctx context.Context) ([]model.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.PrintJob(nil), f.jobs...), nil
}

func (f *fakeBackend) FetchPendingTestPrints(ctx context.Context) ([]model.TestPrintRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testFetches++
	return append([]model.TestPrintRequest(nil), f.tests...), nil
}

func (f *fakeBackend) FetchPrinters(ctx context.Context) ([]model.Printer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printerFn++
	return append([]model.Printer(nil), f.printers...), nil
}

func (f *fakeBackend) Acknowledge(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeBackend) Fail(ctx context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[jobID] = message
	return nil
}

func (f *fakeBackend) CompleteTestPrint(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = message
	return nil
}

func (f *fakeBackend) MarkOrderPrinted(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ordersDone = append(f.ordersDone, orderID)
	return nil
}

func (f *fakeBackend) MarkBillPrinted(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.billsDone = append(f.billsDone, orderID)
	return nil
}

func (f *fakeBackend) printerFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printerFn
}

type fakeStore struct {
	mu        sync.Mutex
	printers  []model.Printer
	autoPrint bool
	interval  time.Duration
	lastOrder string
}

func newFakeStore(printers ...model.Printer) *fakeStore {
	return &fakeStore{printers: printers, autoPrint: true, interval: time.Hour}
}

func (s *fakeStore) Printers() []model.Printer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Printer(nil), s.printers...)
}

func (s *fakeStore) EnabledPrinters() []model.Printer {
	var out []model.Printer
	for _, p := range s.Printers() {
		if p.IsEnabled {
			out = append(out, p)
		}
	}
	return out
}

func (s *fakeStore) Replace(printers []model.Printer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printers = printers
	return nil
}

func (s *fakeStore) AutoPrintEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPrint
}

func (s *fakeStore) setAutoPrint(on bool) {
	s.mu.Lock()
	s.autoPrint = on
	s.mu.Unlock()
}

func (s *fakeStore) PollInterval() time.Duration { return s.interval }

func (s *fakeStore) SetLastOrderID(id string) {
	s.mu.Lock()
	s.lastOrder = id
	s.mu.Unlock()
}

func (s *fakeStore) LastOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOrder
}

type sent struct {
	ip   string
	port int
	data []byte
}

// fakeTransport records every send; addresses in down always fail.
type fakeTransport struct {
	mu   sync.Mutex
	sent []sent
	down map[string]bool
}

func (t *fakeTransport) Send(ctx context.Context, ip string, port int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.down[ip] {
		return errors.New("connect: connection refused to " + ip)
	}
	t.sent = append(t.sent, sent{ip: ip, port: port, data: data})
	return nil
}

func (t *fakeTransport) sends() []sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sent(nil), t.sent...)
}

type fakeVoice struct {
	mu        sync.Mutex
	announced []model.PrintJob
}

func (v *fakeVoice) Announce(job model.PrintJob, repeat bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.announced = append(v.announced, job)
	return true
}

func (v *fakeVoice) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.announced)
}

func enabledPrinter(id, name, ip string) model.Printer {
	return model.Printer{ID: model.ID(id), Name: name, IP: ip, Port: 9100, IsEnabled: true}
}
