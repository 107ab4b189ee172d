package services

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/thermal"
)

func testEncoder() *escpos.Encoder {
	return &escpos.Encoder{
		RestaurantName: "RESTORANK",
		Now:            func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) },
	}
}

func mustJob(t *testing.T, payload string) model.PrintJob {
	t.Helper()
	var job model.PrintJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	return job
}

func hasLine(data []byte, want string) bool {
	for _, l := range escpos.Text(data) {
		if l == want {
			return true
		}
	}
	return false
}

const scenarioJob = `{"id":"j1","type":"kot","orderId":"ORD123456","tableName":"T4",
	"items":[{"name":"Fried Rice","quantity":2}]}`

func TestRunCycle_RoutesKitchenTicketWithoutPrinterIP(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{mustJob(t, scenarioJob)}
	store := newFakeStore(enabledPrinter("P1", "", "10.0.0.1"))
	transport := &fakeTransport{}
	voice := &fakeVoice{}

	o := NewOrchestrator(backend, store, transport, testEncoder(), voice)
	o.RunCycle(context.Background())

	sends := transport.sends()
	if len(sends) != 1 {
		t.Fatalf("Expected exactly one receipt, got %d", len(sends))
	}
	if sends[0].ip != "10.0.0.1" || sends[0].port != 9100 {
		t.Errorf("Expected receipt for P1 at 10.0.0.1:9100, got %s:%d", sends[0].ip, sends[0].port)
	}
	for _, want := range []string{"Order: #123456", "Table: T4", "2x Fried Rice"} {
		if !hasLine(sends[0].data, want) {
			t.Errorf("Expected line %q in receipt", want)
		}
	}

	if len(backend.acked) != 1 || backend.acked[0] != "j1" {
		t.Errorf("Expected acknowledge for j1, got %v", backend.acked)
	}
	if len(backend.failed) != 0 {
		t.Errorf("Expected no failures, got %v", backend.failed)
	}
	if store.LastOrderID() != "ORD123456" {
		t.Errorf("Expected last order ORD123456, got %q", store.LastOrderID())
	}
	if voice.count() != 1 {
		t.Errorf("Expected one announcement, got %d", voice.count())
	}
}

func TestRunCycle_UnreachablePrinterFailsAndIsNotResent(t *testing.T) {
	job := mustJob(t, scenarioJob)
	job.PrinterIP = "10.0.0.99"

	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{job}

	var (
		mu    sync.Mutex
		dials int
	)
	sender := &thermal.Sender{
		Attempts:   3,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			return nil, errors.New("no route to host")
		},
	}

	o := NewOrchestrator(backend, newFakeStore(), sender, testEncoder(), nil)
	o.RunCycle(context.Background())
	o.RunCycle(context.Background())

	if dials != 3 {
		t.Errorf("Expected 3 connection attempts in total, got %d", dials)
	}
	msg, ok := backend.failed["j1"]
	if !ok || msg == "" {
		t.Fatalf("Expected fail report with a message for j1, got %v", backend.failed)
	}
	if !strings.Contains(msg, "no route to host") {
		t.Errorf("Expected underlying error in message, got %q", msg)
	}
	if len(backend.acked) != 0 {
		t.Errorf("Expected no acknowledgement, got %v", backend.acked)
	}
}

func TestRunCycle_DeduplicatesAcrossCycles(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{
		mustJob(t, `{"id":"b1","type":"bill","orderId":"o1","printerIp":"10.0.0.5","items":[{"name":"Tea","price":"2"}]}`),
		mustJob(t, `{"id":"k1","orderId":"o2","printerIp":"10.0.0.6","items":[{"name":"Rice"}]}`),
	}
	transport := &fakeTransport{}

	o := NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil)
	for i := 0; i < 3; i++ {
		o.RunCycle(context.Background())
	}

	if n := len(transport.sends()); n != 2 {
		t.Errorf("Expected each job printed once, got %d sends", n)
	}
	if len(backend.acked) != 2 {
		t.Errorf("Expected 2 acknowledgements, got %v", backend.acked)
	}
}

func TestRunCycle_SameIDInDifferentNamespaces(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{
		mustJob(t, `{"id":"42","type":"kot","printerIp":"10.0.0.5","items":[{"name":"Rice"}]}`),
		mustJob(t, `{"id":"42","type":"bill","printerIp":"10.0.0.5","items":[{"name":"Rice"}]}`),
	}
	transport := &fakeTransport{}

	NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil).RunCycle(context.Background())

	if n := len(transport.sends()); n != 2 {
		t.Errorf("Expected kitchen and bill namespaces to be independent, got %d sends", n)
	}
}

func TestRunCycle_NoDestinationFailsWithoutTransmission(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{mustJob(t, scenarioJob)}
	transport := &fakeTransport{}
	voice := &fakeVoice{}

	NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), voice).RunCycle(context.Background())

	if backend.failed["j1"] != "No printer IP configured" {
		t.Errorf("Expected 'No printer IP configured', got %q", backend.failed["j1"])
	}
	if len(transport.sends()) != 0 {
		t.Error("Expected no transmission")
	}
	if voice.count() != 0 {
		t.Error("Expected no announcement for an unprintable job")
	}
}

func TestRunCycle_BillFallsBackToFirstEnabledPrinter(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{mustJob(t, `{"id":"b9","type":"bill","orderId":"order-1234abcd","items":[{"name":"Mee","price":5}]}`)}
	store := newFakeStore(
		model.Printer{ID: "P0", IP: "10.0.0.1"},
		enabledPrinter("P1", "Cashier", "10.0.0.2"),
		enabledPrinter("P2", "Kitchen", "10.0.0.3"),
	)
	transport := &fakeTransport{}
	voice := &fakeVoice{}

	NewOrchestrator(backend, store, transport, testEncoder(), voice).RunCycle(context.Background())

	sends := transport.sends()
	if len(sends) != 1 || sends[0].ip != "10.0.0.2" {
		t.Fatalf("Expected bill on first enabled printer, got %+v", sends)
	}
	if !hasLine(sends[0].data, "Order: #1234ABCD") {
		t.Error("Expected upper-cased bill order number")
	}
	if voice.count() != 0 {
		t.Error("Expected bills not to be announced")
	}
}

func TestRunCycle_PartialRoutingFailureFailsJob(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{mustJob(t, `{"id":"k5","orderId":"o5",
		"items":[{"name":"Satay","printerId":"A"},{"name":"Beer","printerId":"B"}]}`)}
	store := newFakeStore(enabledPrinter("A", "Grill", "10.0.0.1"), enabledPrinter("B", "Bar", "10.0.0.2"))
	transport := &fakeTransport{down: map[string]bool{"10.0.0.2": true}}

	NewOrchestrator(backend, store, transport, testEncoder(), nil).RunCycle(context.Background())

	if len(transport.sends()) != 1 {
		t.Errorf("Expected the reachable printer to still print, got %d sends", len(transport.sends()))
	}
	if !strings.Contains(backend.failed["k5"], "10.0.0.2") {
		t.Errorf("Expected fail report naming the unreachable printer, got %q", backend.failed["k5"])
	}
	if len(backend.acked) != 0 {
		t.Errorf("Expected no acknowledgement, got %v", backend.acked)
	}
}

func TestRunCycle_SkipsEmptyAndUnknownJobs(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{
		mustJob(t, `{"id":"","printerIp":"10.0.0.1","items":[{"name":"x"}]}`),
		mustJob(t, `{"id":"r1","type":"receipt","printerIp":"10.0.0.1","items":[{"name":"x"}]}`),
		mustJob(t, `{"id":"k1","printerIp":"10.0.0.1","items":[{"name":"x"}]}`),
	}
	transport := &fakeTransport{}

	NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil).RunCycle(context.Background())

	if len(transport.sends()) != 1 {
		t.Errorf("Expected only k1 printed, got %d sends", len(transport.sends()))
	}
	if len(backend.acked) != 1 || backend.acked[0] != "k1" {
		t.Errorf("Expected only k1 acknowledged, got %v", backend.acked)
	}
}

func TestRunCycle_FetchFailureStillPollsTestPrints(t *testing.T) {
	backend := newFakeBackend()
	backend.fetchErr = &model.RemoteServiceError{Op: "fetch print jobs", StatusCode: 503}
	backend.tests = []model.TestPrintRequest{{ID: "t1", PrinterName: "Bar", NetworkIP: "10.0.0.8"}}
	transport := &fakeTransport{}

	NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil).RunCycle(context.Background())

	sends := transport.sends()
	if len(sends) != 1 || sends[0].ip != "10.0.0.8" || sends[0].port != 9100 {
		t.Fatalf("Expected test receipt to 10.0.0.8:9100, got %+v", sends)
	}
	if !hasLine(sends[0].data, "Printer: Bar") {
		t.Error("Expected printer name on test receipt")
	}
	if msg, ok := backend.completed["t1"]; !ok || msg != "" {
		t.Errorf("Expected successful completion for t1, got %q (reported=%v)", msg, ok)
	}
}

func TestRunCycle_TestPrints(t *testing.T) {
	backend := newFakeBackend()
	backend.tests = []model.TestPrintRequest{
		{ID: "t1", NetworkIP: ""},
		{ID: "t2", NetworkIP: "10.0.0.9"},
	}
	transport := &fakeTransport{down: map[string]bool{"10.0.0.9": true}}

	o := NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil)
	o.RunCycle(context.Background())
	o.RunCycle(context.Background())

	if backend.completed["t1"] != "No IP address configured" {
		t.Errorf("Expected missing IP error for t1, got %q", backend.completed["t1"])
	}
	if !strings.Contains(backend.completed["t2"], "connection refused") {
		t.Errorf("Expected transport error for t2, got %q", backend.completed["t2"])
	}
	if backend.testFetches != 2 {
		t.Errorf("Expected test prints fetched every cycle, got %d", backend.testFetches)
	}
	if len(backend.completed) != 2 {
		t.Errorf("Expected each test print completed once, got %v", backend.completed)
	}
}

func TestRunCycle_SyncsPrintersEveryTenthCycle(t *testing.T) {
	backend := newFakeBackend()
	backend.printers = []model.Printer{enabledPrinter("P1", "Kitchen", "10.0.0.1")}
	store := newFakeStore()

	o := NewOrchestrator(backend, store, &fakeTransport{}, testEncoder(), nil)
	for i := 0; i < SyncEvery-1; i++ {
		o.RunCycle(context.Background())
	}
	time.Sleep(20 * time.Millisecond)
	if n := backend.printerFetches(); n != 0 {
		t.Fatalf("Expected no sync before cycle %d, got %d", SyncEvery, n)
	}

	o.RunCycle(context.Background())
	waitUntil(t, func() bool { return len(store.EnabledPrinters()) == 1 })
	if n := backend.printerFetches(); n != 1 {
		t.Errorf("Expected one sync, got %d", n)
	}
}

func TestRun_WakeAndStop(t *testing.T) {
	backend := newFakeBackend()
	store := newFakeStore()
	o := NewOrchestrator(backend, store, &fakeTransport{}, testEncoder(), nil)

	done := make(chan struct{})
	go func() {
		o.Run(context.Background())
		close(done)
	}()

	waitUntil(t, func() bool { return o.Status().Cycles == 1 })
	if !o.Status().Polling {
		t.Error("Expected polling status while running")
	}

	o.Wake()
	waitUntil(t, func() bool { return o.Status().Cycles == 2 })

	o.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return after Stop")
	}
	if o.Status().Polling {
		t.Error("Expected polling status cleared")
	}
}

func TestRun_StopsWhenAutoPrintDisabled(t *testing.T) {
	store := newFakeStore()
	store.interval = time.Millisecond
	o := NewOrchestrator(newFakeBackend(), store, &fakeTransport{}, testEncoder(), nil)

	done := make(chan struct{})
	go func() {
		o.Run(context.Background())
		close(done)
	}()

	waitUntil(t, func() bool { return o.Status().Cycles >= 1 })
	store.setAutoPrint(false)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return once auto print is disabled")
	}
}

func TestRun_NotStartedWithoutAutoPrint(t *testing.T) {
	store := newFakeStore()
	store.autoPrint = false
	o := NewOrchestrator(newFakeBackend(), store, &fakeTransport{}, testEncoder(), nil)

	o.Run(context.Background())
	if o.Status().Cycles != 0 {
		t.Error("Expected no cycles when auto print is off")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStart_OnlyOneLoop(t *testing.T) {
	o := NewOrchestrator(newFakeBackend(), newFakeStore(), &fakeTransport{}, testEncoder(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !o.Start(ctx) {
		t.Fatal("Expected first Start to launch the loop")
	}
	if o.Start(ctx) {
		t.Error("Expected second Start to be rejected while polling")
	}

	cancel()
	waitUntil(t, func() bool { return !o.Status().Polling })
}

func TestRunCycle_MalformedJobDoesNotBlockOthers(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs = []model.PrintJob{
		mustJob(t, `{"id":"good1","printerIp":"10.0.0.1","orderId":"A","tableName":4,"items":[{"name":"Tea"}]}`),
		model.MalformedJob("bad", errors.New("cannot unmarshal string into items")),
		mustJob(t, `{"id":"good2","type":"bill","printerIp":"10.0.0.1","items":[{"name":"Tea","price":"2"}]}`),
	}
	transport := &fakeTransport{}
	o := NewOrchestrator(backend, newFakeStore(), transport, testEncoder(), nil)

	o.RunCycle(context.Background())

	if len(backend.acked) != 2 || backend.acked[0] != "good1" || backend.acked[1] != "good2" {
		t.Errorf("Expected both decodable jobs acknowledged, got %v", backend.acked)
	}
	if !strings.Contains(backend.failed["bad"], "malformed print job") {
		t.Errorf("Expected bad job failed with a format error, got %q", backend.failed["bad"])
	}
	if len(transport.sends()) != 2 {
		t.Errorf("Expected two receipts, got %d", len(transport.sends()))
	}
	if !hasLine(transport.sends()[0].data, "Table: 4") {
		t.Error("Expected numeric table name printed as text")
	}

	// The server keeps returning the batch; nothing is reported twice.
	o.RunCycle(context.Background())
	if len(backend.acked) != 2 || len(backend.failed) != 1 || len(transport.sends()) != 2 {
		t.Errorf("Expected no reprocessing, got acked=%v failed=%v", backend.acked, backend.failed)
	}
}

func TestRun_NoCycleAfterAutoPrintDisabledDuringWait(t *testing.T) {
	store := newFakeStore()
	store.interval = 300 * time.Millisecond
	o := NewOrchestrator(newFakeBackend(), store, &fakeTransport{}, testEncoder(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !o.Start(ctx) {
		t.Fatal("Expected the loop to start")
	}

	waitUntil(t, func() bool { return o.Status().Cycles == 1 })
	store.setAutoPrint(false)

	time.Sleep(600 * time.Millisecond)
	status := o.Status()
	if status.Cycles != 1 {
		t.Errorf("Expected no cycle after auto print was disabled, got %d cycles", status.Cycles)
	}
	if status.Polling {
		t.Error("Expected polling to stop once the wait ended")
	}
}

func TestStart_AfterLoopReleased(t *testing.T) {
	store := newFakeStore()
	o := NewOrchestrator(newFakeBackend(), store, &fakeTransport{}, testEncoder(), nil)

	if !o.claim() {
		t.Fatal("Expected claim to succeed")
	}
	if o.release() {
		t.Fatal("Expected the loop to keep running while auto print is on")
	}

	store.setAutoPrint(false)
	if !o.release() {
		t.Fatal("Expected release once auto print is off")
	}
	if o.Status().Polling {
		t.Error("Expected polling cleared by release")
	}

	// Re-enabled right after the loop let go: a new loop must start.
	store.setAutoPrint(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !o.Start(ctx) {
		t.Error("Expected Start to launch a new loop after release")
	}
	cancel()
	waitUntil(t, func() bool { return !o.Status().Polling })
}
