package voice

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
)

// fakeEngine records utterances. With hold set, reports are kept until
// release is called; otherwise they are delivered right away.
type fakeEngine struct {
	mu      sync.Mutex
	spoken  []Utterance
	fail    map[string]error
	hold    bool
	pending []func()
}

func (f *fakeEngine) Speak(u Utterance, report func(Utterance, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, u)
	err := f.fail[u.Tag]
	if f.hold {
		f.pending = append(f.pending, func() { report(u, err) })
		return
	}
	go report(u, err)
}

func (f *fakeEngine) utterances() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.spoken...)
}

func (f *fakeEngine) release() {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.hold = false
	f.mu.Unlock()
	for _, p := range pending {
		p()
	}
}

type countingBeeper struct {
	mu    sync.Mutex
	beeps int
}

func (b *countingBeeper) Beep() error {
	b.mu.Lock()
	b.beeps++
	b.mu.Unlock()
	return nil
}

func (b *countingBeeper) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beeps
}

func startSequencer(t *testing.T, engine Engine, beeper Beeper) *Sequencer {
	t.Helper()
	s := NewSequencer(Settings{
		Enabled:     true,
		Role:        model.RoleKitchen,
		BeepLead:    time.Millisecond,
		RepeatDelay: 10 * time.Millisecond,
	}, engine, beeper)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
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

func kitchenJob(table string) model.PrintJob {
	return model.PrintJob{
		ID:        model.ID("job-" + table),
		TableName: table,
		Items:     []model.LineItem{{Name: "Fried Rice", Quantity: model.NewInt(2)}},
	}
}

func TestSequencer_SpeaksInitialThenExactlyOneRepeat(t *testing.T) {
	engine := &fakeEngine{}
	beeper := &countingBeeper{}
	s := startSequencer(t, engine, beeper)

	if !s.Announce(kitchenJob("T4"), true) {
		t.Fatal("Expected announcement to be queued")
	}

	waitFor(t, func() bool { return len(engine.utterances()) == 2 })
	time.Sleep(50 * time.Millisecond)

	got := engine.utterances()
	if len(got) != 2 {
		t.Fatalf("Expected exactly 2 utterances, got %d", len(got))
	}
	if got[0].Tag != TagInitial || got[1].Tag != TagRepeat {
		t.Errorf("Expected initial then repeat, got %s then %s", got[0].Tag, got[1].Tag)
	}
	if got[0].Text != "Table T4. 2 Fried Rice." || got[1].Text != got[0].Text {
		t.Errorf("Unexpected texts %q / %q", got[0].Text, got[1].Text)
	}
	if beeper.count() != 2 {
		t.Errorf("Expected a beep before each utterance, got %d", beeper.count())
	}
}

func TestSequencer_NoRepeatWhenNotRequested(t *testing.T) {
	engine := &fakeEngine{}
	s := startSequencer(t, engine, &countingBeeper{})

	s.Announce(kitchenJob("T1"), false)

	waitFor(t, func() bool { return len(engine.utterances()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := len(engine.utterances()); n != 1 {
		t.Errorf("Expected a single utterance, got %d", n)
	}
}

func TestSequencer_ErrorOnInitialCancelsRepeat(t *testing.T) {
	engine := &fakeEngine{fail: map[string]error{TagInitial: errors.New("audio device busy")}}
	s := startSequencer(t, engine, &countingBeeper{})

	s.Announce(kitchenJob("T2"), true)

	waitFor(t, func() bool { return len(engine.utterances()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := len(engine.utterances()); n != 1 {
		t.Errorf("Expected repeat to be cancelled, got %d utterances", n)
	}
}

func TestSequencer_NewAnnouncementSupersedes(t *testing.T) {
	engine := &fakeEngine{hold: true}
	s := startSequencer(t, engine, &countingBeeper{})

	s.Announce(kitchenJob("OLD"), true)
	waitFor(t, func() bool { return len(engine.utterances()) == 1 })

	s.Announce(kitchenJob("NEW"), true)
	waitFor(t, func() bool { return len(engine.utterances()) == 2 })

	// Both held initial reports arrive now; only the newest may repeat.
	engine.release()

	waitFor(t, func() bool { return len(engine.utterances()) == 3 })
	time.Sleep(50 * time.Millisecond)

	got := engine.utterances()
	if len(got) != 3 {
		t.Fatalf("Expected 3 utterances, got %d", len(got))
	}
	if got[2].Tag != TagRepeat || got[2].Text != "Table NEW. 2 Fried Rice." {
		t.Errorf("Expected repeat of the newest announcement, got %+v", got[2])
	}
}

func TestSequencer_Suppression(t *testing.T) {
	engine := &fakeEngine{}
	s := startSequencer(t, engine, &countingBeeper{})

	j := kitchenJob("T9")
	j.EventType = "payment_completed"
	if s.Announce(j, true) {
		t.Error("Expected payment_completed to be suppressed")
	}

	time.Sleep(30 * time.Millisecond)
	if n := len(engine.utterances()); n != 0 {
		t.Errorf("Expected no speech, got %d utterances", n)
	}
}

func TestSequencer_InactiveSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		engine   Engine
	}{
		{"disabled", Settings{Enabled: false, Role: model.RoleKitchen}, &fakeEngine{}},
		{"cashier role", Settings{Enabled: true, Role: model.RoleCashier}, &fakeEngine{}},
		{"no engine", Settings{Enabled: true, Role: model.RoleKitchen}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSequencer(tt.settings, tt.engine, nil)
			if s.Announce(kitchenJob("T1"), true) {
				t.Error("Expected announcement to be rejected")
			}
		})
	}
}

func TestSequencer_EmptyOrderNotSpoken(t *testing.T) {
	s := NewSequencer(Settings{Enabled: true, Role: model.RoleKitchen}, &fakeEngine{}, nil)
	if s.Announce(model.PrintJob{ID: "x"}, true) {
		t.Error("Expected order without items to be skipped")
	}
}

func TestTerminalBeeper(t *testing.T) {
	var buf bytes.Buffer
	if err := (TerminalBeeper{Out: &buf}).Beep(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if buf.String() != "\a" {
		t.Errorf("Expected bell character, got %q", buf.String())
	}
}
