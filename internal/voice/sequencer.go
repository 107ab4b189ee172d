package voice

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

const (
	TagInitial = "kot_initial"
	TagRepeat  = "kot_repeat"

	DefaultBeepLead    = 500 * time.Millisecond
	DefaultRepeatDelay = 3 * time.Second
)

// Utterance is one request to the speech engine. Seq identifies the
// announcement it belongs to.
type Utterance struct {
	Tag  string
	Text string
	Seq  uint64
}

// Engine speaks text. Speak must not block; the engine calls report exactly
// once when the utterance finished or failed.
type Engine interface {
	Speak(u Utterance, report func(Utterance, error))
}

// Beeper plays the short notification tone.
type Beeper interface {
	Beep() error
}

// Settings are fixed for the lifetime of a Sequencer.
type Settings struct {
	Enabled     bool
	Role        model.DeviceRole
	BeepLead    time.Duration
	RepeatDelay time.Duration
}

type state int

const (
	stateIdle state = iota
	stateAwaitingInitial
	stateAwaitingRepeat
)

func (s state) String() string {
	switch s {
	case stateAwaitingInitial:
		return "awaiting-initial"
	case stateAwaitingRepeat:
		return "awaiting-repeat"
	}
	return "idle"
}

type step int

const (
	stepSpeakInitial step = iota
	stepRepeatBeep
	stepSpeakRepeat
)

type event struct {
	announce bool
	text     string
	repeat   bool

	timer bool
	seq   uint64
	step  step

	done bool
	utt  Utterance
	err  error
}

// Sequencer drives beep, speak and a single delayed repeat for kitchen
// announcements. All state lives in the Run goroutine; timers and engine
// reports reach it as events. A new announcement supersedes the one in
// flight and events of the old one are ignored.
type Sequencer struct {
	settings Settings
	engine   Engine
	beeper   Beeper
	events   chan event
	quit     chan struct{}
	logger   zerolog.Logger

	// owned by Run
	state  state
	seq    uint64
	text   string
	repeat bool
}

func NewSequencer(settings Settings, engine Engine, beeper Beeper) *Sequencer {
	if settings.BeepLead <= 0 {
		settings.BeepLead = DefaultBeepLead
	}
	if settings.RepeatDelay <= 0 {
		settings.RepeatDelay = DefaultRepeatDelay
	}
	return &Sequencer{
		settings: settings,
		engine:   engine,
		beeper:   beeper,
		events:   make(chan event, 16),
		quit:     make(chan struct{}),
		logger:   observability.Component("voice"),
	}
}

// Active reports whether announcements can be spoken at all.
func (s *Sequencer) Active() bool {
	return s != nil && s.settings.Enabled && s.settings.Role == model.RoleKitchen && s.engine != nil
}

// Announce queues the announcement for a kitchen ticket and returns whether
// anything will be spoken. It never blocks the caller.
func (s *Sequencer) Announce(job model.PrintJob, repeat bool) bool {
	if !s.Active() {
		return false
	}
	if Suppressed(job.EventType) {
		s.logger.Debug().Str("event_type", job.EventType).Msg("Skipping voice for event type")
		observability.RecordAnnouncement("suppressed")
		return false
	}
	text := BuildAnnouncement(job)
	if text == "" {
		observability.RecordAnnouncement("skipped")
		return false
	}

	select {
	case s.events <- event{announce: true, text: text, repeat: repeat}:
		s.logger.Debug().Str("text", text).Msg("KOT voice announcement queued")
		return true
	default:
		s.logger.Warn().Msg("Voice queue full, dropping announcement")
		observability.RecordAnnouncement("dropped")
		return false
	}
}

// Run processes events until ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context) {
	defer close(s.quit)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Sequencer) handle(ev event) {
	switch {
	case ev.announce:
		s.seq++
		s.text, s.repeat = ev.text, ev.repeat
		s.state = stateAwaitingInitial
		s.beep()
		s.after(s.settings.BeepLead, stepSpeakInitial)

	case ev.timer:
		if ev.seq != s.seq {
			return
		}
		switch ev.step {
		case stepSpeakInitial:
			s.speak(TagInitial)
		case stepRepeatBeep:
			s.beep()
			s.after(s.settings.BeepLead, stepSpeakRepeat)
		case stepSpeakRepeat:
			s.speak(TagRepeat)
		}

	case ev.done:
		if ev.utt.Seq != s.seq {
			return
		}
		s.finished(ev.utt, ev.err)
	}
}

func (s *Sequencer) finished(u Utterance, err error) {
	switch {
	case s.state == stateAwaitingInitial && u.Tag == TagInitial:
		if err != nil {
			s.logger.Error().Err(err).Str("utterance", u.Tag).Msg("Speech failed, cancelling repeat")
			observability.RecordAnnouncement("failed")
			s.state = stateIdle
			return
		}
		observability.RecordAnnouncement("spoken")
		if !s.repeat {
			s.state = stateIdle
			return
		}
		s.state = stateAwaitingRepeat
		s.after(s.settings.RepeatDelay, stepRepeatBeep)

	case s.state == stateAwaitingRepeat && u.Tag == TagRepeat:
		if err != nil {
			s.logger.Error().Err(err).Str("utterance", u.Tag).Msg("Speech failed")
			observability.RecordAnnouncement("failed")
		} else {
			observability.RecordAnnouncement("spoken")
		}
		s.state = stateIdle
	}
}

func (s *Sequencer) speak(tag string) {
	s.logger.Debug().Str("utterance", tag).Str("text", s.text).Msg("Speaking")
	s.engine.Speak(Utterance{Tag: tag, Text: s.text, Seq: s.seq}, s.report)
}

func (s *Sequencer) report(u Utterance, err error) {
	select {
	case s.events <- event{done: true, utt: u, err: err}:
	case <-s.quit:
	}
}

func (s *Sequencer) after(d time.Duration, st step) {
	seq := s.seq
	time.AfterFunc(d, func() {
		select {
		case s.events <- event{timer: true, seq: seq, step: st}:
		case <-s.quit:
		}
	})
}

func (s *Sequencer) beep() {
	if s.beeper == nil {
		return
	}
	if err := s.beeper.Beep(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to play beep")
	}
}
