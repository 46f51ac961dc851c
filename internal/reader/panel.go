// Package reader implements the document reader panel: a loaded text
// document, the voice picker and a single Idle|Playing playback session.
package reader

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tahcohcat/lector-web/internal/logger"
)

// Observer is told about every panel change.
type Observer interface {
	PanelChanged(v View)
}

type Options struct {
	Policy   ReselectPolicy
	Observer Observer
	// ID names the panel in logs.
	ID string

	newID func() string
	now   func() time.Time
}

// Panel is one reader panel. Operations are serialized, so callers observe
// them in the order they were applied.
//
// Engine.Speak and Engine.Cancel are invoked while the panel lock is held;
// engines must not block in them or call back into the panel synchronously.
type Panel struct {
	mu sync.Mutex

	id       string
	engine   Engine
	observer Observer
	log      *logger.Log

	doc      Document
	voices   *Registry
	playback Controller
	banner   string
	epoch    string
	rev      uint64

	newID       func() string
	now         func() time.Time
	unsubscribe func()
}

// New creates a panel bound to engine, enumerates voices and subscribes to
// voice-list changes.
func New(engine Engine, opts Options) *Panel {
	p := &Panel{
		id:       opts.ID,
		engine:   engine,
		observer: opts.Observer,
		log:      logger.New().WithField("panel", opts.ID),
		voices:   NewRegistry(opts.Policy),
		epoch:    uuid.NewString(),
		newID:    opts.newID,
		now:      opts.now,
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.now == nil {
		p.now = time.Now
	}

	p.RefreshVoices()
	p.unsubscribe = engine.OnVoicesChanged(p.RefreshVoices)
	return p
}

func (p *Panel) ID() string {
	return p.id
}

// LoadDocument decodes r and makes it the active document. A nil reader means
// the user picked nothing and leaves the panel untouched.
func (p *Panel) LoadDocument(name string, r io.Reader) error {
	if r == nil {
		return nil
	}

	text, err := DecodeText(r)

	p.mu.Lock()
	if err != nil {
		p.banner = fmt.Sprintf("Could not read %s", displayName(name))
		v := p.changedLocked()
		p.mu.Unlock()
		p.log.WithError(err).Warn("document load failed")
		p.notify(v)
		return err
	}
	p.doc = Document{Name: name, Text: text}
	p.banner = ""
	v := p.changedLocked()
	p.mu.Unlock()

	p.log.Info(fmt.Sprintf("loaded document %q (%d bytes)", name, len(text)))
	p.notify(v)
	return nil
}

// RefreshVoices re-enumerates the engine's voices and re-derives the selection.
func (p *Panel) RefreshVoices() {
	voices := p.engine.Voices()

	p.mu.Lock()
	p.voices.Replace(voices)
	v := p.changedLocked()
	p.mu.Unlock()

	p.log.Debug(fmt.Sprintf("voice list refreshed: %d voices", len(voices)))
	p.notify(v)
}

// SelectVoice selects the voice called name, or clears the selection when no
// such voice exists. It never affects a session already playing.
func (p *Panel) SelectVoice(name string) bool {
	p.mu.Lock()
	ok := p.voices.Select(name)
	v := p.changedLocked()
	p.mu.Unlock()

	p.notify(v)
	return ok
}

// Play starts reading the document with the selected voice. It reports false
// when the request was dropped: no document, no voice, or already playing.
func (p *Panel) Play() bool {
	p.mu.Lock()
	voice, hasVoice := p.voices.Selected()
	session, ok := p.playback.Start(p.newID(), p.doc, voice, hasVoice, p.now())
	if !ok {
		p.mu.Unlock()
		return false
	}
	p.banner = ""

	err := p.engine.Speak(Utterance{ID: session.ID, Text: session.Text, Voice: session.Voice}, p)
	if err != nil {
		p.playback.Fail(session.ID)
		p.banner = playbackBanner(err)
	}
	v := p.changedLocked()
	p.mu.Unlock()

	if err != nil {
		p.log.WithError(err).Warn("engine refused utterance")
	} else {
		p.log.Info(fmt.Sprintf("session %s started with voice %q", session.ID, session.Voice.Name))
	}
	p.notify(v)
	return err == nil
}

// Stop cancels whatever the engine is doing and returns to Idle. It is safe
// to call when nothing is playing.
func (p *Panel) Stop() {
	p.mu.Lock()
	p.engine.Cancel()
	p.playback.Stop()
	v := p.changedLocked()
	p.mu.Unlock()

	p.notify(v)
}

// Complete is called by the engine when utterance id finished normally.
func (p *Panel) Complete(id string) {
	p.mu.Lock()
	if !p.playback.Complete(id) {
		p.mu.Unlock()
		p.log.Debug(fmt.Sprintf("ignoring completion of stale session %s", id))
		return
	}
	v := p.changedLocked()
	p.mu.Unlock()

	p.log.Info(fmt.Sprintf("session %s completed", id))
	p.notify(v)
}

// Fail is called by the engine when utterance id could not be played.
func (p *Panel) Fail(id string, err error) {
	p.mu.Lock()
	if !p.playback.Fail(id) {
		p.mu.Unlock()
		p.log.WithError(err).Debug(fmt.Sprintf("ignoring failure of stale session %s", id))
		return
	}
	p.banner = playbackBanner(err)
	v := p.changedLocked()
	p.mu.Unlock()

	p.log.WithError(err).Warn(fmt.Sprintf("session %s failed", id))
	p.notify(v)
}

// View returns a snapshot of the panel for rendering.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return deriveView(p.epoch, p.rev, p.doc, p.voices, &p.playback, p.banner)
}

// Close stops playback and drops the voice-list subscription.
func (p *Panel) Close() {
	p.mu.Lock()
	p.engine.Cancel()
	p.playback.Stop()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (p *Panel) changedLocked() View {
	p.rev++
	return deriveView(p.epoch, p.rev, p.doc, p.voices, &p.playback, p.banner)
}

func (p *Panel) notify(v View) {
	if p.observer != nil {
		p.observer.PanelChanged(v)
	}
}

func playbackBanner(err error) string {
	if err == nil {
		return "Playback failed"
	}
	return "Playback failed: " + err.Error()
}

func displayName(name string) string {
	if name == "" {
		return "the document"
	}
	return name
}
