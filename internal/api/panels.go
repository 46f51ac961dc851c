package api

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/tahcohcat/lector-web/internal/host"
	"github.com/tahcohcat/lector-web/internal/logger"
	"github.com/tahcohcat/lector-web/internal/reader"
	"github.com/tahcohcat/lector-web/internal/websocket"
)

// Renderer turns panel views into HTML.
type Renderer interface {
	Page(w io.Writer, v reader.View) error
	Panel(v reader.View) (string, error)
}

type panelEntry struct {
	panel  *reader.Panel
	engine *host.Engine
}

// Panels keeps one reader panel per browser session. A panel nobody touched
// for the idle TTL is closed and forgotten; the next request starts afresh.
type Panels struct {
	mu       sync.Mutex
	cache    *ttlcache.Cache[string, *panelEntry]
	deps     host.Deps
	policy   reader.ReselectPolicy
	renderer Renderer
	logger   *logger.Log
}

func NewPanels(idleTTL time.Duration, policy reader.ReselectPolicy, deps host.Deps, renderer Renderer) *Panels {
	p := &Panels{
		cache: ttlcache.New[string, *panelEntry](
			ttlcache.WithTTL[string, *panelEntry](idleTTL),
		),
		deps:     deps,
		policy:   policy,
		renderer: renderer,
		logger:   logger.New().WithField("component", "panels"),
	}

	p.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *panelEntry]) {
		entry := item.Value()
		entry.panel.Close()
		entry.engine.Close()
		if p.deps.Metrics != nil {
			p.deps.Metrics.ActivePanels.Dec()
		}
		if reason == ttlcache.EvictionReasonExpired {
			p.logger.Panel(item.Key(), "panel expired")
		} else {
			p.logger.Panel(item.Key(), "panel closed")
		}
	})
	return p
}

// Start runs the expiry loop until Stop.
func (p *Panels) Start() {
	p.cache.Start()
}

// Stop closes every panel and ends the expiry loop started by Start.
func (p *Panels) Stop() {
	p.cache.DeleteAll()
	p.cache.Stop()
}

// Get returns the panel for id, creating it on first use. Every call counts
// as activity for the idle timeout.
func (p *Panels) Get(id string) *reader.Panel {
	return p.entry(id).panel
}

func (p *Panels) entry(id string) *panelEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item := p.cache.Get(id); item != nil {
		return item.Value()
	}

	engine := host.NewEngine(id, p.deps)
	panel := reader.New(engine, reader.Options{
		ID:       id,
		Policy:   p.policy,
		Observer: &roomObserver{room: id, panels: p},
	})
	entry := &panelEntry{panel: panel, engine: engine}
	p.cache.Set(id, entry, ttlcache.DefaultTTL)

	if p.deps.Metrics != nil {
		p.deps.Metrics.ActivePanels.Inc()
	}
	p.logger.Panel(id, "panel opened")
	return entry
}

// ClientJoined pushes the current state to a freshly connected tab and
// repeats the play instruction of an utterance already waiting in the browser.
func (p *Panels) ClientJoined(room string) {
	entry := p.entry(room)
	p.pushState(room, entry.panel.View())
	entry.engine.Replay()
}

// ClientMessage routes playback events from the browser to the panel's engine.
func (p *Panels) ClientMessage(room string, data []byte) {
	item := p.cache.Get(room)
	if item == nil {
		p.logger.WithField("panel", room).Debug("message for unknown panel dropped")
		return
	}

	if err := item.Value().engine.HandleClientEvent(data); err != nil {
		p.countWS("in", "invalid")
		p.logger.WithField("panel", room).WithError(err).Warn("bad client message")
		return
	}
	p.countWS("in", "event")
}

func (p *Panels) pushState(room string, v reader.View) {
	html, err := p.renderer.Panel(v)
	if err != nil {
		p.logger.WithField("panel", room).WithError(err).Error("failed to render panel")
		return
	}

	err = p.deps.Transport.SendJSON(room, websocket.Message{
		Type:     websocket.TypeState,
		Epoch:    v.Epoch,
		Revision: v.Revision,
		HTML:     html,
	})
	if err != nil {
		p.logger.WithField("panel", room).WithError(err).Warn(fmt.Sprintf("failed to push revision %d", v.Revision))
		return
	}
	p.countWS("out", websocket.TypeState)
}

func (p *Panels) countWS(direction, kind string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.WSMessages.WithLabelValues(direction, kind).Inc()
	}
}

// roomObserver re-renders a panel into its websocket room on every change.
type roomObserver struct {
	room   string
	panels *Panels
}

func (o *roomObserver) PanelChanged(v reader.View) {
	o.panels.pushState(o.room, v)
}

var (
	_ websocket.Dispatcher = (*Panels)(nil)
	_ reader.Observer      = (*roomObserver)(nil)
)
