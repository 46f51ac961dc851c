// Package host implements reader.Engine for a browser-backed panel: audio is
// synthesized on the server and played by the browser tabs attached to the
// panel's websocket room, which report back when a clip ends.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tahcohcat/lector-web/internal/logger"
	"github.com/tahcohcat/lector-web/internal/metrics"
	"github.com/tahcohcat/lector-web/internal/models"
	"github.com/tahcohcat/lector-web/internal/reader"
	"github.com/tahcohcat/lector-web/internal/services"
	"github.com/tahcohcat/lector-web/internal/speech"
	"github.com/tahcohcat/lector-web/internal/websocket"
)

// AudioPathPrefix is where the browser fetches clips from.
const AudioPathPrefix = "/api/v1/audio/"

// Transport delivers messages to the browser tabs of a room.
type Transport interface {
	SendJSON(room string, v interface{}) error
}

// AudioCache is the persistent synthesis cache. services.AudioService implements it.
type AudioCache interface {
	Get(key string) (*models.AudioClip, error)
	Put(clip *models.AudioClip) error
}

// Deps are shared by every engine in the process.
type Deps struct {
	Catalog     *speech.Catalog
	Synthesizer speech.Synthesizer
	Provider    string
	Clips       *ClipStore
	Cache       AudioCache // optional
	Transport   Transport
	Metrics     *metrics.Metrics // optional
	Timeout     time.Duration
}

type inflight struct {
	id     string
	cancel context.CancelFunc
	done   reader.Completion
}

// Engine is the speech engine of one panel.
type Engine struct {
	room string
	deps Deps
	log  *logger.Log

	// base is cancelled by Close and parents every synthesis context.
	base     context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	current *inflight
}

func NewEngine(room string, deps Deps) *Engine {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	base, shutdown := context.WithCancel(context.Background())
	return &Engine{
		room:     room,
		deps:     deps,
		log:      logger.New().WithField("panel", room).WithField("component", "engine"),
		base:     base,
		shutdown: shutdown,
	}
}

func (e *Engine) Voices() []reader.Voice {
	voices := e.deps.Catalog.Voices()
	out := make([]reader.Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, reader.Voice{Name: v.Name, Lang: v.Lang})
	}
	return out
}

func (e *Engine) OnVoicesChanged(fn func()) func() {
	return e.deps.Catalog.Subscribe(fn)
}

// Speak synthesizes u in the background and tells the browser to play it.
// It only fails synchronously when the voice is no longer offered.
func (e *Engine) Speak(u reader.Utterance, done reader.Completion) error {
	voice, ok := e.deps.Catalog.Lookup(u.Voice.Name)
	if !ok {
		return fmt.Errorf("%w: %s", speech.ErrVoiceUnavailable, u.Voice.Name)
	}

	ctx, cancel := context.WithTimeout(e.base, e.deps.Timeout)

	e.mu.Lock()
	if e.current != nil {
		e.current.cancel()
	}
	e.current = &inflight{id: u.ID, cancel: cancel, done: done}
	e.mu.Unlock()

	go e.synthesize(ctx, u, voice)
	return nil
}

// Cancel aborts synthesis in progress and tells the browser to stop audio.
// Calling it with nothing in flight still sends the stop message.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.current != nil {
		e.current.cancel()
		e.deps.Clips.Delete(e.current.id)
		e.current = nil
	}
	e.mu.Unlock()

	if err := e.deps.Transport.SendJSON(e.room, websocket.Message{Type: websocket.TypeCancel}); err != nil {
		e.log.WithError(err).Warn("failed to send cancel")
	}
}

// Replay re-sends play for the current utterance once its clip is ready, for
// tabs that attached after it was first dispatched. It does nothing while
// synthesis is still running; the play goes out when it finishes.
func (e *Engine) Replay() {
	e.mu.Lock()
	var id string
	ready := false
	if e.current != nil {
		id = e.current.id
		_, ready = e.deps.Clips.Get(id)
	}
	e.mu.Unlock()

	if !ready {
		return
	}
	if err := e.sendPlay(id); err != nil {
		e.log.WithError(err).Warn(fmt.Sprintf("failed to replay %s", id))
	}
}

func (e *Engine) sendPlay(id string) error {
	return e.deps.Transport.SendJSON(e.room, websocket.Message{
		Type: websocket.TypePlay,
		ID:   id,
		URL:  AudioPathPrefix + id,
	})
}

// Close cancels everything and refuses further work.
func (e *Engine) Close() {
	e.Cancel()
	e.shutdown()
}

// HandleClientEvent processes a message a browser tab sent for this room.
func (e *Engine) HandleClientEvent(data []byte) error {
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid client message: %w", err)
	}

	switch msg.Type {
	case websocket.TypeEnded:
		if done := e.finish(msg.ID); done != nil {
			e.sessionEvent("completed")
			done.Complete(msg.ID)
		}
	case websocket.TypeError:
		if done := e.finish(msg.ID); done != nil {
			e.sessionEvent("failed")
			reason := msg.Error
			if reason == "" {
				reason = "browser could not play audio"
			}
			done.Fail(msg.ID, errors.New(reason))
		}
	default:
		return fmt.Errorf("unknown client message type %q", msg.Type)
	}
	return nil
}

// finish detaches the utterance id if it is the current one.
func (e *Engine) finish(id string) reader.Completion {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.id != id {
		return nil
	}
	cur := e.current
	e.current = nil
	cur.cancel()
	e.deps.Clips.Delete(id)
	return cur.done
}

func (e *Engine) isCurrent(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.id == id
}

func (e *Engine) synthesize(ctx context.Context, u reader.Utterance, voice speech.Voice) {
	start := time.Now()
	audio, err := e.render(ctx, u.Text, voice)
	if err != nil {
		if !e.isCurrent(u.ID) {
			// cancelled or replaced while rendering
			return
		}
		e.providerError("synthesize")
		e.log.WithError(err).Warn(fmt.Sprintf("synthesis failed for %s", u.ID))
		if done := e.finish(u.ID); done != nil {
			e.sessionEvent("failed")
			done.Fail(u.ID, err)
		}
		return
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveSynthesis(time.Since(start))
	}

	e.mu.Lock()
	if e.current == nil || e.current.id != u.ID {
		e.mu.Unlock()
		return
	}
	e.deps.Clips.Put(u.ID, Clip{Room: e.room, Audio: audio})
	e.mu.Unlock()

	if err := e.sendPlay(u.ID); err != nil {
		if done := e.finish(u.ID); done != nil {
			e.sessionEvent("failed")
			done.Fail(u.ID, err)
		}
		return
	}
	e.sessionEvent("dispatched")
}

// render returns cached audio when possible and synthesizes otherwise.
func (e *Engine) render(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error) {
	key := services.CacheKey(e.deps.Provider, voice.ID, text)

	if e.deps.Cache != nil {
		clip, err := e.deps.Cache.Get(key)
		switch {
		case err == nil:
			e.cacheResult("hit")
			return speech.Audio{Data: clip.Audio, ContentType: clip.ContentType}, nil
		case errors.Is(err, services.ErrNotFound):
			e.cacheResult("miss")
		default:
			e.log.WithError(err).Warn("audio cache lookup failed")
			e.cacheResult("error")
		}
	}

	audio, err := e.deps.Synthesizer.Synthesize(ctx, text, voice)
	if err != nil {
		return speech.Audio{}, err
	}
	if len(audio.Data) == 0 {
		return speech.Audio{}, speech.ErrEmptyAudio
	}

	if e.deps.Cache != nil {
		err := e.deps.Cache.Put(&models.AudioClip{
			CacheKey:    key,
			Provider:    e.deps.Provider,
			VoiceID:     voice.ID,
			ContentType: audio.ContentType,
			Audio:       audio.Data,
		})
		if err != nil {
			e.log.WithError(err).Warn("failed to cache audio")
		}
	}
	return audio, nil
}

func (e *Engine) sessionEvent(event string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.SessionEvent(event)
	}
}

func (e *Engine) cacheResult(result string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.AudioCache.WithLabelValues(result).Inc()
	}
}

func (e *Engine) providerError(op string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.ProviderErrors.WithLabelValues(e.deps.Provider, op).Inc()
	}
}
