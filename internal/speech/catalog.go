package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/closestmatch"

	"github.com/tahcohcat/lector-web/internal/logger"
)

// VoiceLister is the part of a Synthesizer the catalog needs.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Catalog caches a provider's voice list and tells subscribers when it changes.
type Catalog struct {
	lister VoiceLister
	logger *logger.Log

	mu      sync.RWMutex
	voices  []Voice
	matcher *closestmatch.ClosestMatch

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func NewCatalog(lister VoiceLister) *Catalog {
	return &Catalog{
		lister: lister,
		logger: logger.New().WithField("component", "catalog"),
		subs:   make(map[int]func()),
	}
}

// Voices returns the cached list in provider order.
func (c *Catalog) Voices() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// Lookup finds a voice by its display name.
func (c *Catalog) Lookup(name string) (Voice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// Suggest returns the voice name closest to query, or "" when the catalog is empty.
func (c *Catalog) Suggest(query string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.matcher == nil || query == "" {
		return ""
	}
	return c.matcher.Closest(query)
}

// Subscribe registers fn to run after every change of the voice list.
func (c *Catalog) Subscribe(fn func()) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Refresh re-reads the provider's voices. Subscribers are notified only when
// the list differs from the cached one.
func (c *Catalog) Refresh(ctx context.Context) (bool, error) {
	voices, err := c.lister.ListVoices(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to refresh voices: %w", err)
	}

	c.mu.Lock()
	if sameVoices(c.voices, voices) {
		c.mu.Unlock()
		return false, nil
	}
	c.voices = append([]Voice(nil), voices...)
	c.matcher = nil
	if len(voices) > 0 {
		names := make([]string, 0, len(voices))
		for _, v := range voices {
			names = append(names, v.Name)
		}
		c.matcher = closestmatch.New(names, []int{2, 3})
	}
	c.mu.Unlock()

	c.logger.Info(fmt.Sprintf("voice list changed: %d voices", len(voices)))
	c.notify()
	return true, nil
}

// Run refreshes the catalog every interval until ctx is done. Refresh errors
// are logged and the previous list is kept.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				c.logger.WithError(err).Warn("voice refresh failed")
			}
		}
	}
}

func (c *Catalog) notify() {
	c.subMu.Lock()
	subs := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func sameVoices(a, b []Voice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
