package host

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/tahcohcat/lector-web/internal/speech"
)

// Clip is synthesized audio waiting for a browser to fetch it.
type Clip struct {
	Room  string
	Audio speech.Audio
}

// ClipStore hands synthesized audio to the browser. Entries expire after ttl
// whether or not they were fetched.
type ClipStore struct {
	cache *ttlcache.Cache[string, Clip]
}

func NewClipStore(ttl time.Duration) *ClipStore {
	return &ClipStore{
		cache: ttlcache.New[string, Clip](
			ttlcache.WithTTL[string, Clip](ttl),
			ttlcache.WithDisableTouchOnHit[string, Clip](),
		),
	}
}

// Start runs the expiry loop; it returns after Stop.
func (s *ClipStore) Start() {
	s.cache.Start()
}

func (s *ClipStore) Stop() {
	s.cache.Stop()
}

func (s *ClipStore) Put(id string, clip Clip) {
	s.cache.Set(id, clip, ttlcache.DefaultTTL)
}

func (s *ClipStore) Get(id string) (Clip, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return Clip{}, false
	}
	return item.Value(), true
}

func (s *ClipStore) Delete(id string) {
	s.cache.Delete(id)
}
