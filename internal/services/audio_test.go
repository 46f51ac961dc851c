package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahcohcat/lector-web/internal/database"
	"github.com/tahcohcat/lector-web/internal/models"
)

func newTestService(t *testing.T, maxEntries int) *AudioService {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAudioService(db, maxEntries)
}

func TestAudioServiceRoundTrip(t *testing.T) {
	s := newTestService(t, 0)
	key := CacheKey("dummy", "voice", "Hello world")

	_, err := s.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(&models.AudioClip{
		CacheKey:    key,
		Provider:    "dummy",
		VoiceID:     "voice",
		ContentType: "audio/wav",
		Audio:       []byte("RIFF...."),
	}))

	clip, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF...."), clip.Audio)
	assert.Equal(t, "audio/wav", clip.ContentType)
	assert.Equal(t, 8, clip.Size)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(8), stats.Bytes)
}

func TestAudioServicePrunesOldest(t *testing.T) {
	s := newTestService(t, 2)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.Put(&models.AudioClip{
			CacheKey:    CacheKey("p", "v", text),
			Provider:    "p",
			VoiceID:     "v",
			ContentType: "audio/mpeg",
			Audio:       []byte(text),
		}))
		time.Sleep(5 * time.Millisecond)
	}

	_, err := s.Get(CacheKey("p", "v", "one"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(CacheKey("p", "v", "three"))
	assert.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
}

func TestCacheKeySeparatesFields(t *testing.T) {
	assert.NotEqual(t, CacheKey("ab", "c", "d"), CacheKey("a", "bc", "d"))
	assert.Equal(t, CacheKey("a", "b", "c"), CacheKey("a", "b", "c"))
}
