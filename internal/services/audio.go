package services

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tahcohcat/lector-web/internal/database"
	"github.com/tahcohcat/lector-web/internal/models"
)

var ErrNotFound = errors.New("not found")

// AudioService caches synthesized audio so re-reading a document with the
// same voice does not hit the provider again.
type AudioService struct {
	db         *database.DB
	maxEntries int
}

// NewAudioService creates the service. maxEntries <= 0 disables pruning.
func NewAudioService(db *database.DB, maxEntries int) *AudioService {
	return &AudioService{db: db, maxEntries: maxEntries}
}

// CacheKey identifies a rendition of text by provider and voice.
func CacheKey(provider, voiceID, text string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(voiceID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached clip for key and marks it as recently used.
func (s *AudioService) Get(key string) (*models.AudioClip, error) {
	var clip models.AudioClip
	query := `SELECT * FROM audio_clips WHERE cache_key = ?`

	if err := s.db.Get(&clip, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audio clip: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE audio_clips SET last_used_at = ? WHERE cache_key = ?`, time.Now(), key); err != nil {
		return nil, fmt.Errorf("failed to touch audio clip: %w", err)
	}
	return &clip, nil
}

// Put stores clip, replacing any previous entry with the same key, then
// prunes the oldest entries beyond the configured cap.
func (s *AudioService) Put(clip *models.AudioClip) error {
	now := time.Now()
	clip.Size = len(clip.Audio)
	clip.CreatedAt = now
	clip.LastUsedAt = now

	query := `
		INSERT OR REPLACE INTO audio_clips (cache_key, provider, voice_id, content_type, audio, size, created_at, last_used_at)
		VALUES (:cache_key, :provider, :voice_id, :content_type, :audio, :size, :created_at, :last_used_at)
	`
	if _, err := s.db.NamedExec(query, clip); err != nil {
		return fmt.Errorf("failed to store audio clip: %w", err)
	}

	return s.prune()
}

func (s *AudioService) prune() error {
	if s.maxEntries <= 0 {
		return nil
	}
	query := `
		DELETE FROM audio_clips WHERE cache_key NOT IN (
			SELECT cache_key FROM audio_clips ORDER BY last_used_at DESC LIMIT ?
		)
	`
	if _, err := s.db.Exec(query, s.maxEntries); err != nil {
		return fmt.Errorf("failed to prune audio cache: %w", err)
	}
	return nil
}

// Stats reports how much the cache holds.
func (s *AudioService) Stats() (*models.AudioCacheStats, error) {
	var stats models.AudioCacheStats
	query := `SELECT COUNT(*) AS entries, COALESCE(SUM(size), 0) AS bytes FROM audio_clips`
	if err := s.db.Get(&stats, query); err != nil {
		return nil, fmt.Errorf("failed to get audio cache stats: %w", err)
	}
	return &stats, nil
}
