package models

import "time"

// AudioClip is a synthesized rendition of a text with one voice.
type AudioClip struct {
	CacheKey    string    `json:"cache_key" db:"cache_key"`
	Provider    string    `json:"provider" db:"provider"`
	VoiceID     string    `json:"voice_id" db:"voice_id"`
	ContentType string    `json:"content_type" db:"content_type"`
	Audio       []byte    `json:"-" db:"audio"`
	Size        int       `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at" db:"last_used_at"`
}

// AudioCacheStats summarizes the audio cache.
type AudioCacheStats struct {
	Entries int   `json:"entries" db:"entries"`
	Bytes   int64 `json:"bytes" db:"bytes"`
}
