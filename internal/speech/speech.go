// Package speech holds the text-to-speech providers and the voice catalog
// built on top of them.
package speech

import (
	"context"
	"errors"
)

var (
	ErrEmptyText        = errors.New("text cannot be empty")
	ErrUnknownProvider  = errors.New("unsupported tts provider")
	ErrEmptyAudio       = errors.New("empty audio content received")
	ErrVoiceUnavailable = errors.New("voice not available")
)

// Voice is a provider voice. ID is what the provider wants back on synthesis.
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Lang   string `json:"lang"`
	Gender string `json:"gender,omitempty"`
}

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer is a text-to-speech provider.
type Synthesizer interface {
	// ListVoices enumerates the provider's voices in provider order.
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize renders text with voice.
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)

	Name() string
}
