package speech

import (
	"context"
	"fmt"

	"github.com/tahcohcat/lector-web/config"
)

type Provider string

const (
	ProviderGoogle     Provider = "google"
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderHtgoTts    Provider = "htgotts"
	ProviderDummy      Provider = "dummy"
)

// New creates the synthesizer selected by cfg.Provider, rate limited as configured.
func New(ctx context.Context, cfg config.TtsConfig) (Synthesizer, error) {
	var (
		s   Synthesizer
		err error
	)

	switch Provider(cfg.Provider) {
	case ProviderGoogle:
		s, err = NewGoogleTTS(ctx, cfg.CredentialsFile, cfg.LanguageCode)
	case ProviderElevenLabs:
		s = NewElevenLabsTTS(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel, cfg.Timeout)
	case ProviderHtgoTts:
		s = NewHtgoTTS(cfg.HtgoTtsLanguages)
	case ProviderDummy:
		s = NewDummyTts()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithRateLimit(s, cfg.RatePerSecond, cfg.Burst), nil
}
