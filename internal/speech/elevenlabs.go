package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haguro/elevenlabs-go"
)

const elevenLabsMaxInputBytes = 2500

type ElevenLabsTTS struct {
	apiKey  string
	model   string
	timeout time.Duration
}

func NewElevenLabsTTS(apiKey, model string, timeout time.Duration) *ElevenLabsTTS {
	return &ElevenLabsTTS{apiKey: apiKey, model: model, timeout: timeout}
}

func (e *ElevenLabsTTS) ListVoices(ctx context.Context) ([]Voice, error) {
	client := elevenlabs.NewClient(ctx, e.apiKey, e.timeout)

	list, err := client.GetVoices()
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: could not get voices: %w", err)
	}

	voices := make([]Voice, 0, len(list))
	for _, v := range list {
		if strings.TrimSpace(v.VoiceId) == "" || strings.TrimSpace(v.Name) == "" {
			continue
		}
		lang := v.Labels["language"]
		if lang == "" {
			lang = v.Labels["accent"]
		}
		voices = append(voices, Voice{
			ID:     v.VoiceId,
			Name:   strings.TrimSpace(v.Name),
			Lang:   lang,
			Gender: v.Labels["gender"],
		})
	}
	return voices, nil
}

func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	chunks := SplitText(text, elevenLabsMaxInputBytes)
	if len(chunks) == 0 {
		return Audio{}, ErrEmptyText
	}

	client := elevenlabs.NewClient(ctx, e.apiKey, e.timeout)

	var out bytes.Buffer
	for _, chunk := range chunks {
		audio, err := client.TextToSpeech(voice.ID, elevenlabs.TextToSpeechRequest{
			Text:    chunk,
			ModelID: e.model,
		})
		if err != nil {
			return Audio{}, fmt.Errorf("elevenlabs: failed tts: %w", err)
		}
		out.Write(audio)
	}
	if out.Len() == 0 {
		return Audio{}, fmt.Errorf("elevenlabs: %w", ErrEmptyAudio)
	}
	return Audio{Data: out.Bytes(), ContentType: "audio/mpeg"}, nil
}

func (e *ElevenLabsTTS) Name() string {
	return "ElevenLabs"
}
