package speech

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	htgotts "github.com/hegedustibor/htgo-tts"

	"github.com/tahcohcat/lector-web/internal/logger"
)

const (
	// the translate endpoint truncates long inputs
	htgoMaxInputBytes = 180
	// size of the MP3 the endpoint returns when it rejects the input
	htgoRejectedSize = 1685
)

// HtgoTTS speaks through the Google Translate voice. It offers one voice per
// configured language and needs no credentials.
type HtgoTTS struct {
	languages []string
	logger    *logger.Log
}

func NewHtgoTTS(languages []string) *HtgoTTS {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &HtgoTTS{
		languages: languages,
		logger:    logger.New().WithField("tts", "htgotts"),
	}
}

func (h *HtgoTTS) ListVoices(_ context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(h.languages))
	for _, lang := range h.languages {
		voices = append(voices, Voice{
			ID:   lang,
			Name: "Google Translate " + lang,
			Lang: lang,
		})
	}
	return voices, nil
}

// Synthesize fetches one MP3 per chunk into a scratch directory and returns
// them concatenated. The directory is removed before returning.
func (h *HtgoTTS) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	chunks := SplitText(text, htgoMaxInputBytes)
	if len(chunks) == 0 {
		return Audio{}, ErrEmptyText
	}

	dir, err := os.MkdirTemp("", "lector-htgotts-")
	if err != nil {
		return Audio{}, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	speech := htgotts.Speech{Folder: dir, Language: voice.ID}

	var out bytes.Buffer
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Audio{}, err
		}

		path, err := speech.CreateSpeechFile(chunk, hashString(voice.ID+chunk))
		if err != nil {
			return Audio{}, fmt.Errorf("htgotts: failed to generate speech: %w", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return Audio{}, fmt.Errorf("htgotts: failed to read speech file: %w", err)
		}
		if len(data) == htgoRejectedSize {
			h.logger.WithField("line", chunk).Info("htgotts returned bad MP3 file")
			return Audio{}, fmt.Errorf("htgotts: %w", ErrEmptyAudio)
		}
		out.Write(data)
	}

	return Audio{Data: out.Bytes(), ContentType: "audio/mpeg"}, nil
}

func (h *HtgoTTS) Name() string {
	return "Google Translate (htgo-tts)"
}

func hashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
