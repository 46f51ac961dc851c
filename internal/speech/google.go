package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	tts "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/tahcohcat/lector-web/internal/logger"
)

// Google Cloud rejects requests whose input exceeds 5000 bytes.
const googleMaxInputBytes = 4800

type GoogleTTS struct {
	client       *texttospeech.Client
	languageCode string
	logger       *logger.Log
}

// NewGoogleTTS creates a Google Cloud Text-to-Speech client. An empty
// credentialsFile falls back to GOOGLE_APPLICATION_CREDENTIALS and the
// ambient application default credentials.
func NewGoogleTTS(ctx context.Context, credentialsFile, languageCode string) (*GoogleTTS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}

	return &GoogleTTS{
		client:       client,
		languageCode: languageCode,
		logger:       logger.New().WithField("tts", "google"),
	}, nil
}

// ListVoices returns the voices Google offers, optionally filtered by language.
func (g *GoogleTTS) ListVoices(ctx context.Context) ([]Voice, error) {
	resp, err := g.client.ListVoices(ctx, &tts.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	voices := make([]Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		lang := ""
		if codes := v.GetLanguageCodes(); len(codes) > 0 {
			lang = codes[0]
		}
		voices = append(voices, Voice{
			ID:     v.GetName(),
			Name:   v.GetName(),
			Lang:   lang,
			Gender: strings.ToLower(v.GetSsmlGender().String()),
		})
	}
	return voices, nil
}

// Extract language code from voice name (e.g., "en-US-Chirp-HD-F" -> "en-US")
func extractLanguageCode(voiceName string) string {
	parts := strings.Split(voiceName, "-")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s-%s", parts[0], parts[1])
	}
	return "en-US"
}

// Synthesize renders text as MP3. Long text is synthesized in chunks whose
// MP3 streams are concatenated.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	chunks := SplitText(text, googleMaxInputBytes)
	if len(chunks) == 0 {
		return Audio{}, ErrEmptyText
	}

	languageCode := voice.Lang
	if languageCode == "" {
		languageCode = extractLanguageCode(voice.ID)
	}

	g.logger.Debug(fmt.Sprintf("Generating Google TTS audio with voice: %s, language: %s, chunks: %d",
		voice.ID, languageCode, len(chunks)))

	var out bytes.Buffer
	for _, chunk := range chunks {
		req := &tts.SynthesizeSpeechRequest{
			Input: &tts.SynthesisInput{
				InputSource: &tts.SynthesisInput_Text{Text: chunk},
			},
			Voice: &tts.VoiceSelectionParams{
				LanguageCode: languageCode,
				Name:         voice.ID,
			},
			AudioConfig: &tts.AudioConfig{
				AudioEncoding:   tts.AudioEncoding_MP3,
				SpeakingRate:    1.0,
				SampleRateHertz: 22050,
			},
		}

		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return Audio{}, fmt.Errorf("failed to synthesize speech: %w", err)
		}
		if len(resp.GetAudioContent()) == 0 {
			return Audio{}, fmt.Errorf("google: %w", ErrEmptyAudio)
		}
		out.Write(resp.GetAudioContent())
	}

	g.logger.Debug(fmt.Sprintf("Generated %d bytes of MP3 audio", out.Len()))
	return Audio{Data: out.Bytes(), ContentType: "audio/mpeg"}, nil
}

func (g *GoogleTTS) Name() string {
	return "Google Cloud Text-to-Speech"
}

func (g *GoogleTTS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
