package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tahcohcat/lector-web/internal/logger"
)

const (
	dummySampleRate = 16000
	// roughly reading speed, so a dummy session lasts about as long as a real one
	dummyPerChar   = 10 * time.Millisecond
	dummyMaxLength = 30 * time.Second
)

// DummyTts produces silence proportional to the text length. It is used when
// no real provider is configured and in tests.
type DummyTts struct {
	logger *logger.Log
}

func NewDummyTts() *DummyTts {
	return &DummyTts{logger: logger.New().WithField("tts", "dummy")}
}

func (d *DummyTts) ListVoices(_ context.Context) ([]Voice, error) {
	return []Voice{{ID: "dummy", Name: "Dummy Voice", Lang: "en-US"}}, nil
}

func (d *DummyTts) Synthesize(_ context.Context, text string, voice Voice) (Audio, error) {
	if text == "" {
		return Audio{}, ErrEmptyText
	}
	if voice.ID == "" {
		return Audio{}, fmt.Errorf("dummy: %w", ErrVoiceUnavailable)
	}

	length := time.Duration(len([]rune(text))) * dummyPerChar
	if length > dummyMaxLength {
		length = dummyMaxLength
	}
	samples := int(length.Milliseconds()) * dummySampleRate / 1000
	pcm := make([]byte, samples*2)

	d.logger.Debug(fmt.Sprintf("no tts configured. generating %s of silence", length))

	wav, err := encodeWAV(pcm, dummySampleRate)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: wav, ContentType: "audio/wav"}, nil
}

func (d *DummyTts) Name() string {
	return "dummy"
}

// encodeWAV wraps mono PCM16LE samples in a RIFF/WAVE header.
func encodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	if err := binary.Write(&buf, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return nil, err
	}
	buf.WriteString("WAVEfmt ")
	header := []interface{}{
		uint32(16),
		uint16(audioFormat),
		uint16(numChannels),
		uint32(sampleRate),
		byteRate,
		blockAlign,
		uint16(bitsPerSample),
	}
	for _, f := range header {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	buf.WriteString("data")
	if err := binary.Write(&buf, binary.LittleEndian, dataSize); err != nil {
		return nil, err
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}
