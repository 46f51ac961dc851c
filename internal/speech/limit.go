package speech

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// Limited throttles synthesis calls to a provider. Voice listing is not limited.
type Limited struct {
	Synthesizer
	limiter *rate.Limiter
}

// WithRateLimit wraps s so that at most perSecond synthesis calls start each
// second, with the given burst. A non-positive perSecond returns s unchanged.
func WithRateLimit(s Synthesizer, perSecond float64, burst int) Synthesizer {
	if perSecond <= 0 {
		return s
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		Synthesizer: s,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *Limited) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Audio{}, fmt.Errorf("rate limit: %w", err)
	}
	return l.Synthesizer.Synthesize(ctx, text, voice)
}

func (l *Limited) Close() error {
	if c, ok := l.Synthesizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
