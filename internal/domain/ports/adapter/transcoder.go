package adapter

import (
	"context"

	"telegram-media-converter/internal/domain/model"
)

// Transcoder is the port for the external conversion tool. Conversions report
// failures through the result, never through an error.
type Transcoder interface {
	ProbeDuration(ctx context.Context, path string) int
	ToVideoNote(ctx context.Context, input, output string, size, maxDuration int) model.ConversionResult
	ToVoice(ctx context.Context, input, output string) model.ConversionResult
	ExtractAudio(ctx context.Context, input, output string) model.ConversionResult
}
