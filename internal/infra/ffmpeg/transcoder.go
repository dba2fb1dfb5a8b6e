// Package ffmpeg implements the Transcoder port on top of the ffmpeg and
// ffprobe command line tools.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/adapter"
)

var _ adapter.Transcoder = (*Transcoder)(nil)

const (
	msgNoOutput  = "output file was not created"
	msgNoAudio   = "source has no audio track"
	msgTimeout   = "conversion timed out"
	msgUnknown   = "unknown error"
	voiceBitrate = "64k"
)

// Stderr fragments ffmpeg prints when the source has nothing to map to an
// audio output.
var noAudioMarkers = []string{
	"does not contain any stream",
	"Output file is empty",
	"matches no streams",
}

type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
	stat        func(name string) (os.FileInfo, error)
	log         *zerolog.Logger
}

func NewTranscoder(ffmpegPath, ffprobePath string, logger *zerolog.Logger) *Transcoder {
	return NewTranscoderWithRunner(ffmpegPath, ffprobePath, ExecRunner{}, logger)
}

// NewTranscoderWithRunner lets tests substitute process execution.
func NewTranscoderWithRunner(ffmpegPath, ffprobePath string, runner Runner, logger *zerolog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "Transcoder").Logger()
	return &Transcoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		stat:        os.Stat,
		log:         &l,
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the container duration in whole seconds, or 0 when
// the file cannot be probed.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) int {
	cmd, err := newBuilder(t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
	).path(path).build()
	if err != nil {
		t.log.Debug().Err(err).Msg("probe rejected")
		return 0
	}

	res, err := t.runner.Run(ctx, cmd)
	if err != nil || res.ExitCode != 0 {
		t.log.Debug().Err(err).Str("path", path).Int("exit", res.ExitCode).Msg("probe failed")
		return 0
	}
	return parseDuration(res.Stdout)
}

func parseDuration(stdout string) int {
	var out probeOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0
	}
	return int(d)
}

// ToVideoNote crops the input to a centered square, scales it to size×size and
// caps it at maxDuration seconds.
func (t *Transcoder) ToVideoNote(ctx context.Context, input, output string, size, maxDuration int) model.ConversionResult {
	original := t.ProbeDuration(ctx, input)
	trimmed := maxDuration > 0 && original > maxDuration

	b := newBuilder(t.ffmpegPath, "-hide_banner", "-nostdin", "-y").input(input)
	if trimmed {
		b.flag("-t", strconv.Itoa(maxDuration))
	}
	cmd, err := b.
		flag("-vf", noteFilter(size)).
		flag("-c:v", "libx264").
		flag("-preset", "medium").
		flag("-crf", "23").
		flag("-c:a", "aac").
		flag("-b:a", "128k").
		flag("-movflags", "+faststart").
		flag("-pix_fmt", "yuv420p").
		path(output).
		build()
	if err != nil {
		return invalidInput(err)
	}

	res := t.convert(ctx, "video_note", cmd, output, nil)
	if res.Success && trimmed {
		res.WasTrimmed = true
		res.OriginalDuration = original
	}
	return res
}

// noteFilter crops to a centered square of side min(width,height) and scales it.
func noteFilter(size int) string {
	s := strconv.Itoa(size)
	return `crop=min(iw\,ih):min(iw\,ih),scale=` + s + ":" + s
}

// ToVoice transcodes the input audio to Opus tuned for speech.
func (t *Transcoder) ToVoice(ctx context.Context, input, output string) model.ConversionResult {
	b := newBuilder(t.ffmpegPath, "-hide_banner", "-nostdin", "-y").input(input)
	cmd, err := voiceCodec(b).path(output).build()
	if err != nil {
		return invalidInput(err)
	}
	return t.convert(ctx, "voice", cmd, output, nil)
}

// ExtractAudio drops the video stream and encodes the audio like ToVoice.
func (t *Transcoder) ExtractAudio(ctx context.Context, input, output string) model.ConversionResult {
	b := newBuilder(t.ffmpegPath, "-hide_banner", "-nostdin", "-y").input(input).flag("-vn")
	cmd, err := voiceCodec(b).path(output).build()
	if err != nil {
		return invalidInput(err)
	}
	return t.convert(ctx, "extract_audio", cmd, output, classifyNoAudio)
}

func voiceCodec(b *builder) *builder {
	return b.
		flag("-c:a", "libopus").
		flag("-b:a", voiceBitrate).
		flag("-vbr", "on").
		flag("-compression_level", "10").
		flag("-application", "voip")
}

func classifyNoAudio(stderr string) (model.ConversionResult, bool) {
	for _, m := range noAudioMarkers {
		if strings.Contains(stderr, m) {
			return model.ConversionResult{Error: msgNoAudio, Failure: model.FailureNoAudio}, true
		}
	}
	return model.ConversionResult{}, false
}

// convert runs cmd and turns its outcome into a ConversionResult. Success
// needs a zero exit and the output file on disk, since some ffmpeg failures
// exit zero without writing anything.
func (t *Transcoder) convert(
	ctx context.Context,
	op string,
	cmd Command,
	output string,
	classify func(stderr string) (model.ConversionResult, bool),
) model.ConversionResult {
	start := time.Now()
	t.log.Debug().Str("op", op).Strs("args", cmd.Args).Msg("running ffmpeg")

	res, runErr := t.runner.Run(ctx, cmd)
	if ctxErr := ctx.Err(); ctxErr != nil {
		t.log.Warn().Err(ctxErr).Str("op", op).Dur("elapsed", time.Since(start)).Msg("ffmpeg interrupted")
		return model.ConversionResult{Error: msgTimeout, Failure: model.FailureTimeout}
	}
	if runErr != nil || res.ExitCode != 0 {
		if classify != nil {
			if r, ok := classify(res.Stderr); ok {
				return r
			}
		}
		diag := strings.TrimSpace(res.Stderr)
		if diag == "" {
			diag = msgUnknown
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				diag = runErr.Error()
			}
		}
		t.log.Warn().Str("op", op).Int("exit", res.ExitCode).Msg("ffmpeg failed")
		return model.ConversionResult{Error: Truncate(diag, model.MaxErrorLength), Failure: model.FailureTool}
	}

	if fi, err := t.stat(output); err != nil || fi.IsDir() {
		t.log.Warn().Str("op", op).Str("output", output).Msg("ffmpeg exited cleanly without output")
		return model.ConversionResult{Error: msgNoOutput, Failure: model.FailureNoOutput}
	}

	duration := t.ProbeDuration(ctx, output)
	t.log.Debug().Str("op", op).Int("duration", duration).Dur("elapsed", time.Since(start)).Msg("ffmpeg finished")
	return model.ConversionResult{Success: true, Duration: duration}
}

func invalidInput(err error) model.ConversionResult {
	return model.ConversionResult{Error: Truncate(err.Error(), model.MaxErrorLength), Failure: model.FailureInvalidInput}
}

// Truncate cuts s to at most n characters without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
