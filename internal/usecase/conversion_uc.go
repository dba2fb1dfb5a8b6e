// File: internal/usecase/conversion_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/adapter"
	"telegram-media-converter/internal/infra/logging"
	"telegram-media-converter/internal/infra/media"
	"telegram-media-converter/internal/infra/metrics"
	"telegram-media-converter/internal/infra/tempfile"
	"telegram-media-converter/internal/infra/worker"
)

// Compile-time check
var _ ConversionUseCase = (*conversionUC)(nil)

const bytesPerMB = 1024 * 1024

// ConversionUseCase runs one attachment through validation, the shared gate,
// download, transcoding and delivery.
type ConversionUseCase interface {
	// Handle always leaves the job in a terminal state. The returned error is a
	// *domain.JobError when the job failed.
	Handle(ctx context.Context, req model.ConversionRequest) (*model.ConversionJob, error)
}

// Translator renders user-facing texts.
type Translator interface {
	T(key string, args ...interface{}) string
}

// JobObserver receives a copy of the job on every status change.
type JobObserver func(job model.ConversionJob)

type ConversionOption func(*conversionUC)

func WithObserver(fn JobObserver) ConversionOption {
	return func(c *conversionUC) { c.observer = fn }
}

type conversionUC struct {
	cfg        config.ConversionConfig
	modes      ModeUseCase
	transport  adapter.MessagingTransport
	transcoder adapter.Transcoder
	gate       *worker.Gate
	temp       *tempfile.Manager
	tr         Translator
	log        *zerolog.Logger
	observer   JobObserver
}

func NewConversionUseCase(
	cfg config.ConversionConfig,
	modes ModeUseCase,
	transport adapter.MessagingTransport,
	transcoder adapter.Transcoder,
	gate *worker.Gate,
	temp *tempfile.Manager,
	tr Translator,
	logger *zerolog.Logger,
	opts ...ConversionOption,
) *conversionUC {
	l := logger.With().Str("component", "ConversionUC").Logger()
	c := &conversionUC{
		cfg:        cfg,
		modes:      modes,
		transport:  transport,
		transcoder: transcoder,
		gate:       gate,
		temp:       temp,
		tr:         tr,
		log:        &l,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// jobRun is the mutable state of one Handle call.
type jobRun struct {
	job      *model.ConversionJob
	log      *zerolog.Logger
	handle   *adapter.StatusHandle
	doneText string
}

func (c *conversionUC) Handle(ctx context.Context, req model.ConversionRequest) (*model.ConversionJob, error) {
	now := time.Now()
	job := &model.ConversionJob{
		ID:         ulid.Make().String(),
		ChatID:     req.ChatID,
		Attachment: req.Attachment,
		Status:     model.JobStatusValidating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ctx = logging.WithJobID(logging.WithChatID(ctx, req.ChatID), job.ID)
	run := &jobRun{job: job, log: logging.With(ctx, c.log)}
	defer logging.TraceDuration(run.log, "ConversionUC.Handle")()
	c.notify(job)

	err := c.guard(job, func() error { return c.run(ctx, run) })
	if err == nil {
		c.finish(ctx, run, now)
		return job, nil
	}

	jerr := asJobError(err, job.Status, c.tr.T("error_generic"))
	c.guard(job, func() error { return c.surface(ctx, run, jerr) })
	c.transition(run, model.JobStatusFailed)
	job.LastError = jerr.Error()

	ev := run.log.Warn()
	if jerr.Kind == domain.KindUnexpected {
		ev = run.log.Error()
	}
	ev.Err(jerr.Err).
		Str("kind", string(jerr.Kind)).
		Str("stage", jerr.Stage).
		Str("operation", string(job.Operation)).
		Dur("duration", time.Since(now)).
		Msg("conversion failed")
	if job.Operation != "" {
		metrics.ObserveJob(string(job.Operation), string(model.JobStatusFailed), time.Since(now))
	}
	return job, jerr
}

// guard turns a panic inside fn into an unexpected JobError.
func (c *conversionUC) guard(job *model.ConversionJob, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("job_id", job.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic in conversion job")
			err = &domain.JobError{
				Kind:        domain.KindUnexpected,
				Stage:       string(job.Status),
				UserMessage: c.tr.T("error_generic"),
				Err:         fmt.Errorf("%w: %v", domain.ErrUnexpectedFault, r),
			}
		}
	}()
	return fn()
}

func (c *conversionUC) run(ctx context.Context, run *jobRun) error {
	op, err := c.validate(ctx, run)
	if err != nil {
		return err
	}
	run.job.Operation = op

	h, err := c.transport.SendStatus(ctx, run.job.ChatID, c.tr.T("status_processing"))
	if err != nil {
		return transportError(run.job.Status, c.tr.T("error_transport"), err)
	}
	run.handle = &h

	return c.process(ctx, run)
}

func (c *conversionUC) validate(ctx context.Context, run *jobRun) (model.Operation, error) {
	job := run.job
	att := job.Attachment

	if att.FileSize > c.cfg.MaxFileSize {
		metrics.IncRejection("too_large")
		return "", &domain.JobError{
			Kind:        domain.KindValidation,
			Stage:       string(job.Status),
			UserMessage: c.tr.T("error_file_too_large", c.cfg.MaxFileSize/bytesPerMB, att.FileSize/bytesPerMB),
			Err:         domain.ErrFileTooLarge,
		}
	}

	mode, err := c.modes.Current(ctx, job.ChatID)
	if err != nil {
		run.log.Warn().Err(err).Msg("mode lookup failed, using auto")
		mode = model.ModeAuto
	}
	job.Mode = mode
	job.Kind = media.Classify(att.FileName, att.MimeType)

	op, rej := Route(mode, job.Kind)
	switch rej {
	case RouteAccepted:
		return op, nil
	case RouteMismatch:
		metrics.IncRejection(string(rej))
		key := "error_kind_mismatch_video"
		if RequiredKind(mode) == model.MediaAudio {
			key = "error_kind_mismatch_audio"
		}
		return "", &domain.JobError{
			Kind:        domain.KindValidation,
			Stage:       string(job.Status),
			UserMessage: c.tr.T(key),
			Err:         fmt.Errorf("%w: %s attachment in %s mode", domain.ErrKindMismatch, job.Kind, mode),
		}
	default:
		metrics.IncRejection(string(rej))
		return "", &domain.JobError{
			Kind:        domain.KindValidation,
			Stage:       string(job.Status),
			UserMessage: c.tr.T("error_unsupported"),
			Err:         domain.ErrUnsupportedMedia,
		}
	}
}

func (c *conversionUC) process(ctx context.Context, run *jobRun) error {
	job := run.job

	c.transition(run, model.JobStatusQueued)
	if c.gate.InUse() >= c.gate.Capacity() {
		c.status(ctx, run, c.tr.T("status_queued"))
	}
	gctx := ctx
	if c.cfg.GateWaitTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, c.cfg.GateWaitTimeout)
		defer cancel()
	}
	slot, err := c.gate.Acquire(gctx)
	if err != nil {
		return &domain.JobError{
			Kind:        domain.KindUnexpected,
			Stage:       string(job.Status),
			UserMessage: c.tr.T("error_busy"),
			Err:         err,
		}
	}
	defer slot.Release()

	scope := c.temp.NewScope()
	defer scope.Cleanup()

	c.transition(run, model.JobStatusDownloading)
	c.status(ctx, run, c.tr.T("status_downloading"))
	input := scope.Path("input", c.inputExtension(job))
	if err := c.download(ctx, job.Attachment.FileID, input); err != nil {
		return transportError(job.Status, c.tr.T("error_transport"), err)
	}

	c.transition(run, model.JobStatusTranscoding)
	var (
		output string
		result model.ConversionResult
	)
	tctx := ctx
	if c.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, c.cfg.ToolTimeout)
		defer cancel()
	}
	switch job.Operation {
	case model.OpNoteFromVideo:
		c.status(ctx, run, c.tr.T("status_converting_note"))
		output = scope.Path("output", ".mp4")
		result = c.transcoder.ToVideoNote(tctx, input, output, c.cfg.VideoNoteSize, c.cfg.MaxVideoDuration)
	case model.OpVoiceFromAudio:
		c.status(ctx, run, c.tr.T("status_converting_voice"))
		output = scope.Path("output", ".ogg")
		result = c.transcoder.ToVoice(tctx, input, output)
	case model.OpAudioFromVideo:
		c.status(ctx, run, c.tr.T("status_converting_audio"))
		output = scope.Path("output", ".ogg")
		result = c.transcoder.ExtractAudio(tctx, input, output)
	default:
		return &domain.JobError{
			Kind:        domain.KindUnexpected,
			Stage:       string(job.Status),
			UserMessage: c.tr.T("error_generic"),
			Err:         fmt.Errorf("%w: unknown operation %q", domain.ErrUnexpectedFault, job.Operation),
		}
	}
	if !result.Success {
		return c.transcodeError(job, result)
	}

	c.transition(run, model.JobStatusUploading)
	run.doneText = c.tr.T("status_done")
	if job.Operation == model.OpNoteFromVideo {
		c.status(ctx, run, c.tr.T("status_uploading_note"))
		duration := min(result.Duration, c.cfg.MaxVideoDuration)
		if err := c.transport.DeliverVideoNote(ctx, job.ChatID, output, duration, c.cfg.VideoNoteSize); err != nil {
			return transportError(job.Status, c.tr.T("error_transport"), err)
		}
		if result.WasTrimmed {
			metrics.IncTrimmed()
			run.doneText += "\n\n" + c.tr.T("note_trimmed", result.OriginalDuration, c.cfg.MaxVideoDuration)
		}
	} else {
		c.status(ctx, run, c.tr.T("status_uploading_voice"))
		if err := c.transport.DeliverVoice(ctx, job.ChatID, output, result.Duration); err != nil {
			return transportError(job.Status, c.tr.T("error_transport"), err)
		}
	}
	return nil
}

func (c *conversionUC) inputExtension(job *model.ConversionJob) string {
	def := ".mp4"
	if job.Kind == model.MediaAudio {
		def = ".mp3"
	}
	return media.ResolveExtension(job.Attachment.FileName, media.DefaultExtension(job.Attachment.MimeType, def))
}

func (c *conversionUC) download(ctx context.Context, fileID, dst string) error {
	rc, err := c.transport.FetchAttachment(ctx, fileID)
	if err != nil {
		return fmt.Errorf("fetch attachment: %w", err)
	}
	defer rc.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return fmt.Errorf("write input file: %w", err)
	}
	return f.Close()
}

func (c *conversionUC) transcodeError(job *model.ConversionJob, res model.ConversionResult) error {
	jerr := &domain.JobError{Kind: domain.KindTranscode, Stage: string(job.Status)}
	switch res.Failure {
	case model.FailureNoAudio:
		jerr.UserMessage = c.tr.T("error_no_audio")
		jerr.Err = domain.ErrNoAudioTrack
	case model.FailureTimeout:
		jerr.UserMessage = c.tr.T("error_timeout")
		jerr.Err = fmt.Errorf("%w: %s", domain.ErrTranscodeFailed, res.Error)
	default:
		jerr.UserMessage = c.tr.T("error_conversion", res.Error)
		jerr.Err = fmt.Errorf("%w: %s", domain.ErrTranscodeFailed, res.Error)
	}
	return jerr
}

// surface delivers the single failure message of a job: a fresh message when
// validation rejected it, otherwise an edit of its status message.
func (c *conversionUC) surface(ctx context.Context, run *jobRun, jerr *domain.JobError) error {
	var err error
	if run.handle == nil {
		_, err = c.transport.SendStatus(ctx, run.job.ChatID, jerr.UserMessage)
	} else {
		err = c.transport.UpdateStatus(ctx, *run.handle, jerr.UserMessage)
	}
	if err != nil {
		run.log.Warn().Err(err).Msg("failed to report conversion failure")
	}
	return nil
}

func (c *conversionUC) finish(ctx context.Context, run *jobRun, started time.Time) {
	c.transition(run, model.JobStatusDone)
	if err := c.transport.UpdateStatus(ctx, *run.handle, run.doneText); err != nil {
		run.log.Warn().Err(err).Msg("failed to report conversion result")
	}
	elapsed := time.Since(started)
	metrics.ObserveJob(string(run.job.Operation), string(model.JobStatusDone), elapsed)
	run.log.Info().
		Str("operation", string(run.job.Operation)).
		Str("status", string(run.job.Status)).
		Dur("duration", elapsed).
		Msg("conversion done")
}

// status edits the job's status message. Intermediate edits are best effort.
func (c *conversionUC) status(ctx context.Context, run *jobRun, text string) {
	if run.handle == nil {
		return
	}
	if err := c.transport.UpdateStatus(ctx, *run.handle, text); err != nil {
		run.log.Debug().Err(err).Str("status", string(run.job.Status)).Msg("status update failed")
	}
}

func (c *conversionUC) transition(run *jobRun, to model.JobStatus) {
	run.job.Status = to
	run.job.UpdatedAt = time.Now()
	run.log.Debug().Str("status", string(to)).Str("operation", string(run.job.Operation)).Msg("job transition")
	c.notify(run.job)
}

func (c *conversionUC) notify(job *model.ConversionJob) {
	if c.observer != nil {
		c.observer(*job)
	}
}

func transportError(stage model.JobStatus, msg string, err error) *domain.JobError {
	return &domain.JobError{
		Kind:        domain.KindTransport,
		Stage:       string(stage),
		UserMessage: msg,
		Err:         fmt.Errorf("%w: %v", domain.ErrTransport, err),
	}
}

func asJobError(err error, stage model.JobStatus, fallback string) *domain.JobError {
	var jerr *domain.JobError
	if errors.As(err, &jerr) {
		return jerr
	}
	return &domain.JobError{
		Kind:        domain.KindUnexpected,
		Stage:       string(stage),
		UserMessage: fallback,
		Err:         fmt.Errorf("%w: %v", domain.ErrUnexpectedFault, err),
	}
}
