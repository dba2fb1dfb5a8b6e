package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrInvalidArgument = errors.New("invalid argument")

	// Conversion errors
	ErrFileTooLarge     = errors.New("file exceeds the configured size limit")
	ErrKindMismatch     = errors.New("media kind does not match the selected mode")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTranscodeFailed  = errors.New("transcoding failed")
	ErrNoAudioTrack     = errors.New("source has no audio track")
	ErrTransport        = errors.New("transport failure")
	ErrUnexpectedFault  = errors.New("unexpected fault")
	ErrGateTimeout      = errors.New("timed out waiting for a conversion slot")
	ErrUnsafePath       = errors.New("unsafe path argument")
)

// ErrorKind is the failure taxonomy surfaced by the conversion pipeline.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTranscode  ErrorKind = "transcode"
	KindTransport  ErrorKind = "transport"
	KindUnexpected ErrorKind = "unexpected"
)

// JobError carries the failure kind, the stage the job stopped at and the text
// shown to the user. Err is the underlying cause.
type JobError struct {
	Kind        ErrorKind
	Stage       string
	UserMessage string
	Err         error
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failure at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the taxonomy of err. Anything that is not a JobError counts
// as an unexpected fault.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindUnexpected
}
