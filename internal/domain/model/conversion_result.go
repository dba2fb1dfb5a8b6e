package model

// FailureKind tells apart the ways a transcoder run can fail.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureTool         FailureKind = "tool"
	FailureNoOutput     FailureKind = "no_output"
	FailureNoAudio      FailureKind = "no_audio"
	FailureTimeout      FailureKind = "timeout"
	FailureInvalidInput FailureKind = "invalid_input"
)

// MaxErrorLength bounds ConversionResult.Error.
const MaxErrorLength = 500

// ConversionResult is produced by a transcoder run. Durations are whole seconds;
// OriginalDuration is only set when WasTrimmed.
type ConversionResult struct {
	Success          bool
	Duration         int
	OriginalDuration int
	WasTrimmed       bool
	Error            string
	Failure          FailureKind
}
