package model

import "time"

type JobStatus string

const (
	JobStatusValidating  JobStatus = "validating"
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusTranscoding JobStatus = "transcoding"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Attachment describes an incoming file as declared by the transport. FileName
// and MimeType may be empty.
type Attachment struct {
	FileID   string
	FileSize int64
	FileName string
	MimeType string
}

// ConversionRequest is what the transport hands to the pipeline.
type ConversionRequest struct {
	ChatID     int64
	Attachment Attachment
}

// ConversionJob is the transient state of one pipeline invocation.
type ConversionJob struct {
	ID         string
	ChatID     int64
	Attachment Attachment
	Mode       Mode
	Kind       MediaKind
	Operation  Operation
	Status     JobStatus
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
