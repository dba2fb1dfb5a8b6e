// Package media decides what kind of media an attachment is from the hints the
// transport declares for it.
//
// The file extension is checked before the declared content type because the
// content type is uploader-controlled metadata and is often missing or wrong.
package media

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"telegram-media-converter/internal/domain/model"
)

// VideoExtensions maps lower-cased extensions to whether they are recognized video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
	".3gp":  true,
	".flv":  true,
}

// AudioExtensions maps lower-cased extensions to whether they are recognized audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".aac":  true,
	".wma":  true,
	".opus": true,
}

// Classify returns the media kind for an attachment. Both hints may be empty.
func Classify(filename, contentType string) model.MediaKind {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if VideoExtensions[ext] {
			return model.MediaVideo
		}
		if AudioExtensions[ext] {
			return model.MediaAudio
		}
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "video/"):
		return model.MediaVideo
	case strings.HasPrefix(ct, "audio/"):
		return model.MediaAudio
	}
	return model.MediaUnknown
}

// ResolveExtension returns the lower-cased suffix of filename (with the dot),
// or def when there is none.
func ResolveExtension(filename, def string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && ext != "." {
		return ext
	}
	return def
}

// DefaultExtension guesses a file suffix for a declared content type, e.g.
// "audio/mpeg" gives ".mp3". Unknown types give fallback.
func DefaultExtension(contentType, fallback string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return fallback
	}
	if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return fallback
}
