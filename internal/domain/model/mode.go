package model

// Mode is the per-session conversion mode. Sessions without a stored value
// are in ModeAuto.
type Mode string

const (
	ModeAuto          Mode = "auto"
	ModeVideoToCircle Mode = "video_to_circle"
	ModeAudioToVoice  Mode = "audio_to_voice"
	ModeVideoToAudio  Mode = "video_to_audio"
)

// ParseMode maps a stored value back to a Mode. Unknown values read as auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeVideoToCircle, ModeAudioToVoice, ModeVideoToAudio:
		return Mode(s)
	default:
		return ModeAuto
	}
}

func (m Mode) IsExplicit() bool {
	return m != ModeAuto && m != ""
}

// MediaKind is the classification of an incoming attachment.
type MediaKind string

const (
	MediaVideo   MediaKind = "video"
	MediaAudio   MediaKind = "audio"
	MediaUnknown MediaKind = "unknown"
)

// Operation is the conversion a job resolves to.
type Operation string

const (
	OpNoteFromVideo  Operation = "note_from_video"
	OpVoiceFromAudio Operation = "voice_from_audio"
	OpAudioFromVideo Operation = "audio_from_video"
)
