package usecase

import "telegram-media-converter/internal/domain/model"

// RouteRejection explains why an attachment cannot be converted in a mode.
type RouteRejection string

const (
	RouteAccepted    RouteRejection = ""
	RouteMismatch    RouteRejection = "kind_mismatch"
	RouteUnsupported RouteRejection = "unsupported"
)

// Route resolves the conversion for an attachment of the given kind in the
// given mode. Explicit modes fix the operation and only check the kind.
func Route(mode model.Mode, kind model.MediaKind) (model.Operation, RouteRejection) {
	switch mode {
	case model.ModeVideoToCircle:
		if kind == model.MediaVideo {
			return model.OpNoteFromVideo, RouteAccepted
		}
		return "", RouteMismatch
	case model.ModeAudioToVoice:
		if kind == model.MediaAudio {
			return model.OpVoiceFromAudio, RouteAccepted
		}
		return "", RouteMismatch
	case model.ModeVideoToAudio:
		if kind == model.MediaVideo {
			return model.OpAudioFromVideo, RouteAccepted
		}
		return "", RouteMismatch
	}

	switch kind {
	case model.MediaVideo:
		return model.OpNoteFromVideo, RouteAccepted
	case model.MediaAudio:
		return model.OpVoiceFromAudio, RouteAccepted
	default:
		return "", RouteUnsupported
	}
}

// RequiredKind is the media kind an explicit mode accepts, or MediaUnknown for auto.
func RequiredKind(mode model.Mode) model.MediaKind {
	switch mode {
	case model.ModeVideoToCircle, model.ModeVideoToAudio:
		return model.MediaVideo
	case model.ModeAudioToVoice:
		return model.MediaAudio
	default:
		return model.MediaUnknown
	}
}
