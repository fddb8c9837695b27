package handlers

import (
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/speech"
	"github.com/groxaxo/chatmode/types"
)

var audioKeyRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// AudioHandler serves cached speech artifacts by content-addressed key.
type AudioHandler struct {
	synth  *speech.Synthesizer
	logger *zap.Logger
}

// NewAudioHandler creates the audio handler.
func NewAudioHandler(synth *speech.Synthesizer, logger *zap.Logger) *AudioHandler {
	return &AudioHandler{
		synth:  synth,
		logger: logger.With(zap.String("component", "audio_handler")),
	}
}

// Get handles GET /v1/audio/{key}.
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.synth == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "speech synthesis is disabled", nil)
		return
	}

	key := r.PathValue("key")
	if !audioKeyRe.MatchString(key) {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "malformed artifact key"), h.logger)
		return
	}

	data, ok, err := h.synth.GetArtifact(r.Context(), key)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "artifact lookup failed").WithCause(err), h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "no artifact for this key", nil)
		return
	}

	// Artifacts are immutable: the key is derived from the content inputs.
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
