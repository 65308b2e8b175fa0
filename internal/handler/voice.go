package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/duochat/duochat-server/internal/audit"
	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/middleware"
	"github.com/duochat/duochat-server/internal/storage"
)

type VoiceHandler struct {
	store *storage.VoiceStore
}

func NewVoiceHandler(store *storage.VoiceStore) *VoiceHandler {
	return &VoiceHandler{store: store}
}

// Upload accepts a multipart voice note and returns the URL clients
// embed in a subsequent voice message.
// POST /api/voice/upload
func (h *VoiceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.MissingRequired("file"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.store.Save(file, ext)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventVoiceUpload,
		DeviceID: claims.DeviceID,
		RoomID:   claims.RoomID,
		Details:  map[string]interface{}{"size": header.Size},
	})

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
