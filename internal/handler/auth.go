package handler

import (
	"net/http"

	"github.com/duochat/duochat-server/internal/middleware"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Verify confirms a presented claim. The auth middleware has already
// rejected anything invalid, so reaching here means the claim holds.
// POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"roomId":   claims.RoomID,
		"deviceId": claims.DeviceID,
	})
}
