package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"expense-diary/internal/models"
	"expense-diary/internal/store"
)

// Setup2FAHandler generates a TOTP secret and QR code for the current user.
// Nothing is persisted until the code is verified via Enable2FAHandler.
func (h *Handler) Setup2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)

	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}

	key, err := models.NewTOTPKey(user.Username)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}

	qrCode, err := models.TOTPKeyDataURI(key)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"secret":  key.Secret(),
		"qr_code": qrCode,
		"issuer":  models.TOTPIssuer,
		"account": user.Username,
	})
}

// Enable2FAHandler verifies the code against the pending secret and turns
// two-factor on for the current user.
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)

	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if !models.VerifyTOTPCode(req.Secret, req.Code) {
		jsonError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), userID, req.Secret, true); err != nil {
		log.Printf("Failed to enable 2FA: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to enable 2FA")
		return
	}

	h.publishActivity(r.Context(), userID, models.ActionEnable2FA, 0)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA enabled"})
}

// Disable2FAHandler turns two-factor off. A current code is required so a
// hijacked session cannot silently weaken the account.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !user.TOTPEnabled {
		jsonError(w, http.StatusBadRequest, "2FA is not enabled")
		return
	}

	if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		jsonError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	if err := h.Store.Disable2FA(r.Context(), userID); err != nil {
		log.Printf("Failed to disable 2FA: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}

	h.publishActivity(r.Context(), userID, models.ActionDisable2FA, 0)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA disabled"})
}

// Verify2FALoginHandler completes a login that LoginHandler answered with
// requires_2fa. No session exists yet, so the user id rides in the body.
func (h *Handler) Verify2FALoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID int    `json:"user_id"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.Store.GetUser(r.Context(), req.UserID)
	if err != nil && err != store.ErrNotFound {
		log.Println("get user:", err)
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err != nil || !user.TOTPEnabled || !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		jsonError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	h.completeLogin(w, r, user, FormatJSON)
}
