package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/service"
)

type OTPHandler struct {
	otps *service.OTPService
}

func NewOTPHandler(otps *service.OTPService) *OTPHandler {
	return &OTPHandler{otps: otps}
}

func (h *OTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.Generate)
	r.Get("/exists/{otp}", h.Exists)
	return r
}

type generateOTPRequest struct {
	SourceID string `json:"sourceId"`
}

type generateOTPResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Generate issues a fresh code for the source device. Consumed by the
// front-liner app, never by the GFD.
func (h *OTPHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidRequest("invalid request body"))
		return
	}

	ticket, err := h.otps.Issue(r.Context(), req.SourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateOTPResponse{
		Code:      ticket.Code,
		ExpiresAt: ticket.ExpiresAt,
	})
}

func (h *OTPHandler) Exists(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "otp")

	exists, err := h.otps.Peek(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
