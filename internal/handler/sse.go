package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gfd-sse/off2on-bridge-go/internal/service"
	"github.com/gfd-sse/off2on-bridge-go/internal/stream"
)

// deviceCookie carries the GFD device id set by the PWA.
const deviceCookie = "deviceId"

type SSEHandler struct {
	connections *service.ConnectionService
	registry    *stream.Registry
}

func NewSSEHandler(connections *service.ConnectionService, registry *stream.Registry) *SSEHandler {
	return &SSEHandler{
		connections: connections,
		registry:    registry,
	}
}

func (h *SSEHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)
	r.Get("/status", h.Status)
	r.Get("/connections/count", h.Count)
	return r
}

// Connect establishes the event stream. First-time connections carry an otp
// query parameter; reconnections carry only the device id.
func (h *SSEHandler) Connect(w http.ResponseWriter, r *http.Request) {
	destinationID := destinationID(r)
	otp := r.URL.Query().Get("otp")

	log.Info().
		Str("destinationId", destinationID).
		Bool("otpProvided", otp != "").
		Msg("sse connection request")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	result, err := h.connections.Connect(r.Context(), destinationID, otp)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Info().
		Str("sourceId", result.SourceID).
		Str("destinationId", result.DestinationID).
		Bool("isReconnection", result.IsReconnection).
		Msg("sse connection established")

	h.serve(w, r, flusher, result.Stream)
}

// serve drains the stream until a terminal condition: client gone, stream
// closed by the registry, or a socket write failure.
func (h *SSEHandler) serve(w http.ResponseWriter, r *http.Request, flusher http.Flusher, s *stream.Stream) {
	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sourceId", s.SourceID).Msg("sse connection closed by client")
			h.registry.Release(s)
			return

		case <-s.Done():
			log.Info().Str("sourceId", s.SourceID).Msg("sse connection closed by registry")
			return

		case frame := <-s.Frames():
			if err := writeFrame(w, flusher, frame); err != nil {
				log.Warn().Err(err).Str("sourceId", s.SourceID).Msg("sse write failed, closing")
				h.registry.Release(s)
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame stream.Frame) error {
	if frame.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", frame.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", frame.Event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", frame.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (h *SSEHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	destinationID := destinationID(r)

	disconnected, err := h.connections.Disconnect(r.Context(), destinationID)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "No active connection found"
	if disconnected {
		message = "SSE connection closed successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"disconnected": disconnected,
		"message":      message,
	})
}

func (h *SSEHandler) Status(w http.ResponseWriter, r *http.Request) {
	destinationID := destinationID(r)
	if destinationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Device ID is required"})
		return
	}

	connected, err := h.connections.IsConnected(r.Context(), destinationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}

func (h *SSEHandler) Count(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.registry.Count()})
}

func destinationID(r *http.Request) string {
	if cookie, err := r.Cookie(deviceCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("destinationId")
}
