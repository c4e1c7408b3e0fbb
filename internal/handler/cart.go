package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/service"
)

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/add", h.Add)
	r.Post("/checkout", h.Checkout)
	r.Get("/{userId}", h.Get)
	r.Delete("/{userId}", h.Clear)
	return r
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var in service.AddToCartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperrors.InvalidRequest("invalid request body"))
		return
	}

	summary, err := h.carts.AddToCart(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	writeJSON(w, http.StatusOK, h.carts.Cart(userID))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	h.carts.ClearCart(userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

type checkoutRequest struct {
	UserID   string `json:"userId"`
	SourceID string `json:"sourceId"`
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidRequest("invalid request body"))
		return
	}

	result, err := h.carts.Checkout(r.Context(), req.UserID, req.SourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
