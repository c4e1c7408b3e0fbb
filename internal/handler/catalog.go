package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gfd-sse/off2on-bridge-go/internal/errors"
	"github.com/gfd-sse/off2on-bridge-go/internal/service"
)

type ProductHandler struct {
	catalog *service.CatalogService
}

func NewProductHandler(catalog *service.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{productId}", h.Get)
	return r
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		writeJSON(w, http.StatusOK, h.catalog.ProductsByCategory(category))
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Products())
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidRequest("invalid product id"))
		return
	}

	sourceID := r.URL.Query().Get("sourceId")
	userID := r.URL.Query().Get("userId")

	product, ok := h.catalog.ViewProduct(r.Context(), productID, sourceID, userID)
	if !ok {
		writeError(w, apperrors.NotFound("Product"))
		return
	}

	writeJSON(w, http.StatusOK, product)
}
