package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gfd-sse/off2on-bridge-go/internal/service"
)

func newOTPFixture() *OTPHandler {
	otps := service.NewOTPService(&stubMappingRepo{}, 5*time.Minute, 6)
	return NewOTPHandler(otps)
}

func TestOTPHandler_Generate(t *testing.T) {
	t.Run("issues a code for the source device", func(t *testing.T) {
		h := newOTPFixture()

		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"sourceId":"src-1"}`))
		rec := httptest.NewRecorder()

		h.Generate(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"`)
		assert.Contains(t, rec.Body.String(), `"expiresAt":"`)
	})

	t.Run("rejects missing sourceId", func(t *testing.T) {
		h := newOTPFixture()

		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		h.Generate(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h := newOTPFixture()

		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()

		h.Generate(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOTPHandler_Exists(t *testing.T) {
	t.Run("reports false for an unknown code", func(t *testing.T) {
		h := newOTPFixture()

		r := h.Routes()
		req := httptest.NewRequest(http.MethodGet, "/exists/123456", nil)
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"exists":false`)
	})
}
