package middleware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/middleware"
)

// readAll drains the body the way a JSON decoder would and answers 413 when
// http.MaxBytesReader cuts it off.
var readAll = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if _, err := io.ReadAll(r.Body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
})

func TestMaxBodySizeHandler_withinLimit(t *testing.T) {
	h := middleware.NewMaxBodySizeHandler(100)(readAll)

	req := httptest.NewRequest(http.MethodPost, "/library", strings.NewReader(strings.Repeat("x", 100)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// A declared Content-Length over the limit never reaches the handler.
func TestMaxBodySizeHandler_declaredLengthRejected(t *testing.T) {
	called := false
	h := middleware.NewMaxBodySizeHandler(100)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/library", strings.NewReader(strings.Repeat("x", 200)))
	req.ContentLength = 200
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)
	assert.JSONEq(t, `{"error":{"code":"body_too_large","message":"request body exceeds the size limit"}}`, rec.Body.String())
}

func TestMaxBodySizeHandler_streamedBodyCutOff(t *testing.T) {
	h := middleware.NewMaxBodySizeHandler(100)(readAll)

	req := httptest.NewRequest(http.MethodPost, "/library", strings.NewReader(strings.Repeat("x", 200)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
