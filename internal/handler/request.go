package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// decodeJSON reads the request body into dst. On failure it writes the error
// response itself and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the size limit")
	case errors.Is(err, io.EOF):
		requestError(w, "request body is required")
	default:
		requestError(w, "request body is not valid JSON: "+err.Error())
	}
	return false
}

// pathIndex binds the {index} path parameter of a list item.
func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		requestError(w, "index must be an integer")
		return 0, false
	}
	return index, true
}

// dateString formats an optional request date. A missing date becomes the
// empty string, which the services reject with a field-specific message.
func dateString(d *openapi_types.Date) string {
	if d == nil {
		return ""
	}
	return d.Format(openapi_types.DateFormat)
}
