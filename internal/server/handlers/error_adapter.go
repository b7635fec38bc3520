// Package handlers implements the observation server's HTTP handlers.
package handlers

import (
	"errors"
	"net/http"

	apperrors "github.com/inscribe-ai/docwatch/internal/errors"
	"github.com/inscribe-ai/docwatch/internal/server/middleware"
	"github.com/inscribe-ai/docwatch/pkg/registry"
)

// HTTPErrorResponder writes an error response for err.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// httpErrorResponder is the active responder. Pluggable so embedders can
// swap in their own envelope without forking the handlers.
var httpErrorResponder HTTPErrorResponder = defaultErrorResponder

// SetHTTPErrorResponder overrides how handler errors are written. Passing
// nil restores the default responder.
func SetHTTPErrorResponder(responder HTTPErrorResponder) {
	if responder == nil {
		httpErrorResponder = defaultErrorResponder
		return
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

func defaultErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, registry.ErrNotFound):
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound, err.Error(), requestID)
	default:
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal, err.Error(), requestID)
	}
}
