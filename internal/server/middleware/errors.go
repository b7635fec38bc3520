package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/inscribe-ai/docwatch/internal/errors"
	"github.com/inscribe-ai/docwatch/internal/observability"
)

// ErrorResponse is the JSON envelope written when a handler panics.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts handler panics into a 500 response with the standard
// error envelope instead of tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			observability.CLILogger.Error("Handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", GetRequestID(r.Context())))

			apperrors.WriteError(w, http.StatusInternalServerError,
				apperrors.CodeInternal,
				fmt.Sprintf("panic: %v", rec),
				GetRequestID(r.Context()))
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for handler chains that name
// the concern rather than the mechanism.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}
