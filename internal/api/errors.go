package api

import (
	"net/http"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/apperr"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
)

// writeError maps a coordinator or adapter error to the client response
// per the error kind taxonomy. An error that isn't an *apperr.Error is
// treated as internal.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		logging.Error().Err(err).Msg("api: unmapped error reached the HTTP boundary")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if appErr.Kind == apperr.KindTimeout {
		w.Header().Set("Retry-After", "60")
	}
	w.WriteHeader(appErr.Kind.HTTPStatus())
	if appErr.Kind != apperr.KindUnauthorized {
		_, _ = w.Write([]byte(appErr.Message))
	}
}
