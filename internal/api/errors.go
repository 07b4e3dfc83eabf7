package api

import (
	"net/http"

	"github.com/membridge-ai/membridge/internal/memerr"
)

// statusFor maps the closed error-kind set onto HTTP statuses. This is the
// only place kinds become wire statuses.
func statusFor(kind memerr.Kind) int {
	switch kind {
	case memerr.KindInvalidArgument:
		return http.StatusBadRequest
	case memerr.KindNotFound:
		return http.StatusNotFound
	case memerr.KindFeatureUnavailable:
		return http.StatusNotImplemented
	case memerr.KindEmbeddingUnavailable, memerr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case memerr.KindStoreQueryError, memerr.KindStoreProtocolError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes a JSON error response for err. Foreign errors collapse
// to a generic 500 without leaking internals.
func HandleError(w http.ResponseWriter, err error) {
	kind := memerr.KindOf(err)
	if kind == memerr.KindUnknown {
		JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	JSONErrorMessage(w, statusFor(kind), err.Error())
}
