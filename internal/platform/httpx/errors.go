// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/dashboard-baker/baker/internal/backend"
)

// Sentinel errors handlers wrap to pick a status.
var (
	ErrNotFound    = errors.New("recurso não encontrado")
	ErrConflict    = errors.New("operação em andamento")
	ErrValidation  = errors.New("parâmetros inválidos")
	ErrUnavailable = errors.New("serviço indisponível")
)

// RespondError maps errors to RFC7807 responses. Backend failures surface as
// 502 with the message a user would see in place of the data.
func RespondError(w http.ResponseWriter, err error) {
	if kind := backend.KindOf(err); kind != 0 {
		status := http.StatusBadGateway
		if kind == backend.KindTimeout {
			status = http.StatusGatewayTimeout
		}
		Problem(w, status, http.StatusText(status), backend.UserMessage(err))
		return
	}
	status := StatusOf(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, http.StatusText(status), detail)
}

// StatusOf returns the HTTP status for a sentinel-wrapped error.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
