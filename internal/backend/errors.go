package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a backend call failed. Kinds only change the message a
// user sees; every kind is recovered from the same way.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindTimeout
	KindStatus
	KindApplication
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindApplication:
		return "application"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error describes a failed backend call.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0 && e.Detail != "":
		return fmt.Sprintf("backend: %s (%d): %s", e.Kind, e.Status, e.Detail)
	case e.Status > 0:
		return fmt.Sprintf("backend: %s (%d)", e.Kind, e.Status)
	case e.Detail != "":
		return fmt.Sprintf("backend: %s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("backend: %s: %v", e.Kind, e.Err)
	default:
		return "backend: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the pt-BR text shown in place of a failed table or panel.
func (e *Error) Message() string {
	switch e.Kind {
	case KindTimeout:
		return "Timeout - servidor demorou para responder"
	case KindTransport:
		return "Erro de conexão - verifique se o servidor está rodando"
	case KindStatus:
		switch {
		case e.Status == http.StatusNotFound:
			return "API não encontrada - verifique as rotas"
		case e.Status >= http.StatusInternalServerError:
			return fmt.Sprintf("Erro interno do servidor (%d)", e.Status)
		case e.Detail != "":
			return e.Detail
		default:
			return fmt.Sprintf("Erro na requisição (%d)", e.Status)
		}
	case KindApplication:
		if e.Detail != "" {
			return e.Detail
		}
		return "Erro desconhecido"
	case KindMalformed:
		return "Resposta inesperada do servidor"
	default:
		return "Erro ao carregar dados"
	}
}

// UserMessage extracts the display message for any error, falling back to a
// generic text for errors that did not come from the backend.
func UserMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message()
	}
	return "Erro ao carregar dados"
}

// KindOf reports the failure kind of err, or 0 when err is not a backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}
