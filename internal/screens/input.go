package screens

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputErrors maps a filter key to the message shown next to its input.
type InputErrors map[string]string

func (e InputErrors) Error() string {
	parts := make([]string, 0, len(e))
	for key, msg := range e {
		parts = append(parts, key+": "+msg)
	}
	return "invalid filters: " + strings.Join(parts, "; ")
}

// ParseInput reads the declared filters of def out of form. Keys the screen
// does not declare are ignored; a blank value unsets its filter. Every value
// is checked against the filter's validation rule.
func ParseInput(def Definition, form url.Values) (map[string]string, error) {
	values := make(map[string]string, len(def.Filters))
	problems := InputErrors{}
	for _, f := range def.Filters {
		if _, posted := form[f.Key]; !posted {
			continue
		}
		raw := strings.TrimSpace(form.Get(f.Key))
		if f.Validate != "" {
			if err := validate.Var(raw, f.Validate); err != nil {
				problems[f.Key] = inputMessage(f, err)
				continue
			}
		}
		values[f.Key] = raw
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return values, nil
}

func inputMessage(f Filter, err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "valor inválido"
	}
	switch fieldErrs[0].Tag() {
	case "required":
		return f.Label + " é obrigatório"
	case "oneof":
		return f.Label + ": opção inválida"
	case "datetime":
		return f.Label + ": use o formato AAAA-MM-DD"
	case "max":
		return f.Label + ": texto muito longo"
	default:
		return f.Label + ": valor inválido"
	}
}
