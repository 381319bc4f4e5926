package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "keygate/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError maps a domain error to its HTTP status and writes the
// categorical code so callers can correct input without parsing prose.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.HTTPStatus(err))

	body := errorBody{Error: string(dErrors.CodeOf(err))}
	var de *dErrors.Error
	if errors.As(err, &de) {
		body.Description = de.Message
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
