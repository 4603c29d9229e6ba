package httpapi

import (
	"encoding/json"
	"net/http"

	"sdworker/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// outputError returns the message of a {"error": "..."} handler output.
func outputError(out json.RawMessage) (string, bool) {
	var v struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(out, &v); err != nil || v.Error == nil {
		return "", false
	}
	return *v.Error, true
}
