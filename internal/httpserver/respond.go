package httpserver

import (
	"encoding/json"
	"net/http"
)

// Respond writes data as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a {"detail": "..."} error response. The errCode
// parameter is accepted for call-site compatibility and ignored; only
// message is written, matching the taxonomy's single-field envelope.
func RespondError(w http.ResponseWriter, status int, _ string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
