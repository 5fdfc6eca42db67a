package response

import (
	"encoding/json"
	"net/http"

	"uploadflow/internal/upload"
)

// JSON writes v as a JSON body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, status int, code, message, hint string) {
	JSON(w, status, upload.ErrorResponse{
		Code:    code,
		Message: message,
		Hint:    hint,
	})
}

// Plain writes a text/plain body.
func Plain(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
