package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type apiError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success": true,
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// writeRetryDenial renders a policy denial (rate limit or actuation lock)
// with a Retry-After header mirroring the body's retryAfterSeconds.
func writeRetryDenial(w http.ResponseWriter, message string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"success":           false,
		"message":           message,
		"retryAfterSeconds": retryAfterSeconds,
	})
}
