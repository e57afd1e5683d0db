package httpapi

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userSummary struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	messageResponse
	User userSummary `json:"user"`
}

// rateLimitResponse is the 429 body; it repeats the RateLimit-* header
// values so clients without header access can back off.
type rateLimitResponse struct {
	messageResponse
	Limit      int `json:"limit"`
	Remaining  int `json:"remaining"`
	RetryAfter int `json:"retryAfter"`
	Window     int `json:"window"`
}

type refreshResponse struct {
	messageResponse
	AccessExpiresAt  int64 `json:"accessExpiresAt"`
	RefreshExpiresAt int64 `json:"refreshExpiresAt"`
}
