package httpapi

import (
	"encoding/json"
	"net/http"
)

// messageResponse is the body of every non-listing response.
type messageResponse struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Passcode    string `json:"passcode,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
