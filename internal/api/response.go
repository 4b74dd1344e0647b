package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/apperrors"
)

// ErrorResponse wraps an error body for JSON serialization.
type ErrorResponse struct {
	Error apperrors.ErrorBody `json:"error"`
}

// ListResponse is the envelope for all collection endpoints.
type ListResponse struct {
	Object string `json:"object"` // Always "list"
	Data   any    `json:"data"`
	URL    string `json:"url"`
}

// WriteJSON sends a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteError serializes an AppError response.
// Response format: {"error": {"code": "...", "message": "..."}}
// Server-side failures are logged with the request id for correlation.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.EnsureAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Printf("request %s failed: %v", requestIDFrom(r), err)
	}
	_ = WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.ErrorBody()})
}

// WriteList writes a list envelope.
// Example: WriteList(w, "/v1/devices", devices)
func WriteList(w http.ResponseWriter, url string, data any) error {
	return WriteJSON(w, http.StatusOK, ListResponse{
		Object: "list",
		Data:   data,
		URL:    url,
	})
}
