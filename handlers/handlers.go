// civictrack/handlers/handlers.go

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"civictrack/database"
	"civictrack/models"
	"civictrack/utils"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() database.Store
	Logger() *slog.Logger
	Storage() models.StorageService
	Notifier() models.Notifier
	Geocoder() *utils.Geocoder
	RateLimiter() *models.RateLimiter
	SubmitLimiter() models.SubmitLimiter
	JWTSecret() string
	UploadDir() string
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// respondError sends a JSON error body with the given status.
func respondError(w http.ResponseWriter, status int, message string, app App) {
	respondJSON(w, status, map[string]string{"error": message}, app)
}

// respondStoreError maps store sentinel errors onto HTTP status codes.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, app App) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found", app)
	case errors.Is(err, database.ErrInvalidStatus),
		errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrEmailTaken):
		respondError(w, http.StatusBadRequest, err.Error(), app)
	default:
		app.Logger().Error("Unexpected store error", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", app)
	}
}

// MakeHandler adapts an App-aware handler func to http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// HandleHealth reports liveness for load balancers.
func HandleHealth(w http.ResponseWriter, r *http.Request, app App) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, app)
}
