// civictrack/handlers/issues.go
package handlers

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"civictrack/config"
	"civictrack/models"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// HandleCreateIssue accepts a multipart form with the issue fields and
// up to three photos.
func HandleCreateIssue(w http.ResponseWriter, r *http.Request, app App) {
	user := currentUser(r)

	ok, retryIn, err := app.SubmitLimiter().Allow(r.Context(), user.ID)
	if err != nil {
		app.Logger().Error("Submission limiter check failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", app)
		return
	}
	if !ok {
		respondError(w, http.StatusTooManyRequests,
			fmt.Sprintf("Daily submission limit reached, try again in %s", retryIn.Round(time.Second)), app)
		return
	}

	if err := r.ParseMultipartForm(4 * config.MaxPhotoSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form", app)
		return
	}

	lat, latErr := strconv.ParseFloat(r.FormValue("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if latErr != nil || lngErr != nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required", app)
		return
	}

	in := models.NewIssue{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    models.Category(r.FormValue("category")),
		Latitude:    lat,
		Longitude:   lng,
		Address:     strings.TrimSpace(r.FormValue("address")),
		UserID:      user.ID,
		IsAnonymous: r.FormValue("isAnonymous") == "true",
	}
	if err := in.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), app)
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) > config.MaxPhotos {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("At most %d photos allowed", config.MaxPhotos), app)
		return
	}
	for _, fh := range files {
		path, err := savePhoto(fh, app)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), app)
			return
		}
		in.Photos = append(in.Photos, path)
	}

	if in.Address == "" {
		in.Address = app.Geocoder().ReverseGeocode(r.Context(), lat, lng)
	}

	id, err := app.DB().CreateIssue(&in)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	issue, err := app.DB().IssueByID(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}

	app.Logger().Info("Issue created", "issue_id", id, "category", in.Category)
	respondJSON(w, http.StatusCreated, issue, app)
}

// savePhoto validates a single upload and stores the image plus a
// thumbnail. Returns the stored path of the full-size image.
func savePhoto(fh *multipart.FileHeader, app App) (string, error) {
	if fh.Size > config.MaxPhotoSize {
		return "", fmt.Errorf("photo %s exceeds the %dMB size limit", fh.Filename, config.MaxPhotoSize/(1024*1024))
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read photo %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, config.MaxPhotoSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read photo %s", fh.Filename)
	}
	if int64(len(data)) > config.MaxPhotoSize {
		return "", fmt.Errorf("photo %s exceeds the %dMB size limit", fh.Filename, config.MaxPhotoSize/(1024*1024))
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", fmt.Errorf("photo %s is not a supported image type", fh.Filename)
	}

	name := uuid.New().String() + ext
	path, err := app.Storage().SaveFile(name, data, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %v", err)
	}

	// Thumbnail failures are not fatal; the full image is already saved.
	if img, derr := imaging.Decode(bytes.NewReader(data)); derr == nil {
		thumb := imaging.Fit(img, config.ThumbnailSize, config.ThumbnailSize, imaging.Lanczos)
		var buf bytes.Buffer
		if eerr := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); eerr == nil {
			thumbName := "thumb_" + strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
			if _, serr := app.Storage().SaveFile(thumbName, buf.Bytes(), "image/jpeg"); serr != nil {
				app.Logger().Warn("Failed to store thumbnail", "photo", name, "error", serr)
			}
		}
	} else {
		app.Logger().Warn("Failed to decode image for thumbnail", "photo", name, "error", derr)
	}

	return path, nil
}

// HandleNearby returns non-hidden issues within a radius of a point.
func HandleNearby(w http.ResponseWriter, r *http.Request, app App) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		// An address can stand in for coordinates.
		address := strings.TrimSpace(q.Get("address"))
		if address == "" {
			respondError(w, http.StatusBadRequest, "lat and lng query parameters are required", app)
			return
		}
		var err error
		lat, lng, err = app.Geocoder().Geocode(r.Context(), address)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Could not resolve the given address", app)
			return
		}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		respondError(w, http.StatusBadRequest, "lat or lng out of range", app)
		return
	}

	radius := config.DefaultRadiusKm
	if raw := q.Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "radius must be a positive number", app)
			return
		}
		radius = parsed
	}

	results, err := app.DB().NearbyIssues(lat, lng, radius,
		models.Status(q.Get("status")), models.Category(q.Get("category")))
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"issues": results,
		"count":  len(results),
	}, app)
}

// HandleGetIssue returns one issue with its full status history.
func HandleGetIssue(w http.ResponseWriter, r *http.Request, app App) {
	id, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid issue id", app)
		return
	}

	issue, err := app.DB().IssueByID(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	history, err := app.DB().StatusHistory(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"issue":         issue,
		"statusHistory": history,
	}, app)
}

// HandleFlagIssue records the authenticated user's flag.
func HandleFlagIssue(w http.ResponseWriter, r *http.Request, app App) {
	user := currentUser(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid issue id", app)
		return
	}

	count, hidden, err := app.DB().FlagIssue(id, user.ID)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	if hidden {
		app.Logger().Info("Issue auto-hidden by community flags", "issue_id", id, "flags", count)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flagCount": count,
		"isHidden":  hidden,
	}, app)
}
