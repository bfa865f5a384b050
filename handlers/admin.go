// civictrack/handlers/admin.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"civictrack/models"

	"github.com/go-chi/chi/v5"
)

// HandleDashboard returns the aggregate analytics view.
func HandleDashboard(w http.ResponseWriter, r *http.Request, app App) {
	stats, err := app.DB().Analytics()
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, stats, app)
}

// HandleAdminListIssues lists all issues, hidden ones included, with
// optional status/category filters.
func HandleAdminListIssues(w http.ResponseWriter, r *http.Request, app App) {
	q := r.URL.Query()
	filter := models.IssueFilter{
		Status:     models.Status(q.Get("status")),
		Category:   models.Category(q.Get("category")),
		OnlyHidden: q.Get("hidden") == "true",
	}
	issues, err := app.DB().ListIssues(filter)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"issues": issues,
		"count":  len(issues),
	}, app)
}

func issueIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	return id, err == nil
}

// HandleSetStatus changes an issue's status and notifies the reporter.
func HandleSetStatus(w http.ResponseWriter, r *http.Request, app App) {
	admin := currentUser(r)
	id, ok := issueIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid issue id", app)
		return
	}

	var in struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", app)
		return
	}

	if err := app.DB().UpdateStatus(id, in.Status, &admin.ID); err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	issue, err := app.DB().IssueByID(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}

	// Email the reporter unless they filed anonymously. Fire-and-forget.
	if !issue.IsAnonymous {
		go func(userID int64, title string, status models.Status) {
			reporter, err := app.DB().UserByID(userID)
			if err != nil {
				return
			}
			if err := app.Notifier().SendStatusUpdate(reporter.Email, title, status); err != nil {
				app.Logger().Warn("Failed to send status update email", "issue_id", id, "error", err)
			}
		}(issue.UserID, issue.Title, issue.Status)
	}

	app.Logger().Info("Issue status updated", "issue_id", id, "status", in.Status, "admin_id", admin.ID)
	respondJSON(w, http.StatusOK, issue, app)
}

// HandleHideIssue removes an issue from public listings.
func HandleHideIssue(w http.ResponseWriter, r *http.Request, app App) {
	setHidden(w, r, app, true)
}

// HandleUnhideIssue restores a hidden issue to public listings.
func HandleUnhideIssue(w http.ResponseWriter, r *http.Request, app App) {
	setHidden(w, r, app, false)
}

func setHidden(w http.ResponseWriter, r *http.Request, app App, hidden bool) {
	id, ok := issueIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid issue id", app)
		return
	}
	if err := app.DB().SetHidden(id, hidden); err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	issue, err := app.DB().IssueByID(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	app.Logger().Info("Issue visibility changed", "issue_id", id, "hidden", hidden)
	respondJSON(w, http.StatusOK, issue, app)
}

// HandleListUsers lists all registered accounts.
func HandleListUsers(w http.ResponseWriter, r *http.Request, app App) {
	users, err := app.DB().ListUsers()
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	}, app)
}

// HandleBanUser bans or unbans an account.
func HandleBanUser(w http.ResponseWriter, r *http.Request, app App) {
	admin := currentUser(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id", app)
		return
	}
	if id == admin.ID {
		respondError(w, http.StatusBadRequest, "Cannot ban your own account", app)
		return
	}

	in := struct {
		Banned bool `json:"banned"`
	}{Banned: true}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body", app)
			return
		}
	}

	if err := app.DB().BanUser(id, in.Banned); err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	user, err := app.DB().UserByID(id)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	app.Logger().Info("User ban updated", "user_id", id, "banned", in.Banned, "admin_id", admin.ID)
	respondJSON(w, http.StatusOK, user, app)
}
