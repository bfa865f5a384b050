// civictrack/handlers/admin_test.go
package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"civictrack/models"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	userToken := registerUser(t, router, "citizen@example.com")

	rr := doJSON(t, router, http.MethodGet, "/api/admin/dashboard", userToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Non-admin dashboard: status = %d, want 403", rr.Code)
	}
	rr = doJSON(t, router, http.MethodGet, "/api/admin/dashboard", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Unauthenticated dashboard: status = %d, want 401", rr.Code)
	}
}

func TestAdminStatusUpdate(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	reporter := registerUser(t, router, "reporter@example.com")
	id := createIssueViaAPI(t, router, reporter, 0, 0)
	adminToken := loginAdmin(t, router)

	rr := doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/admin/issues/%d/status", id), adminToken,
		map[string]string{"status": "in_progress"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Set status: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var issue models.Issue
	decodeBody(t, rr, &issue)
	if issue.Status != models.StatusInProgress {
		t.Errorf("Issue status = %q, want in_progress", issue.Status)
	}

	// Only the three known statuses are accepted.
	rr = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/admin/issues/%d/status", id), adminToken,
		map[string]string{"status": "closed"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Invalid status: status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPut,
		"/api/admin/issues/9999/status", adminToken,
		map[string]string{"status": "resolved"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Missing issue: status = %d, want 404", rr.Code)
	}

	// The audit log now shows the admin's change on top.
	rr = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/issues/%d", id), "", nil)
	var resp struct {
		StatusHistory []models.StatusLogEntry `json:"statusHistory"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.StatusHistory) != 2 {
		t.Fatalf("History length = %d, want 2", len(resp.StatusHistory))
	}
	if resp.StatusHistory[0].Status != models.StatusInProgress || resp.StatusHistory[0].ChangedBy == nil {
		t.Errorf("Latest history entry = %+v", resp.StatusHistory[0])
	}
}

func TestAdminHideUnhide(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	reporter := registerUser(t, router, "reporter@example.com")
	id := createIssueViaAPI(t, router, reporter, 0, 0)
	adminToken := loginAdmin(t, router)

	rr := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/admin/issues/%d/hide", id), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Hide: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var issue models.Issue
	decodeBody(t, rr, &issue)
	if !issue.IsHidden {
		t.Error("Issue should be hidden")
	}

	// Hidden issues still appear in the admin list.
	rr = doJSON(t, router, http.MethodGet, "/api/admin/issues?hidden=true", adminToken, nil)
	var list struct {
		Issues []models.Issue `json:"issues"`
		Count  int            `json:"count"`
	}
	decodeBody(t, rr, &list)
	if list.Count != 1 || list.Issues[0].ID != id {
		t.Errorf("Hidden list = %+v, want issue %d", list, id)
	}

	rr = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/admin/issues/%d/unhide", id), adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Unhide: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &issue)
	if issue.IsHidden {
		t.Error("Issue should be visible again")
	}
}

func TestAdminDashboard(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	reporter := registerUser(t, router, "reporter@example.com")
	createIssueViaAPI(t, router, reporter, 0, 0)
	createIssueViaAPI(t, router, reporter, 0, 0)
	adminToken := loginAdmin(t, router)

	rr := doJSON(t, router, http.MethodGet, "/api/admin/dashboard", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Dashboard: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var stats models.Analytics
	decodeBody(t, rr, &stats)
	if stats.TotalIssues != 2 || stats.RecentIssues != 2 {
		t.Errorf("Dashboard stats = %+v, want 2 total, 2 recent", stats)
	}
	if len(stats.CategoryStats) != len(models.Categories) {
		t.Errorf("CategoryStats length = %d, want %d", len(stats.CategoryStats), len(models.Categories))
	}
}

func TestAdminListUsersAndBan(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	registerUser(t, router, "one@example.com")
	registerUser(t, router, "two@example.com")
	adminToken := loginAdmin(t, router)

	rr := doJSON(t, router, http.MethodGet, "/api/admin/users", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("List users: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var list struct {
		Users []models.User `json:"users"`
		Count int           `json:"count"`
	}
	decodeBody(t, rr, &list)
	if list.Count != 3 {
		t.Errorf("User count = %d, want 3 (admin + two registered)", list.Count)
	}

	// An admin cannot ban itself.
	var adminUser models.User
	rr = doJSON(t, router, http.MethodGet, "/api/auth/profile", adminToken, nil)
	decodeBody(t, rr, &adminUser)
	rr = doJSON(t, router, http.MethodPut,
		"/api/admin/users/"+itoa(adminUser.ID)+"/ban", adminToken, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Self-ban: status = %d, want 400", rr.Code)
	}
}
