// civictrack/handlers/auth_test.go
package handlers

import (
	"net/http"
	"testing"

	"civictrack/models"
)

func TestRegisterAndLogin(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	token := registerUser(t, router, "alice@example.com")
	if token == "" {
		t.Fatal("Register returned an empty token")
	}

	// Duplicate registration is rejected.
	rr := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
		"firstName": "Alice", "lastName": "Again",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Duplicate register: status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	if rr.Code != http.StatusOK {
		t.Errorf("Login: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrongpass",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Wrong password: status = %d, want 401", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Unknown email: status = %d, want 401", rr.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	rr := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bad-email", "password": "secret123",
		"firstName": "A", "lastName": "B",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Bad email: status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "short@example.com", "password": "abc",
		"firstName": "A", "lastName": "B",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Short password: status = %d, want 400", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	token := registerUser(t, router, "bob@example.com")

	rr := doJSON(t, router, http.MethodGet, "/api/auth/profile", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Profile: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var user models.User
	decodeBody(t, rr, &user)
	if user.Email != "bob@example.com" {
		t.Errorf("Profile email = %q", user.Email)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/auth/profile", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Profile without token: status = %d, want 401", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/auth/profile", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Profile with garbage token: status = %d, want 401", rr.Code)
	}

	rr = doJSON(t, router, http.MethodPut, "/api/auth/profile", token, map[string]string{
		"firstName": "Robert", "lastName": "User", "phone": "555-0101",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Update profile: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &user)
	if user.FirstName != "Robert" || user.Phone != "555-0101" {
		t.Errorf("Updated profile = %+v", user)
	}
}

func TestBannedUserRejected(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	userToken := registerUser(t, router, "troll@example.com")
	adminToken := loginAdmin(t, router)

	var user models.User
	rr := doJSON(t, router, http.MethodGet, "/api/auth/profile", userToken, nil)
	decodeBody(t, rr, &user)

	rr = doJSON(t, router, http.MethodPut,
		"/api/admin/users/"+itoa(user.ID)+"/ban", adminToken, map[string]bool{"banned": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("Ban user: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Banned accounts are rejected at login and on authenticated routes.
	rr = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "troll@example.com", "password": "secret123",
	})
	if rr.Code != http.StatusForbidden {
		t.Errorf("Banned login: status = %d, want 403", rr.Code)
	}
	rr = doJSON(t, router, http.MethodGet, "/api/auth/profile", userToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Banned profile access: status = %d, want 403", rr.Code)
	}
}
