// civictrack/handlers/auth.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"civictrack/config"
	"civictrack/database"
	"civictrack/models"
	"civictrack/utils"
)

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleRegister creates an account and returns a signed token.
func HandleRegister(w http.ResponseWriter, r *http.Request, app App) {
	var in models.NewUser
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", app)
		return
	}

	user, err := app.DB().CreateUser(&in)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}

	token, err := utils.GenerateToken(user.ID, app.JWTSecret(), config.TokenTTL)
	if err != nil {
		app.Logger().Error("Failed to sign token", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", app)
		return
	}

	// Fire-and-forget; registration never fails on mail problems.
	go func(email, name string) {
		if err := app.Notifier().SendWelcome(email, name); err != nil {
			app.Logger().Warn("Failed to send welcome email", "email", email, "error", err)
		}
	}(user.Email, user.FirstName)

	app.Logger().Info("User registered", "user_id", user.ID)
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user}, app)
}

// HandleLogin verifies credentials and returns a signed token.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", app)
		return
	}

	user, err := app.DB().UserByEmail(in.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password", app)
			return
		}
		respondStoreError(w, r, err, app)
		return
	}
	if !user.ComparePassword(in.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password", app)
		return
	}
	if user.IsBanned {
		respondError(w, http.StatusForbidden, "Account is banned", app)
		return
	}

	token, err := utils.GenerateToken(user.ID, app.JWTSecret(), config.TokenTTL)
	if err != nil {
		app.Logger().Error("Failed to sign token", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error", app)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user}, app)
}

// HandleProfile returns the authenticated user's account.
func HandleProfile(w http.ResponseWriter, r *http.Request, app App) {
	respondJSON(w, http.StatusOK, currentUser(r), app)
}

// HandleUpdateProfile updates name and phone for the authenticated user.
func HandleUpdateProfile(w http.ResponseWriter, r *http.Request, app App) {
	user := currentUser(r)
	var in struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", app)
		return
	}

	if err := app.DB().UpdateUser(user.ID, in.FirstName, in.LastName, in.Phone); err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	updated, err := app.DB().UserByID(user.ID)
	if err != nil {
		respondStoreError(w, r, err, app)
		return
	}
	respondJSON(w, http.StatusOK, updated, app)
}
