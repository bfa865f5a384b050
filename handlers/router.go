// civictrack/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)

	// Uploaded photos (local storage mode)
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))

	mux.Get("/api/health", MakeHandler(app, HandleHealth))

	mux.Route("/api/auth", func(r chi.Router) {
		r.Use(RateLimit(app))
		r.Post("/register", MakeHandler(app, HandleRegister))
		r.Post("/login", MakeHandler(app, HandleLogin))
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(app))
			r.Get("/profile", MakeHandler(app, HandleProfile))
			r.Put("/profile", MakeHandler(app, HandleUpdateProfile))
		})
	})

	mux.Route("/api/issues", func(r chi.Router) {
		r.Get("/nearby", MakeHandler(app, HandleNearby))
		r.Get("/{issueID}", MakeHandler(app, HandleGetIssue))
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(app))
			r.Post("/", MakeHandler(app, HandleCreateIssue))
			r.Post("/{issueID}/flag", MakeHandler(app, HandleFlagIssue))
		})
	})

	mux.Route("/api/admin", func(r chi.Router) {
		r.Use(RequireAuth(app))
		r.Use(RequireAdmin(app))
		r.Get("/dashboard", MakeHandler(app, HandleDashboard))
		r.Get("/issues", MakeHandler(app, HandleAdminListIssues))
		r.Put("/issues/{issueID}/status", MakeHandler(app, HandleSetStatus))
		r.Put("/issues/{issueID}/hide", MakeHandler(app, HandleHideIssue))
		r.Put("/issues/{issueID}/unhide", MakeHandler(app, HandleUnhideIssue))
		r.Get("/users", MakeHandler(app, HandleListUsers))
		r.Put("/users/{userID}/ban", MakeHandler(app, HandleBanUser))
	})

	return mux
}
