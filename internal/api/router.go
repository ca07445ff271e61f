package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/skladnost/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	projectsHandler := &ProjectsHandler{DB: db}
	compliancesHandler := &CompliancesHandler{DB: db}
	submissionsHandler := &SubmissionsHandler{DB: db}
	elementsHandler := &ElementsHandler{DB: db}

	requireAdmin := RequireRole(model.RoleAdmin)
	requireInspector := RequireRole(model.RoleInspector)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		// Public: login.
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret, db))

			r.Put("/auth/password", authHandler.ChangePassword)
			r.Post("/auth/logout", authHandler.Logout)

			// Users (admin only).
			r.Route("/users", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", usersHandler.List)
				r.Post("/", usersHandler.Create)
				r.Get("/{id}", usersHandler.Get)
				r.Put("/{id}", usersHandler.Update)
				r.Put("/{id}/password", usersHandler.ResetPassword)
				r.Delete("/{id}", usersHandler.Delete)
			})

			// Projects: read (all roles), write (admin).
			r.Get("/projects", projectsHandler.List)
			r.With(requireAdmin).Post("/projects", projectsHandler.Create)
			r.Get("/projects/{pid}", projectsHandler.Get)
			r.Get("/projects/{pid}/compliances", compliancesHandler.List)
			r.With(requireAdmin).Post("/projects/{pid}/compliances", compliancesHandler.Create)

			r.Route("/compliances/{cid}", func(r chi.Router) {
				r.Get("/", compliancesHandler.Get)
				r.With(requireAdmin).Put("/status", compliancesHandler.SetStatus)

				// Submissions: read (all roles), write (inspector+).
				r.Get("/submissions", submissionsHandler.List)
				r.With(requireInspector).Post("/submissions", submissionsHandler.Create)
				r.Get("/submissions/{sid}", submissionsHandler.Get)

				r.Route("/submissions/{sid}/elements", func(r chi.Router) {
					r.With(requireInspector).Post("/", elementsHandler.Create)
					r.Get("/{eid}", elementsHandler.Get)
					r.With(requireInspector).Put("/{eid}/image", elementsHandler.UploadImage)
					r.Get("/{eid}/image", elementsHandler.GetImage)
					r.Get("/{eid}/thumbnail", elementsHandler.GetThumbnail)
				})
			})
		})
	})

	return r
}
