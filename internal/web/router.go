package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	webembed "github.com/erazemk/skladnost/web"
)

// DefaultRenderTimeout bounds the wait for thumbnails before a detail page
// is rendered with placeholders.
const DefaultRenderTimeout = 15 * time.Second

// Options configure the page router.
type Options struct {
	// Backend serves the submission detail page. Nil uses the local database.
	Backend        Backend
	Location       *time.Location
	ThumbnailLimit int
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) (http.Handler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	templates, err := LoadTemplates(loc)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = &LocalBackend{DB: db}
	}
	renderTimeout := opts.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = DefaultRenderTimeout
	}

	s := &Server{
		DB:             db,
		Templates:      templates,
		JWTSecret:      jwtSecret,
		Backend:        backend,
		Location:       loc,
		ThumbnailLimit: opts.ThumbnailLimit,
		FetchTimeout:   opts.FetchTimeout,
		RenderTimeout:  renderTimeout,
	}

	r := chi.NewRouter()

	// Static assets.
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	r.Get("/login", s.LoginPage)
	r.Post("/login", s.LoginSubmit)
	r.Post("/logout", s.Logout)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(CookieAuthMiddleware(jwtSecret, db))

		r.Get("/", s.Dashboard)
		r.Post("/projects", s.ProjectCreateSubmit)
		r.Get("/projects/{pid}", s.ProjectPage)
		r.Post("/projects/{pid}/compliances", s.ComplianceCreateSubmit)

		r.Get("/compliances/{cid}", s.CompliancePage)
		r.Post("/compliances/{cid}/status", s.ComplianceStatusSubmit)
		r.Get("/compliances/{cid}/submissions/{sid}", s.SubmissionDetailPage)
		r.Get("/compliances/{cid}/submissions/{sid}/elements/{eid}/image", s.ElementImageGet)

		r.Get("/users", s.UsersPage)
		r.Post("/users", s.UserCreateSubmit)
		r.Post("/users/{id}/password", s.UserResetPasswordSubmit)
		r.Post("/users/{id}/role", s.UserUpdateRoleSubmit)
		r.Post("/users/{id}/delete", s.UserDeleteSubmit)

		r.Get("/settings", s.SettingsPage)
		r.Post("/settings", s.SettingsSubmit)
	})

	return r, nil
}

// urlID parses a numeric URL parameter.
func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
