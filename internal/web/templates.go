package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/skladnost/internal/auth"
	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/submission"
	"github.com/erazemk/skladnost/internal/table"
	webembed "github.com/erazemk/skladnost/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// assetRow is the data of one "asset_row" template invocation.
type assetRow struct {
	Asset   submission.Asset
	Context submission.RowContext
}

// FuncMap returns the template function map. Times are shown in loc.
func FuncMap(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.Local
	}
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleInspector:
				return "Inšpektor"
			case model.RoleViewer:
				return "Pregledovalec"
			default:
				return role
			}
		},
		"statusName": func(status string) string {
			switch status {
			case model.ComplianceOpen:
				return "Odprta"
			case model.ComplianceClosed:
				return "Zaključena"
			default:
				return status
			}
		},
		"localTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(loc).Format("02. 01. 2006 15:04")
		},
		"ago":   humanize.Time,
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"bytes": func(n int64) string {
			if n <= 0 {
				return ""
			}
			return humanize.Bytes(uint64(n))
		},
		"utm": func(g *model.Geo) string {
			if g == nil {
				return ""
			}
			return fmt.Sprintf("%s %.0f E %.0f N", g.Zone, g.Easting, g.Northing)
		},
		// Thumbnails are built by the view from base64 data; anything else
		// is dropped.
		"thumbnailURL": func(src string) template.URL {
			if !strings.HasPrefix(src, "data:image/") {
				return ""
			}
			return template.URL(src)
		},
		// The view escapes the description before inserting line breaks.
		"markup": func(s string) template.HTML {
			return template.HTML(s)
		},
		"assetRow": func(a submission.Asset, ctx any) assetRow {
			rc, _ := ctx.(submission.RowContext)
			return assetRow{Asset: a, Context: rc}
		},
		"pages": func(p table.Params) []int {
			n := p.PageCount()
			pages := make([]int, n)
			for i := range pages {
				pages[i] = i + 1
			}
			return pages
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(loc *time.Location) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	// Read layout.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"dashboard.html",
		"project.html",
		"compliance.html",
		"submission_detail.html",
		"users.html",
		"settings.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap(loc))
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with a non-default status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	User    *auth.Claims
	Token   string
	Error   string
	Success string
	Toasts  []Toast
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	JWTSecret string
	Backend   Backend
	Location  *time.Location
	// ThumbnailLimit caps parallel thumbnail fetches per page. 0 is unbounded.
	ThumbnailLimit int
	// FetchTimeout bounds one thumbnail fetch.
	FetchTimeout time.Duration
	// RenderTimeout bounds how long a detail page waits for thumbnails.
	RenderTimeout time.Duration
}

func (s *Server) pageData(r *http.Request, title string) PageData {
	return PageData{Title: title, User: GetWebClaims(r.Context()), Token: GetWebToken(r.Context())}
}
