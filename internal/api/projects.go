package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// ProjectsHandler handles project endpoints.
type ProjectsHandler struct {
	DB *sql.DB
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/projects.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := store.ListProjects(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list projects", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	jsonResponse(w, http.StatusOK, projects)
}

// Create handles POST /api/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	project, err := store.CreateProject(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		slog.Error("failed to create project", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	slog.Info("project created", "user", GetClaims(r.Context()).Username, "project", project.Name)
	jsonResponse(w, http.StatusCreated, project)
}

// Get handles GET /api/projects/{pid}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "pid", "project")
	if !ok {
		return
	}

	project, err := store.GetProject(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get project", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	jsonResponse(w, http.StatusOK, project)
}
