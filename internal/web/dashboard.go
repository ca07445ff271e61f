package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// Dashboard handles GET /: the list of projects.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	projects, err := store.ListProjects(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list projects for dashboard", "error", err)
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Projects []model.Project
	}{
		PageData: s.pageData(r, "Projekti"),
		Projects: projects,
	})
}

// ProjectCreateSubmit handles POST /projects (admin only).
func (s *Server) ProjectCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	project, err := store.CreateProject(r.Context(), s.DB, name, r.FormValue("description"))
	if err != nil {
		slog.Error("failed to create project", "error", err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	slog.Info("project created", "user", claims.Username, "project", name)
	http.Redirect(w, r, fmt.Sprintf("/projects/%d", project.ID), http.StatusSeeOther)
}

// ProjectPage handles GET /projects/{pid}: the compliances of a project.
func (s *Server) ProjectPage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "pid")
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	project, err := store.GetProject(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if project == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	compliances, err := store.ListCompliances(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to list compliances", "error", err)
	}

	s.Templates.Render(w, "project.html", &struct {
		PageData
		Project     *model.Project
		Compliances []model.Compliance
	}{
		PageData:    s.pageData(r, project.Name),
		Project:     project,
		Compliances: compliances,
	})
}

// ComplianceCreateSubmit handles POST /projects/{pid}/compliances (admin only).
func (s *Server) ComplianceCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	projectID, ok := urlID(r, "pid")
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/projects/%d", projectID)

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	project, err := store.GetProject(r.Context(), s.DB, projectID)
	if err != nil || project == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	if _, err := store.CreateCompliance(r.Context(), s.DB, projectID, name); err != nil {
		slog.Error("failed to create compliance", "error", err)
	} else {
		slog.Info("compliance created", "user", claims.Username, "project", project.Name, "compliance", name)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
