package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// CompliancesHandler handles compliance endpoints.
type CompliancesHandler struct {
	DB *sql.DB
}

type createComplianceRequest struct {
	Name string `json:"name"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/projects/{pid}/compliances.
func (h *CompliancesHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "pid", "project")
	if !ok {
		return
	}

	compliances, err := store.ListCompliances(r.Context(), h.DB, projectID)
	if err != nil {
		slog.Error("failed to list compliances", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list compliances")
		return
	}
	if compliances == nil {
		compliances = []model.Compliance{}
	}
	jsonResponse(w, http.StatusOK, compliances)
}

// Create handles POST /api/projects/{pid}/compliances.
func (h *CompliancesHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "pid", "project")
	if !ok {
		return
	}

	var req createComplianceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	project, err := store.GetProject(r.Context(), h.DB, projectID)
	if err != nil {
		slog.Error("failed to get project", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}

	compliance, err := store.CreateCompliance(r.Context(), h.DB, projectID, req.Name)
	if err != nil {
		slog.Error("failed to create compliance", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create compliance")
		return
	}

	slog.Info("compliance created", "user", GetClaims(r.Context()).Username, "project", project.Name, "compliance", compliance.Name)
	jsonResponse(w, http.StatusCreated, compliance)
}

// Get handles GET /api/compliances/{cid}.
func (h *CompliancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return
	}

	compliance, err := store.GetCompliance(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get compliance", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get compliance")
		return
	}
	if compliance == nil {
		jsonError(w, http.StatusNotFound, "compliance not found")
		return
	}
	jsonResponse(w, http.StatusOK, compliance)
}

// SetStatus handles PUT /api/compliances/{cid}/status.
func (h *CompliancesHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.ComplianceOpen && req.Status != model.ComplianceClosed {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	compliance, err := store.GetCompliance(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get compliance", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get compliance")
		return
	}
	if compliance == nil {
		jsonError(w, http.StatusNotFound, "compliance not found")
		return
	}

	if err := store.SetComplianceStatus(r.Context(), h.DB, id, req.Status); err != nil {
		slog.Error("failed to set compliance status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to set status")
		return
	}
	compliance.Status = req.Status

	slog.Info("compliance status changed", "user", GetClaims(r.Context()).Username, "compliance", compliance.Name, "status", req.Status)
	jsonResponse(w, http.StatusOK, compliance)
}
