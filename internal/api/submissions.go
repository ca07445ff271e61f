package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// SubmissionsHandler handles submission endpoints.
type SubmissionsHandler struct {
	DB *sql.DB
}

type createSubmissionRequest struct {
	Description string `json:"description"`
}

// List handles GET /api/compliances/{cid}/submissions.
func (h *SubmissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	complianceID, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return
	}

	submissions, err := store.ListSubmissions(r.Context(), h.DB, complianceID)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if submissions == nil {
		submissions = []model.Submission{}
	}
	jsonResponse(w, http.StatusOK, submissions)
}

// Create handles POST /api/compliances/{cid}/submissions.
func (h *SubmissionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	complianceID, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return
	}

	var req createSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	compliance, err := store.GetCompliance(r.Context(), h.DB, complianceID)
	if err != nil {
		slog.Error("failed to get compliance", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get compliance")
		return
	}
	if compliance == nil {
		jsonError(w, http.StatusNotFound, "compliance not found")
		return
	}

	claims := GetClaims(r.Context())
	submission, err := store.CreateSubmission(r.Context(), h.DB, complianceID, req.Description, &claims.UserID)
	if errors.Is(err, store.ErrComplianceClosed) {
		jsonError(w, http.StatusConflict, "compliance is closed")
		return
	}
	if err != nil {
		slog.Error("failed to create submission", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create submission")
		return
	}

	slog.Info("submission filed", "user", claims.Username, "compliance", compliance.Name, "submission", submission.ID)
	jsonResponse(w, http.StatusCreated, submission)
}

// Get handles GET /api/compliances/{cid}/submissions/{sid}. The response
// carries the submission's items.
func (h *SubmissionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	submission, ok := loadSubmission(w, r, h.DB)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, submission)
}

// loadSubmission resolves {cid}/{sid} to a submission of that compliance.
// It writes the error response and returns false on failure.
func loadSubmission(w http.ResponseWriter, r *http.Request, db *sql.DB) (*model.Submission, bool) {
	complianceID, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "sid", "submission")
	if !ok {
		return nil, false
	}

	submission, err := store.GetSubmission(r.Context(), db, complianceID, id)
	if err != nil {
		slog.Error("failed to get submission", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get submission")
		return nil, false
	}
	if submission == nil {
		jsonError(w, http.StatusNotFound, "submission not found")
		return nil, false
	}
	return submission, true
}
