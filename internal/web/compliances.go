package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
	"github.com/erazemk/skladnost/internal/table"
)

// submissionsPageSize is the number of submissions per compliance page.
const submissionsPageSize = 25

// submissionColumns are the headers of the submission list.
var submissionColumns = []table.Column{
	{Name: "Oddaja", Value: "id", Width: "col-2"},
	{Name: "Oddal", Value: "submittedBy", Width: "col-3"},
	{Name: "Čas oddaje", Value: "submittedAt", Width: "col-3"},
	{Name: "Gradiva", Value: "itemCount", Width: "col-2"},
	{Name: "", Value: "actions", Width: "col-2", NoSort: true},
}

// CompliancePage handles GET /compliances/{cid}: the paginated submissions
// of a compliance.
func (s *Server) CompliancePage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "cid")
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	compliance, err := store.GetCompliance(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get compliance", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if compliance == nil {
		http.Error(w, "compliance not found", http.StatusNotFound)
		return
	}

	submissions, err := store.ListSubmissions(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	params := table.Params{
		TotalListItems: len(submissions),
		CurrentPage:    max(page, 1),
		PageSize:       submissionsPageSize,
		SortBy:         "submittedAt",
	}

	s.Templates.Render(w, "compliance.html", &struct {
		PageData
		Compliance *model.Compliance
		Table      *table.Object[model.Submission]
	}{
		PageData:   s.pageData(r, compliance.Name),
		Compliance: compliance,
		Table:      table.New("submission_row", submissions, params, compliance, submissionColumns...),
	})
}

// ComplianceStatusSubmit handles POST /compliances/{cid}/status (admin only).
func (s *Server) ComplianceStatusSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	id, ok := urlID(r, "cid")
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	status := r.FormValue("status")
	if status != model.ComplianceOpen && status != model.ComplianceClosed {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := store.SetComplianceStatus(r.Context(), s.DB, id, status); err != nil {
		slog.Error("failed to set compliance status", "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}
	slog.Info("compliance status changed", "user", claims.Username, "compliance", id, "status", status)
	http.Redirect(w, r, fmt.Sprintf("/compliances/%d", id), http.StatusSeeOther)
}
