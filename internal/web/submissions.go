package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/submission"
)

// SubmissionDetailPage handles GET /compliances/{cid}/submissions/{sid}.
//
// The page is rendered once from a submission.View: the resolved route data
// is fed to the view, the page waits for the thumbnail fetches (bounded by
// RenderTimeout) and renders the view's state. Assets whose thumbnail did
// not arrive are shown with a placeholder.
func (s *Server) SubmissionDetailPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	complianceID, ok1 := urlID(r, "cid")
	submissionID, ok2 := urlID(r, "sid")
	if !ok1 || !ok2 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	data, err := resolveSubmission(r.Context(), s.Backend, complianceID, submissionID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("failed to resolve submission", "compliance", complianceID, "submission", submissionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	toasts := &toastCollector{}
	view := submission.New(submission.Options{
		Session: submission.Session{
			CurrentProject: projectOf(data.Compliance.Data),
			Username:       claims.Username,
		},
		Thumbnails:    s.Backend,
		Notifier:      toasts,
		Location:      s.Location,
		MaxConcurrent: s.ThumbnailLimit,
		FetchTimeout:  s.FetchTimeout,
		Logger:        slog.Default().With("compliance", complianceID, "submission", submissionID),
	})
	defer view.Teardown()

	stream := make(chan submission.RouteData, 1)
	stream <- data
	close(stream)
	view.Init(r.Context(), stream)

	ctx, cancel := context.WithTimeout(r.Context(), s.RenderTimeout)
	defer cancel()
	if err := view.Wait(ctx); err != nil {
		slog.Warn("rendering submission before all thumbnails arrived",
			"compliance", complianceID, "submission", submissionID, "error", err)
	}

	state := view.State()
	title := "Oddaja"
	if state.Submission != nil {
		title = fmt.Sprintf("Oddaja #%d", state.Submission.ID)
	}
	pd := s.pageData(r, title)
	pd.Toasts = toasts.list()

	s.Templates.Render(w, "submission_detail.html", &struct {
		PageData
		View submission.State
	}{
		PageData: pd,
		View:     state,
	})
}

// projectOf extracts the owning project from a compliance payload for the
// breadcrumb. It returns nil if the payload does not name one.
func projectOf(raw json.RawMessage) *model.Project {
	var c model.Compliance
	if err := json.Unmarshal(raw, &c); err != nil || c.ProjectID == 0 {
		return nil
	}
	return &model.Project{ID: c.ProjectID, Name: c.ProjectName}
}

// ElementImageGet handles GET /compliances/{cid}/submissions/{sid}/elements/{eid}/image.
// The image comes from the same backend as the detail page.
func (s *Server) ElementImageGet(w http.ResponseWriter, r *http.Request) {
	cid, ok1 := urlID(r, "cid")
	sid, ok2 := urlID(r, "sid")
	eid, ok3 := urlID(r, "eid")
	if !ok1 || !ok2 || !ok3 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	data, mime, err := s.Backend.ElementImage(r.Context(), cid, sid, eid)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to get image", "compliance", cid, "submission", sid, "element", eid, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}
