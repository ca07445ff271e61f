package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/skladnost/internal/imaging"
	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// maxUploadSize bounds a photo upload.
const maxUploadSize = 10 << 20

// ElementsHandler handles the assets attached to a submission.
type ElementsHandler struct {
	DB *sql.DB
}

type createElementRequest struct {
	Type      string     `json:"type"`
	Caption   string     `json:"caption"`
	Geo       *model.Geo `json:"geo"`
	Timestamp *time.Time `json:"timestamp"`
	Text      string     `json:"text"`
}

// Create handles POST /api/compliances/{cid}/submissions/{sid}/elements.
func (h *ElementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	submission, ok := loadSubmission(w, r, h.DB)
	if !ok {
		return
	}

	var req createElementRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidElementType(req.Type) {
		jsonError(w, http.StatusBadRequest, "invalid element type")
		return
	}
	if req.Geo != nil && strings.TrimSpace(req.Geo.Zone) == "" {
		jsonError(w, http.StatusBadRequest, "geo zone required")
		return
	}

	e := model.Element{
		SubmissionID: submission.ID,
		Type:         req.Type,
		Caption:      req.Caption,
		Geo:          req.Geo,
		Text:         req.Text,
	}
	if req.Timestamp != nil {
		e.Timestamp = *req.Timestamp
	}

	element, err := store.CreateElement(r.Context(), h.DB, e)
	if err != nil {
		slog.Error("failed to create element", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create element")
		return
	}

	slog.Info("element added", "user", GetClaims(r.Context()).Username, "submission", submission.ID, "type", element.Type)
	jsonResponse(w, http.StatusCreated, element)
}

// Get handles GET /api/compliances/{cid}/submissions/{sid}/elements/{eid}.
func (h *ElementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	element, ok := h.loadElement(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, element)
}

// UploadImage handles PUT .../elements/{eid}/image. Only photo elements
// accept an image; the stored copy is re-encoded and gets a thumbnail.
func (h *ElementsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	element, ok := h.loadElement(w, r)
	if !ok {
		return
	}
	if element.Type != model.ElementPhoto {
		jsonError(w, http.StatusBadRequest, "element is not a photo")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	result, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = store.SetElementImage(r.Context(), h.DB, element.SubmissionID, element.ID,
		result.Data, result.MIME, result.Ext, result.Thumbnail)
	if errors.Is(err, store.ErrNotPhoto) {
		jsonError(w, http.StatusBadRequest, "element is not a photo")
		return
	}
	if err != nil {
		slog.Error("failed to save image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("photo uploaded", "user", GetClaims(r.Context()).Username, "element", element.ID, "bytes", len(result.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET .../elements/{eid}/image.
func (h *ElementsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	element, ok := h.loadElement(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetElementImage(r.Context(), h.DB, element.SubmissionID, element.ID)
	if err != nil {
		slog.Error("failed to get image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// GetThumbnail handles GET .../elements/{eid}/thumbnail.
func (h *ElementsHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	complianceID, ok := pathID(w, r, "cid", "compliance")
	if !ok {
		return
	}
	submissionID, ok := pathID(w, r, "sid", "submission")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "eid", "element")
	if !ok {
		return
	}

	data, err := store.GetElementThumbnail(r.Context(), h.DB, complianceID, submissionID, id)
	if err != nil {
		slog.Error("failed to get thumbnail", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get thumbnail")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// loadElement resolves {cid}/{sid}/{eid} to an element of that submission.
func (h *ElementsHandler) loadElement(w http.ResponseWriter, r *http.Request) (*model.Element, bool) {
	submission, ok := loadSubmission(w, r, h.DB)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "eid", "element")
	if !ok {
		return nil, false
	}

	for i := range submission.Items {
		if submission.Items[i].ID == id {
			return &submission.Items[i], true
		}
	}
	jsonError(w, http.StatusNotFound, "element not found")
	return nil, false
}
