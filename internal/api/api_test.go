package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/skladnost/internal/auth"
	"github.com/erazemk/skladnost/internal/db"
	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret))
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	// Get token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}

	return server, token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doJSON performs an authenticated request, checks the status and decodes
// the response into out (if non-nil).
func doJSON(t *testing.T, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()
	req, _ := authRequest(method, url, token, body)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", method, url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for x := range 600 {
		img.Set(x, x%400, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadImage(t *testing.T, url, token string, data []byte) int {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "photo.png")
	fw.Write(data)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPut, url, &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	doJSON(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	doJSON(t, "GET", server.URL+"/api/projects", token, nil, http.StatusUnauthorized, nil)
}

func TestSubmissionAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var project model.Project
	doJSON(t, "POST", server.URL+"/api/projects", token,
		map[string]string{"name": "Kamnolom Sever"}, http.StatusCreated, &project)

	var compliance model.Compliance
	doJSON(t, "POST", fmt.Sprintf("%s/api/projects/%d/compliances", server.URL, project.ID), token,
		map[string]string{"name": "Prašnost"}, http.StatusCreated, &compliance)
	if compliance.Status != model.ComplianceOpen {
		t.Errorf("new compliance status = %q", compliance.Status)
	}

	base := fmt.Sprintf("%s/api/compliances/%d/submissions", server.URL, compliance.ID)
	var submission model.Submission
	doJSON(t, "POST", base, token,
		map[string]string{"description": "Line1\nLine2"}, http.StatusCreated, &submission)

	elements := fmt.Sprintf("%s/%d/elements", base, submission.ID)
	var photo, note model.Element
	doJSON(t, "POST", elements, token, map[string]any{
		"type":      model.ElementPhoto,
		"caption":   "Vhod",
		"geo":       map[string]any{"zone": "33T", "easting": 460123.5, "northing": 5101234.25},
		"timestamp": "2020-01-01T00:00:00Z",
	}, http.StatusCreated, &photo)
	doJSON(t, "POST", elements, token, map[string]any{
		"type": model.ElementText,
		"text": "brez pripomb",
	}, http.StatusCreated, &note)

	if status := uploadImage(t, fmt.Sprintf("%s/%d/image", elements, photo.ID), token, testPNG(t)); status != http.StatusOK {
		t.Fatalf("photo upload: expected 200, got %d", status)
	}
	if status := uploadImage(t, fmt.Sprintf("%s/%d/image", elements, note.ID), token, testPNG(t)); status != http.StatusBadRequest {
		t.Errorf("text upload: expected 400, got %d", status)
	}

	var got model.Submission
	doJSON(t, "GET", fmt.Sprintf("%s/%d", base, submission.ID), token, nil, http.StatusOK, &got)
	if got.Description != "Line1\nLine2" {
		t.Errorf("description = %q", got.Description)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	if got.Items[0].Geo == nil || got.Items[0].Geo.Zone != "33T" {
		t.Errorf("photo geo = %+v", got.Items[0].Geo)
	}
	if got.Items[0].InternalExt != "jpg" || got.Items[0].ImageSize == 0 {
		t.Errorf("photo ext = %q, size = %d", got.Items[0].InternalExt, got.Items[0].ImageSize)
	}

	// Thumbnail of the photo.
	req, _ := authRequest("GET", fmt.Sprintf("%s/%d/thumbnail", elements, photo.ID), token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	thumb, format, err := image.DecodeConfig(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("thumbnail: status %d, type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %q, want jpeg", format)
	}
	if thumb.Width > 240 || thumb.Height > 240 {
		t.Errorf("thumbnail is %dx%d", thumb.Width, thumb.Height)
	}

	// Text elements have no thumbnail and ids do not cross compliances.
	doJSON(t, "GET", fmt.Sprintf("%s/%d/thumbnail", elements, note.ID), token, nil, http.StatusNotFound, nil)
	doJSON(t, "GET", fmt.Sprintf("%s/api/compliances/%d/submissions/%d/elements/%d/thumbnail",
		server.URL, compliance.ID+1, submission.ID, photo.ID), token, nil, http.StatusNotFound, nil)
}

func TestClosedComplianceRejectsSubmissions(t *testing.T) {
	server, token := setupTestServer(t)

	var project model.Project
	doJSON(t, "POST", server.URL+"/api/projects", token, map[string]string{"name": "P"}, http.StatusCreated, &project)
	var compliance model.Compliance
	doJSON(t, "POST", fmt.Sprintf("%s/api/projects/%d/compliances", server.URL, project.ID), token,
		map[string]string{"name": "C"}, http.StatusCreated, &compliance)

	doJSON(t, "PUT", fmt.Sprintf("%s/api/compliances/%d/status", server.URL, compliance.ID), token,
		map[string]string{"status": model.ComplianceClosed}, http.StatusOK, nil)
	doJSON(t, "POST", fmt.Sprintf("%s/api/compliances/%d/submissions", server.URL, compliance.ID), token,
		map[string]string{"description": "late"}, http.StatusConflict, nil)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	server, token := setupTestServer(t)

	doJSON(t, "GET", server.URL+"/api/compliances/99", token, nil, http.StatusNotFound, nil)
	doJSON(t, "GET", server.URL+"/api/compliances/abc", token, nil, http.StatusBadRequest, nil)
	doJSON(t, "GET", server.URL+"/api/compliances/1/submissions/5", token, nil, http.StatusNotFound, nil)
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret))
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/projects")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(database, testJWTSecret))
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	viewer, _ := store.CreateUser(ctx, database, "viewer1", string(hash), model.RoleViewer)
	project, _ := store.CreateProject(ctx, database, "P", "")
	compliance, _ := store.CreateCompliance(ctx, database, project.ID, "C")

	viewerToken, _ := auth.GenerateToken(testJWTSecret, viewer.ID, viewer.Username, model.RoleViewer)

	// Viewers read but cannot file submissions (inspector+ required).
	url := fmt.Sprintf("%s/api/compliances/%d/submissions", server.URL, compliance.ID)
	doJSON(t, "GET", url, viewerToken, nil, http.StatusOK, nil)
	doJSON(t, "POST", url, viewerToken, map[string]string{"description": "x"}, http.StatusForbidden, nil)

	// Viewers should not access /api/users.
	doJSON(t, "GET", server.URL+"/api/users", viewerToken, nil, http.StatusForbidden, nil)
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	const incoming = "0b0c6b5e-6a43-4c35-9c55-0d7a4b6f2f11"
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("incoming request id replaced: %q", seen)
	}
}
