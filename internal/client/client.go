// Package client talks to the skladnost REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned for well-known API statuses.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// maxThumbnailBytes bounds a thumbnail response body.
const maxThumbnailBytes = 4 << 20

// maxImageBytes bounds an original image response body.
const maxImageBytes = 16 << 20

// APIError is a non-success response with the API's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client is a REST API client authenticated with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the API at baseURL (without the /api suffix).
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	if out.Token == "" {
		return errors.New("login response without token")
	}
	c.token = out.Token
	return nil
}

// Compliance returns the raw JSON of a compliance.
func (c *Client) Compliance(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.getJSON(ctx, fmt.Sprintf("/api/compliances/%d", id))
}

// Submission returns the raw JSON of a submission with its items.
func (c *Client) Submission(ctx context.Context, complianceID, id int64) (json.RawMessage, error) {
	return c.getJSON(ctx, fmt.Sprintf("/api/compliances/%d/submissions/%d", complianceID, id))
}

// DownloadElementThumbnail fetches the thumbnail of an element and its
// content type.
func (c *Client) DownloadElementThumbnail(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	path := fmt.Sprintf("/api/compliances/%d/submissions/%d/elements/%d/thumbnail", complianceID, submissionID, elementID)
	data, mime, err := c.download(ctx, path, maxThumbnailBytes)
	if err != nil {
		return nil, "", fmt.Errorf("downloading thumbnail: %w", err)
	}
	return data, mime, nil
}

// ElementImage downloads the stored original image of a photo element.
func (c *Client) ElementImage(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	path := fmt.Sprintf("/api/compliances/%d/submissions/%d/elements/%d/image", complianceID, submissionID, elementID)
	data, mime, err := c.download(ctx, path, maxImageBytes)
	if err != nil {
		return nil, "", fmt.Errorf("downloading image: %w", err)
	}
	return data, mime, nil
}

// download reads a binary response of at most limit bytes.
func (c *Client) download(ctx context.Context, path string, limit int64) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%s: response larger than %d bytes", path, limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return raw, nil
}

// do sends a request and maps error statuses. The caller closes the body of
// a successful response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	return nil, &APIError{Status: resp.StatusCode, Message: apiErr.Error}
}
