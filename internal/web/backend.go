package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erazemk/skladnost/internal/client"
	"github.com/erazemk/skladnost/internal/store"
	"github.com/erazemk/skladnost/internal/submission"
)

// ErrNotFound is returned by a Backend for unknown ids.
var ErrNotFound = errors.New("not found")

// Backend supplies the submission detail page: the raw compliance and
// submission payloads, the thumbnails of photo elements and their original
// images.
type Backend interface {
	Compliance(ctx context.Context, id int64) (json.RawMessage, error)
	Submission(ctx context.Context, complianceID, id int64) (json.RawMessage, error)
	ElementImage(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error)
	submission.ThumbnailFetcher
}

// LocalBackend serves the page from the local database in the same wire
// format as the REST API.
type LocalBackend struct {
	DB *sql.DB
}

// Compliance returns the compliance as API JSON.
func (b *LocalBackend) Compliance(ctx context.Context, id int64) (json.RawMessage, error) {
	c, err := store.GetCompliance(ctx, b.DB, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return json.Marshal(c)
}

// Submission returns the submission with its items as API JSON.
func (b *LocalBackend) Submission(ctx context.Context, complianceID, id int64) (json.RawMessage, error) {
	s, err := store.GetSubmission(ctx, b.DB, complianceID, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return json.Marshal(s)
}

// DownloadElementThumbnail returns the stored JPEG thumbnail of an element.
func (b *LocalBackend) DownloadElementThumbnail(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	data, err := store.GetElementThumbnail(ctx, b.DB, complianceID, submissionID, elementID)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("element %d: %w", elementID, ErrNotFound)
	}
	return data, "image/jpeg", nil
}

// ElementImage returns the stored original image of an element in the
// given compliance.
func (b *LocalBackend) ElementImage(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	sub, err := store.GetSubmission(ctx, b.DB, complianceID, submissionID)
	if err != nil {
		return nil, "", err
	}
	if sub == nil {
		return nil, "", fmt.Errorf("submission %d: %w", submissionID, ErrNotFound)
	}
	data, mime, err := store.GetElementImage(ctx, b.DB, sub.ID, elementID)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("element %d: %w", elementID, ErrNotFound)
	}
	return data, mime, nil
}

// RemoteBackend serves the page from another skladnost instance.
type RemoteBackend struct {
	*client.Client
}

// Compliance returns the upstream compliance.
func (b RemoteBackend) Compliance(ctx context.Context, id int64) (json.RawMessage, error) {
	raw, err := b.Client.Compliance(ctx, id)
	return raw, mapClientError(err)
}

// Submission returns the upstream submission.
func (b RemoteBackend) Submission(ctx context.Context, complianceID, id int64) (json.RawMessage, error) {
	raw, err := b.Client.Submission(ctx, complianceID, id)
	return raw, mapClientError(err)
}

// ElementImage returns the upstream original image.
func (b RemoteBackend) ElementImage(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	data, mime, err := b.Client.ElementImage(ctx, complianceID, submissionID, elementID)
	return data, mime, mapClientError(err)
}

func mapClientError(err error) error {
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
