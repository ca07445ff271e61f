package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/skladnost/internal/model"
)

// ErrNotPhoto is returned when attaching an image to a non-photo element.
var ErrNotPhoto = errors.New("element is not a photo")

const elementColumns = `id, submission_id, type, caption, geo_zone, geo_easting, geo_northing,
	timestamp, internal_ext, text_content, image_mime, COALESCE(length(image), 0)`

func scanElement(row interface{ Scan(...any) error }) (*model.Element, error) {
	e := &model.Element{}
	var caption, zone, ext, text, mime sql.NullString
	var easting, northing sql.NullFloat64
	err := row.Scan(&e.ID, &e.SubmissionID, &e.Type, &caption, &zone, &easting, &northing,
		&e.Timestamp, &ext, &text, &mime, &e.ImageSize)
	if err != nil {
		return nil, err
	}
	e.Caption = caption.String
	e.InternalExt = ext.String
	e.Text = text.String
	e.ImageMime = mime.String
	if zone.Valid {
		e.Geo = &model.Geo{Zone: zone.String, Easting: easting.Float64, Northing: northing.Float64}
	}
	return e, nil
}

// CreateElement attaches a new element to a submission. The timestamp is
// stored in UTC.
func CreateElement(ctx context.Context, db *sql.DB, e model.Element) (*model.Element, error) {
	if !model.ValidElementType(e.Type) {
		return nil, fmt.Errorf("invalid element type %q", e.Type)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var zone sql.NullString
	var easting, northing sql.NullFloat64
	if e.Geo != nil {
		zone = sql.NullString{String: e.Geo.Zone, Valid: true}
		easting = sql.NullFloat64{Float64: e.Geo.Easting, Valid: true}
		northing = sql.NullFloat64{Float64: e.Geo.Northing, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO elements (submission_id, type, caption, geo_zone, geo_easting, geo_northing,
		                       timestamp, internal_ext, text_content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SubmissionID, e.Type, e.Caption, zone, easting, northing,
		e.Timestamp.UTC(), e.InternalExt, e.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("creating element: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting element id: %w", err)
	}

	return GetElement(ctx, db, e.SubmissionID, id)
}

// GetElement returns an element of a submission, or nil if it does not exist.
func GetElement(ctx context.Context, db *sql.DB, submissionID, id int64) (*model.Element, error) {
	e, err := scanElement(db.QueryRowContext(ctx,
		`SELECT `+elementColumns+` FROM elements WHERE id = ? AND submission_id = ?`,
		id, submissionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting element: %w", err)
	}
	return e, nil
}

// ListElements returns the elements of a submission in capture order.
func ListElements(ctx context.Context, db *sql.DB, submissionID int64) ([]model.Element, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+elementColumns+` FROM elements WHERE submission_id = ? ORDER BY timestamp, id`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing elements: %w", err)
	}
	defer rows.Close()

	var elements []model.Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		elements = append(elements, *e)
	}
	return elements, rows.Err()
}

// SetElementImage stores the processed image of a photo element together
// with its thumbnail.
func SetElementImage(ctx context.Context, db *sql.DB, submissionID, id int64, image []byte, mime, ext string, thumbnail []byte) error {
	result, err := db.ExecContext(ctx,
		`UPDATE elements SET image = ?, image_mime = ?, internal_ext = ?, thumbnail = ?
		 WHERE id = ? AND submission_id = ? AND type = 'photo'`,
		image, mime, ext, thumbnail, id, submissionID,
	)
	if err != nil {
		return fmt.Errorf("setting element image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting element image: %w", err)
	}
	if n == 0 {
		return ErrNotPhoto
	}
	return nil
}

// GetElementImage returns the stored image of an element and its MIME type.
// Data is nil if the element or its image does not exist.
func GetElementImage(ctx context.Context, db *sql.DB, submissionID, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM elements WHERE id = ? AND submission_id = ?`,
		id, submissionID,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting element image: %w", err)
	}
	return image, mime.String, nil
}

// GetElementThumbnail returns the stored thumbnail of an element, scoped to
// its compliance so that ids cannot be mixed across inspections. Thumbnails
// are always JPEG. Data is nil if there is none.
func GetElementThumbnail(ctx context.Context, db *sql.DB, complianceID, submissionID, id int64) ([]byte, error) {
	var thumb []byte
	err := db.QueryRowContext(ctx,
		`SELECT e.thumbnail
		 FROM elements e
		 JOIN submissions s ON s.id = e.submission_id
		 WHERE e.id = ? AND e.submission_id = ? AND s.compliance_id = ?`,
		id, submissionID, complianceID,
	).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting element thumbnail: %w", err)
	}
	return thumb, nil
}
