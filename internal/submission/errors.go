package submission

import (
	"errors"
	"fmt"
)

// ErrMalformedSubmission marks route data that cannot be shown: invalid
// JSON, a missing description or a missing item list.
var ErrMalformedSubmission = errors.New("malformed submission")

// ErrThumbnailFetchFailed matches every *ThumbnailError.
var ErrThumbnailFetchFailed = errors.New("thumbnail fetch failed")

// ThumbnailError reports a photo whose thumbnail could not be loaded. The
// asset keeps a placeholder; the view stays usable.
type ThumbnailError struct {
	ElementID int64
	Err       error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("thumbnail for element %d: %v", e.ElementID, e.Err)
}

func (e *ThumbnailError) Unwrap() []error {
	return []error{ErrThumbnailFetchFailed, e.Err}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedSubmission}, args...)...)
}
