package submission

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/erazemk/skladnost/internal/model"
)

// AssetType is the kind of an attached asset.
type AssetType string

// Asset types.
const (
	AssetPhoto AssetType = model.ElementPhoto
	AssetVideo AssetType = model.ElementVideo
	AssetVoice AssetType = model.ElementVoice
	AssetText  AssetType = model.ElementText
)

// Asset is one row of the asset table. The view owns the working set and
// mutates assets in place: Timestamp is localized on load and Src is filled
// in once a photo's thumbnail arrives.
type Asset struct {
	ID          int64
	Type        AssetType
	Caption     string
	Geo         *model.Geo
	InternalExt string
	ImageSize   int64
	Text        string
	Timestamp   time.Time

	// Src is a data URL of the thumbnail. Only photos get one.
	Src string
	// ThumbnailFailed marks a photo shown with a placeholder.
	ThumbnailFailed bool
}

// assetKind is the capability entry of one asset type.
type assetKind struct {
	label string
	icon  string
	// load fetches whatever the row needs after the table is shown. Nil
	// means nothing to fetch.
	load func(v *View, ctx context.Context, ref assetRef, a *Asset) error
}

// assetRef identifies an asset for the API.
type assetRef struct {
	complianceID int64
	submissionID int64
}

// assetKinds maps each asset type to its behavior. Adding a type means
// adding an entry here.
var assetKinds = map[AssetType]assetKind{
	AssetPhoto: {label: "Fotografija", icon: "photo", load: (*View).loadThumbnail},
	AssetVideo: {label: "Video", icon: "video"},
	AssetVoice: {label: "Glasovni zapis", icon: "voice"},
	AssetText:  {label: "Besedilo", icon: "text"},
}

// Known reports whether t has an entry in the capability table.
func (t AssetType) Known() bool {
	_, ok := assetKinds[t]
	return ok
}

// Label returns the display name of the type.
func (t AssetType) Label() string {
	if k, ok := assetKinds[t]; ok {
		return k.label
	}
	return string(t)
}

// Icon returns the CSS icon name of the type.
func (t AssetType) Icon() string {
	if k, ok := assetKinds[t]; ok {
		return k.icon
	}
	return "unknown"
}

// dataURL encodes an image as a data URL. The MIME type is sniffed when the
// API did not send one.
func dataURL(mime string, data []byte) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var (
	errEmptyThumbnail    = errors.New("empty thumbnail")
	errNoThumbnailSource = errors.New("no thumbnail source configured")
)
