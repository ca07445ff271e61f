// Package submission implements the submission detail view: it turns
// route-resolved compliance and submission data into an asset table and
// loads photo thumbnails concurrently for as long as the view lives.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/table"
)

// UnpagedSize is the page size used for the asset table. Every asset is
// rendered on one page.
const UnpagedSize = 100000

// NotifyDuration is how long a toast stays visible.
const NotifyDuration = 2000 * time.Millisecond

// RowComponent names the template that renders one asset row.
const RowComponent = "asset_row"

// Columns of the asset table.
var Columns = []table.Column{
	{Name: "Gradivo", Value: "internalExt", Width: "col-2", NoSort: true},
	{Name: "Opis", Value: "caption", Width: "col-4", NoSort: true},
	{Name: "UTM koordinate", Value: "geo", Width: "col-3", NoSort: true},
	{Name: "Dejanja", Value: "actions", Width: "col-3", NoSort: true},
}

// Resolved wraps one raw payload delivered by the route resolver.
type Resolved struct {
	Data json.RawMessage
}

// RouteData is one emission of the route resolver.
type RouteData struct {
	Compliance Resolved
	Submission Resolved
}

// ThumbnailFetcher downloads the thumbnail of a submission element.
type ThumbnailFetcher interface {
	DownloadElementThumbnail(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error)
}

// NotifyOptions are passed to the notifier with every message.
type NotifyOptions struct {
	Duration time.Duration
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Open(message, action string, opts NotifyOptions)
}

// Session is the state of the signed-in user the view is rendered for.
type Session struct {
	CurrentProject *model.Project
	Username       string
}

// RowContext is handed to every asset row.
type RowContext struct {
	Inspection *model.Compliance
	ElementID  int64
}

// Submission is the view's working copy of a submission. Description holds
// escaped HTML with line breaks.
type Submission struct {
	ID              int64
	ComplianceID    int64
	Description     string
	SubmittedByName string
	SubmittedAt     time.Time
	Items           []*Asset
}

// Options configure a View.
type Options struct {
	Session    Session
	Thumbnails ThumbnailFetcher
	Notifier   Notifier
	// Location is the zone timestamps are shown in. Nil means time.Local.
	Location *time.Location
	// Refresh is called after every state change. It must not call Teardown.
	Refresh func()
	// MaxConcurrent caps parallel thumbnail fetches. 0 is unbounded.
	MaxConcurrent int
	// FetchTimeout bounds a single thumbnail fetch. 0 means no timeout.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// View is the controller of one submission detail page. Create it with New,
// start it with Init and release it with Teardown.
type View struct {
	session       Session
	thumbs        ThumbnailFetcher
	notifier      Notifier
	loc           *time.Location
	refresh       func()
	maxConcurrent int
	fetchTimeout  time.Duration
	log           *slog.Logger

	// refreshMu serializes refresh calls with Teardown.
	refreshMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	closed      bool
	cancel      context.CancelFunc
	genCancel   context.CancelFunc
	group       *errgroup.Group
	subDone     chan struct{}
	loading     bool
	compliance  *model.Compliance
	submission  *Submission
	assets      []*Asset
	params      table.Params
	tableData   *table.Object[*Asset]
	err         error
	failures    []error
}

// New creates a view in the loading state.
func New(opts Options) *View {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		session:       opts.Session,
		thumbs:        opts.Thumbnails,
		notifier:      opts.Notifier,
		loc:           loc,
		refresh:       opts.Refresh,
		maxConcurrent: opts.MaxConcurrent,
		fetchTimeout:  opts.FetchTimeout,
		log:           logger,
		subDone:       make(chan struct{}),
		loading:       true,
	}
}

// Init subscribes to the route data stream. Every emission replaces the
// view state and abandons thumbnail fetches of the previous emission. The
// subscription ends when the stream is closed, ctx is done or the view is
// torn down. Init has effect only once.
func (v *View) Init(ctx context.Context, stream <-chan RouteData) {
	v.mu.Lock()
	if v.initialized {
		v.mu.Unlock()
		v.log.Warn("submission view initialized twice")
		return
	}
	v.initialized = true
	if v.closed {
		v.mu.Unlock()
		close(v.subDone)
		return
	}
	viewCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	go func() {
		defer close(v.subDone)
		for {
			select {
			case <-viewCtx.Done():
				return
			case data, ok := <-stream:
				if !ok {
					return
				}
				if err := v.apply(viewCtx, data); err != nil {
					v.fail(err)
				}
			}
		}
	}()
}

// apply installs one emission of route data and starts the asset loads.
func (v *View) apply(ctx context.Context, data RouteData) error {
	compliance, sub, err := decode(data, v.loc, v.log)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	if v.genCancel != nil {
		v.genCancel()
	}
	genCtx, genCancel := context.WithCancel(ctx)
	v.genCancel = genCancel

	v.compliance = compliance
	v.submission = sub
	v.assets = sub.Items
	v.params = table.Params{
		TotalListItems: len(v.assets),
		CurrentPage:    1,
		PageSize:       UnpagedSize,
	}
	v.tableData = table.New(RowComponent, v.assets, v.params,
		RowContext{Inspection: compliance, ElementID: sub.ID}, Columns...)
	v.loading = false
	v.err = nil
	v.failures = nil

	g := &errgroup.Group{}
	if v.maxConcurrent > 0 {
		g.SetLimit(v.maxConcurrent)
	}
	v.group = g
	assets := v.assets
	v.mu.Unlock()

	v.detectChanges()

	ref := assetRef{complianceID: compliance.ID, submissionID: sub.ID}
	for _, a := range assets {
		kind, ok := assetKinds[a.Type]
		if !ok {
			v.log.Warn("unknown asset type", "element", a.ID, "type", a.Type)
			continue
		}
		if kind.load == nil {
			continue
		}
		g.Go(func() error {
			return kind.load(v, genCtx, ref, a)
		})
	}
	return nil
}

// loadThumbnail fetches a photo's thumbnail and stores it as a data URL on
// the asset. Failures mark the asset and are recorded, never returned to
// the group, so one failed photo does not affect the others.
func (v *View) loadThumbnail(ctx context.Context, ref assetRef, a *Asset) error {
	if ctx.Err() != nil {
		return nil
	}
	fetchCtx := ctx
	if v.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, v.fetchTimeout)
		defer cancel()
	}

	var data []byte
	var mime string
	err := errNoThumbnailSource
	if v.thumbs != nil {
		data, mime, err = v.thumbs.DownloadElementThumbnail(fetchCtx, ref.complianceID, ref.submissionID, a.ID)
	}
	if err == nil && len(data) == 0 {
		err = errEmptyThumbnail
	}

	v.mu.Lock()
	if v.closed || ctx.Err() != nil {
		// Torn down or superseded by a newer emission.
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		terr := &ThumbnailError{ElementID: a.ID, Err: err}
		a.ThumbnailFailed = true
		v.failures = append(v.failures, terr)
		v.mu.Unlock()
		v.log.Warn("failed to load thumbnail",
			"compliance", ref.complianceID, "submission", ref.submissionID, "element", a.ID, "error", err)
	} else {
		a.Src = dataURL(mime, data)
		v.mu.Unlock()
	}

	v.detectChanges()
	return nil
}

// fail records an emission that could not be shown and tells the user.
func (v *View) fail(err error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.err = err
	v.loading = false
	v.mu.Unlock()

	v.log.Error("failed to load submission", "error", err)
	if errors.Is(err, ErrMalformedSubmission) {
		v.Notify("Oddaje ni mogoče prikazati: podatki so nepopolni.", "Zapri")
	} else {
		v.Notify("Oddaje ni mogoče prikazati.", "Zapri")
	}
	v.detectChanges()
}

// detectChanges runs the refresh hook unless the view is torn down.
func (v *View) detectChanges() {
	if v.refresh == nil {
		return
	}
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	v.refresh()
}

// Notify shows a toast with an action label.
func (v *View) Notify(message, action string) {
	if v.notifier == nil {
		return
	}
	v.notifier.Open(message, action, NotifyOptions{Duration: NotifyDuration})
}

// Wait blocks until the route stream is drained and every load of the
// current emission has finished, or ctx is done. It must be called after
// Init.
func (v *View) Wait(ctx context.Context) error {
	select {
	case <-v.subDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	v.mu.Lock()
	g := v.group
	v.mu.Unlock()
	if g == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown ends the subscription and abandons in-flight loads. After it
// returns the view state no longer changes and Refresh is not called again.
func (v *View) Teardown() {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.genCancel != nil {
		v.genCancel()
	}
	if v.cancel != nil {
		v.cancel()
	}
}

// Failures returns the thumbnail errors of the current emission.
func (v *View) Failures() []error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]error(nil), v.failures...)
}

// State is a consistent copy of the view for rendering.
type State struct {
	Session    Session
	Loading    bool
	Err        error
	Compliance *model.Compliance
	Submission *Submission
	Assets     []Asset
	Params     table.Params
	// Table is nil when the submission has no assets.
	Table *table.Object[Asset]
}

// State returns a snapshot of the view.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := State{
		Session:    v.session,
		Loading:    v.loading,
		Err:        v.err,
		Compliance: v.compliance,
		Params:     v.params,
	}
	if v.submission != nil {
		sub := *v.submission
		sub.Items = nil
		st.Submission = &sub
	}
	if len(v.assets) > 0 {
		st.Assets = make([]Asset, len(v.assets))
		for i, a := range v.assets {
			st.Assets[i] = *a
		}
	}
	if v.tableData != nil {
		st.Table = table.New(v.tableData.Component, st.Assets, v.tableData.Params,
			v.tableData.Context, v.tableData.Columns...)
	}
	return st
}

type wireSubmission struct {
	ID              int64        `json:"id"`
	ComplianceID    int64        `json:"compliance_id"`
	Description     *string      `json:"description"`
	SubmittedByName string       `json:"submitted_by_name"`
	SubmittedAt     time.Time    `json:"submitted_at"`
	Items           *[]wireAsset `json:"items"`
}

type wireAsset struct {
	ID          int64           `json:"id"`
	Type        AssetType       `json:"type"`
	Caption     string          `json:"caption"`
	Geo         *model.Geo      `json:"geo"`
	Timestamp   json.RawMessage `json:"timestamp"`
	InternalExt string          `json:"internal_ext"`
	ImageSize   int64           `json:"image_size"`
	Text        string          `json:"text"`
}

// decode turns raw route data into the view's working set.
func decode(data RouteData, loc *time.Location, logger *slog.Logger) (*model.Compliance, *Submission, error) {
	var compliance model.Compliance
	if err := json.Unmarshal(data.Compliance.Data, &compliance); err != nil {
		return nil, nil, malformed("compliance payload: %v", err)
	}

	var ws wireSubmission
	if err := json.Unmarshal(data.Submission.Data, &ws); err != nil {
		return nil, nil, malformed("submission payload: %v", err)
	}
	if ws.Description == nil {
		return nil, nil, malformed("submission %d has no description", ws.ID)
	}
	if ws.Items == nil {
		return nil, nil, malformed("submission %d has no item list", ws.ID)
	}

	sub := &Submission{
		ID:              ws.ID,
		ComplianceID:    ws.ComplianceID,
		Description:     descriptionMarkup(*ws.Description),
		SubmittedByName: ws.SubmittedByName,
		SubmittedAt:     ws.SubmittedAt.In(loc),
		Items:           make([]*Asset, 0, len(*ws.Items)),
	}
	for _, w := range *ws.Items {
		a := &Asset{
			ID:          w.ID,
			Type:        w.Type,
			Caption:     w.Caption,
			Geo:         w.Geo,
			InternalExt: w.InternalExt,
			ImageSize:   w.ImageSize,
			Text:        w.Text,
		}
		ts, err := localTime(w.Timestamp, loc)
		if err != nil {
			logger.Warn("invalid asset timestamp", "element", w.ID, "timestamp", string(w.Timestamp), "error", err)
		}
		a.Timestamp = ts
		sub.Items = append(sub.Items, a)
	}
	return &compliance, sub, nil
}

// localLayouts are accepted for wire timestamps without a zone offset.
// Such timestamps are read as local time in the display location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// localTime interprets a wire timestamp in loc. The wire value is an
// RFC 3339 string, a zoneless date-time string or a number of milliseconds
// since the Unix epoch. An empty or null timestamp yields the zero time.
func localTime(wire json.RawMessage, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(string(wire))
	if raw == "" || raw == "null" || raw == `""` {
		return time.Time{}, nil
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		return time.UnixMilli(int64(ms)).In(loc), nil
	}

	var str string
	if err := json.Unmarshal(wire, &str); err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, str, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", str)
}

// descriptionMarkup escapes the description and turns newlines into line
// breaks.
func descriptionMarkup(desc string) string {
	return strings.ReplaceAll(html.EscapeString(desc), "\n", "<br />")
}
