package submission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

type fakeFetcher struct {
	mu       sync.Mutex
	calls    []int64
	fail     map[int64]error
	mime     string
	block    chan struct{}
	started  chan int64
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) DownloadElementThumbnail(ctx context.Context, complianceID, submissionID, elementID int64) ([]byte, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, elementID)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.started != nil {
		f.started <- elementID
	}
	if f.block != nil {
		// Ignore ctx: the response arrives late on purpose.
		<-f.block
	}
	if err := f.fail[elementID]; err != nil {
		return nil, "", err
	}
	return pngMagic, f.mime, nil
}

func (f *fakeFetcher) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	opts     []NotifyOptions
}

func (n *recordingNotifier) Open(message, action string, opts NotifyOptions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message+"|"+action)
	n.opts = append(n.opts, opts)
}

const testCompliance = `{"id": 4, "project_id": 1, "name": "Dust inspection", "status": "open"}`

func routeData(submission string) RouteData {
	return RouteData{
		Compliance: Resolved{Data: []byte(testCompliance)},
		Submission: Resolved{Data: []byte(submission)},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runView initializes a view with the given emissions and waits for it to
// settle.
func runView(t *testing.T, opts Options, emissions ...RouteData) *View {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	v := New(opts)
	t.Cleanup(v.Teardown)

	stream := make(chan RouteData, len(emissions))
	for _, e := range emissions {
		stream <- e
	}
	close(stream)
	v.Init(context.Background(), stream)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return v
}

const mixedSubmission = `{
	"id": 9,
	"compliance_id": 4,
	"description": "Line1\nLine2",
	"items": [
		{"id": 1, "type": "photo", "timestamp": "2020-01-01T00:00:00Z", "caption": "Gate"},
		{"id": 2, "type": "video", "timestamp": "2020-01-01T00:05:00Z"},
		{"id": 3, "type": "photo", "timestamp": "2020-01-01T00:10:00Z"},
		{"id": 4, "type": "voice", "timestamp": "2020-01-01T00:15:00Z"},
		{"id": 5, "type": "text", "timestamp": "2020-01-01T00:20:00Z", "text": "All clear"}
	]
}`

func TestInitBuildsTable(t *testing.T) {
	v := runView(t, Options{Thumbnails: &fakeFetcher{}}, routeData(mixedSubmission))
	st := v.State()

	if st.Loading {
		t.Error("expected loading to be complete")
	}
	if len(st.Assets) != 5 {
		t.Fatalf("expected 5 assets, got %d", len(st.Assets))
	}
	if st.Params.TotalListItems != 5 || st.Params.CurrentPage != 1 || st.Params.PageSize != UnpagedSize {
		t.Errorf("unexpected params: %+v", st.Params)
	}
	if st.Table == nil {
		t.Fatal("expected a table configuration")
	}
	if st.Table.Component != RowComponent || len(st.Table.Page()) != 5 {
		t.Errorf("unexpected table: component=%q rows=%d", st.Table.Component, len(st.Table.Page()))
	}
	rc, ok := st.Table.Context.(RowContext)
	if !ok {
		t.Fatalf("expected RowContext, got %T", st.Table.Context)
	}
	if rc.Inspection.ID != 4 || rc.ElementID != 9 {
		t.Errorf("unexpected row context: inspection=%d element=%d", rc.Inspection.ID, rc.ElementID)
	}
	if len(st.Table.Columns) != 4 {
		t.Errorf("expected 4 columns, got %d", len(st.Table.Columns))
	}
	if st.Compliance.Name != "Dust inspection" {
		t.Errorf("expected compliance to be decoded, got %+v", st.Compliance)
	}
}

func TestTimestampsAreLocalized(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	v := runView(t, Options{Thumbnails: &fakeFetcher{}, Location: loc}, routeData(mixedSubmission))

	got := v.State().Assets[0].Timestamp
	if s := got.Format("2006-01-02T15:04:05"); s != "2019-12-31T19:00:00" {
		t.Errorf("expected 2019-12-31T19:00:00, got %s", s)
	}
	if got.Location() != loc {
		t.Errorf("expected location %v, got %v", loc, got.Location())
	}
}

func TestInvalidTimestampIsZero(t *testing.T) {
	sub := `{"id": 1, "description": "", "items": [{"id": 1, "type": "text", "timestamp": "yesterday"}]}`
	v := runView(t, Options{}, routeData(sub))

	st := v.State()
	if st.Err != nil {
		t.Fatalf("expected bad timestamp not to fail the view, got %v", st.Err)
	}
	if !st.Assets[0].Timestamp.IsZero() {
		t.Errorf("expected zero timestamp, got %v", st.Assets[0].Timestamp)
	}
}

func TestTimestampFormats(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	sub := `{"id": 1, "description": "", "items": [
		{"id": 1, "type": "text", "timestamp": "2020-01-01T00:00:00Z"},
		{"id": 2, "type": "text", "timestamp": "2020-01-01T00:00:00"},
		{"id": 3, "type": "text", "timestamp": 1577836800000},
		{"id": 4, "type": "text", "timestamp": "2020-01-01"},
		{"id": 5, "type": "text", "timestamp": null},
		{"id": 6, "type": "text"}]}`
	v := runView(t, Options{Location: loc}, routeData(sub))

	st := v.State()
	if st.Err != nil {
		t.Fatalf("expected timestamps to decode, got %v", st.Err)
	}
	want := []string{
		"2019-12-31T19:00:00",
		"2020-01-01T00:00:00",
		"2019-12-31T19:00:00",
		"2020-01-01T00:00:00",
	}
	for i, w := range want {
		if got := st.Assets[i].Timestamp.Format("2006-01-02T15:04:05"); got != w {
			t.Errorf("asset %d: expected %s, got %s", i+1, w, got)
		}
		if st.Assets[i].Timestamp.Location() != loc {
			t.Errorf("asset %d: expected location %v", i+1, loc)
		}
	}
	for _, a := range st.Assets[4:] {
		if !a.Timestamp.IsZero() {
			t.Errorf("asset %d: expected zero timestamp, got %v", a.ID, a.Timestamp)
		}
	}
}

func TestDescriptionMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Line1\nLine2", "Line1<br />Line2"},
		{"a\n\nb", "a<br /><br />b"},
		{"no breaks", "no breaks"},
		{"<script>x</script>\nok", "&lt;script&gt;x&lt;/script&gt;<br />ok"},
	}
	for _, tt := range tests {
		if got := descriptionMarkup(tt.in); got != tt.want {
			t.Errorf("descriptionMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	v := runView(t, Options{Thumbnails: &fakeFetcher{}}, routeData(mixedSubmission))
	if d := v.State().Submission.Description; d != "Line1<br />Line2" {
		t.Errorf("expected converted description, got %q", d)
	}
}

func TestEmptySubmissionHasNoTable(t *testing.T) {
	var refreshes atomic.Int32
	v := runView(t, Options{Refresh: func() { refreshes.Add(1) }},
		routeData(`{"id": 2, "description": "nothing", "items": []}`))

	st := v.State()
	if st.Table != nil {
		t.Errorf("expected no table for an empty submission, got %+v", st.Table)
	}
	if st.Params.TotalListItems != 0 {
		t.Errorf("expected 0 total items, got %d", st.Params.TotalListItems)
	}
	if st.Loading {
		t.Error("expected loading to be complete")
	}
	if refreshes.Load() != 1 {
		t.Errorf("expected 1 refresh, got %d", refreshes.Load())
	}
}

func TestOnlyPhotosGetThumbnails(t *testing.T) {
	f := &fakeFetcher{mime: "image/png"}
	var refreshes atomic.Int32
	v := runView(t, Options{Thumbnails: f, Refresh: func() { refreshes.Add(1) }}, routeData(mixedSubmission))

	for _, a := range v.State().Assets {
		switch a.Type {
		case AssetPhoto:
			if !strings.HasPrefix(a.Src, "data:image/png;base64,") {
				t.Errorf("photo %d: expected data URL, got %q", a.ID, a.Src)
			}
		default:
			if a.Src != "" {
				t.Errorf("%s %d: expected no src, got %q", a.Type, a.ID, a.Src)
			}
		}
	}

	calls := f.called()
	if len(calls) != 2 {
		t.Errorf("expected 2 fetches, got %v", calls)
	}
	// One refresh for the table and one per thumbnail.
	if refreshes.Load() != 3 {
		t.Errorf("expected 3 refreshes, got %d", refreshes.Load())
	}
}

func TestThumbnailMIMEIsSniffed(t *testing.T) {
	v := runView(t, Options{Thumbnails: &fakeFetcher{}}, routeData(mixedSubmission))

	if src := v.State().Assets[0].Src; !strings.HasPrefix(src, "data:image/png;base64,") {
		t.Errorf("expected sniffed PNG data URL, got %q", src)
	}
}

func TestThumbnailFailureLeavesPlaceholder(t *testing.T) {
	f := &fakeFetcher{fail: map[int64]error{3: errors.New("503 from upstream")}}
	v := runView(t, Options{Thumbnails: f}, routeData(mixedSubmission))

	st := v.State()
	if st.Err != nil {
		t.Fatalf("thumbnail failure must not fail the view: %v", st.Err)
	}
	if st.Assets[0].Src == "" || st.Assets[0].ThumbnailFailed {
		t.Error("expected the other photo to load")
	}
	failed := st.Assets[2]
	if failed.Src != "" || !failed.ThumbnailFailed {
		t.Errorf("expected placeholder for photo 3, got %+v", failed)
	}

	failures := v.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", failures)
	}
	if !errors.Is(failures[0], ErrThumbnailFetchFailed) {
		t.Errorf("expected ErrThumbnailFetchFailed, got %v", failures[0])
	}
	var terr *ThumbnailError
	if !errors.As(failures[0], &terr) || terr.ElementID != 3 {
		t.Errorf("expected ThumbnailError for element 3, got %v", failures[0])
	}
}

func TestMissingFetcherFailsPhotosOnly(t *testing.T) {
	v := runView(t, Options{}, routeData(mixedSubmission))

	if n := len(v.Failures()); n != 2 {
		t.Errorf("expected 2 failures without a fetcher, got %d", n)
	}
}

func TestMalformedSubmissionNotifies(t *testing.T) {
	tests := []struct {
		name string
		data RouteData
	}{
		{"missing description", routeData(`{"id": 1, "items": []}`)},
		{"null description", routeData(`{"id": 1, "description": null, "items": []}`)},
		{"missing items", routeData(`{"id": 1, "description": "x"}`)},
		{"invalid json", routeData(`{"id": `)},
		{"invalid compliance", RouteData{
			Compliance: Resolved{Data: []byte(`[]`)},
			Submission: Resolved{Data: []byte(`{"id": 1, "description": "x", "items": []}`)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			v := runView(t, Options{Notifier: n}, tt.data)

			st := v.State()
			if !errors.Is(st.Err, ErrMalformedSubmission) {
				t.Errorf("expected ErrMalformedSubmission, got %v", st.Err)
			}
			if st.Table != nil || st.Loading {
				t.Errorf("expected no table and loading complete, got table=%v loading=%v", st.Table, st.Loading)
			}
			if len(n.messages) != 1 {
				t.Fatalf("expected 1 notification, got %v", n.messages)
			}
			if n.opts[0].Duration != 2000*time.Millisecond {
				t.Errorf("expected 2000ms toast, got %v", n.opts[0].Duration)
			}
		})
	}
}

func TestNotify(t *testing.T) {
	n := &recordingNotifier{}
	v := New(Options{Notifier: n})

	v.Notify("Shranjeno", "V redu")

	if len(n.messages) != 1 || n.messages[0] != "Shranjeno|V redu" {
		t.Errorf("unexpected notifications: %v", n.messages)
	}
	if n.opts[0].Duration != NotifyDuration {
		t.Errorf("expected %v, got %v", NotifyDuration, n.opts[0].Duration)
	}

	// Without a notifier Notify is a no-op.
	New(Options{}).Notify("x", "y")
}

func TestTeardownAbandonsInFlightThumbnails(t *testing.T) {
	f := &fakeFetcher{
		block:   make(chan struct{}),
		started: make(chan int64, 2),
	}
	var refreshes atomic.Int32
	v := New(Options{Thumbnails: f, Refresh: func() { refreshes.Add(1) }, Logger: quietLogger()})

	stream := make(chan RouteData, 1)
	stream <- routeData(mixedSubmission)
	close(stream)
	v.Init(context.Background(), stream)

	for range 2 {
		select {
		case <-f.started:
		case <-time.After(5 * time.Second):
			t.Fatal("thumbnail fetches did not start")
		}
	}

	v.Teardown()
	before := refreshes.Load()
	close(f.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	for _, a := range v.State().Assets {
		if a.Src != "" || a.ThumbnailFailed {
			t.Errorf("asset %d mutated after teardown: %+v", a.ID, a)
		}
	}
	if got := refreshes.Load(); got != before {
		t.Errorf("expected no refresh after teardown, got %d more", got-before)
	}
}

func TestTeardownBeforeInit(t *testing.T) {
	v := New(Options{Logger: quietLogger()})
	v.Teardown()

	stream := make(chan RouteData, 1)
	stream <- routeData(mixedSubmission)
	v.Init(context.Background(), stream)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := v.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !v.State().Loading {
		t.Error("expected a torn down view to ignore route data")
	}
}

func TestReemissionReplacesState(t *testing.T) {
	second := `{"id": 10, "description": "second", "items": [{"id": 7, "type": "photo", "timestamp": "2021-06-01T08:00:00Z"}]}`
	v := runView(t, Options{Thumbnails: &fakeFetcher{}}, routeData(mixedSubmission), routeData(second))

	st := v.State()
	if st.Submission.ID != 10 {
		t.Errorf("expected the latest submission, got %d", st.Submission.ID)
	}
	if len(st.Assets) != 1 || st.Params.TotalListItems != 1 {
		t.Errorf("expected 1 asset after re-emission, got %d (total %d)", len(st.Assets), st.Params.TotalListItems)
	}
	if st.Assets[0].Src == "" {
		t.Error("expected the new photo to load")
	}
}

func TestMaxConcurrentLimitsFanOut(t *testing.T) {
	sub := `{"id": 1, "description": "", "items": [
		{"id": 1, "type": "photo", "timestamp": "2020-01-01T00:00:00Z"},
		{"id": 2, "type": "photo", "timestamp": "2020-01-01T00:00:00Z"},
		{"id": 3, "type": "photo", "timestamp": "2020-01-01T00:00:00Z"},
		{"id": 4, "type": "photo", "timestamp": "2020-01-01T00:00:00Z"}
	]}`
	f := &fakeFetcher{}
	v := runView(t, Options{Thumbnails: f, MaxConcurrent: 1}, routeData(sub))

	if p := f.peak.Load(); p != 1 {
		t.Errorf("expected at most 1 fetch in flight, got %d", p)
	}
	for _, a := range v.State().Assets {
		if a.Src == "" {
			t.Errorf("photo %d did not load", a.ID)
		}
	}
}

func TestAssetTypeCapabilities(t *testing.T) {
	if !AssetPhoto.Known() || AssetType("hologram").Known() {
		t.Error("unexpected Known result")
	}
	if AssetVoice.Label() != "Glasovni zapis" {
		t.Errorf("unexpected voice label %q", AssetVoice.Label())
	}
	if AssetType("hologram").Label() != "hologram" || AssetType("hologram").Icon() != "unknown" {
		t.Error("unknown types should fall back to their name")
	}
	if assetKinds[AssetPhoto].load == nil {
		t.Error("photos must load a thumbnail")
	}
	for _, typ := range []AssetType{AssetVideo, AssetVoice, AssetText} {
		if assetKinds[typ].load != nil {
			t.Errorf("%s should not load anything", typ)
		}
	}
}
