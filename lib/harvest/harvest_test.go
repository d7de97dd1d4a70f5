package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"steamharvest/lib/steam"
	"steamharvest/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeStore serves the detail, catalog and enrichment endpoints from
// in-memory bodies and counts how often each identifier gets fetched.
type fakeStore struct {
	mu      sync.Mutex
	details map[string]string
	spy     map[string]string
	applist string
	hits    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		details: map[string]string{},
		spy:     map[string]string{},
		hits:    map[string]int{},
	}
}

func (f *fakeStore) setDetails(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[id] = body
}

func (f *fakeStore) detailHits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[id]
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/appdetails":
		id := r.URL.Query().Get("appids")
		f.hits[id]++
		body, ok := f.details[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	case "/api.php":
		body, ok := f.spy[r.URL.Query().Get("appid")]
		if !ok {
			body = `{"developer": ""}`
		}
		fmt.Fprint(w, body)
	case "/IStoreService/GetAppList/v1/":
		f.hits["applist"]++
		fmt.Fprint(w, f.applist)
	default:
		http.NotFound(w, r)
	}
}

func releasedGame(id, name string) string {
	return fmt.Sprintf(`{"%s": {"success": true, "data": {
		"type": "game", "name": "%s", "is_free": true,
		"developers": ["Bar"],
		"release_date": {"coming_soon": false, "date": "1 Jan, 2020"}
	}}}`, id, name)
}

func comingSoonGame(id, name string) string {
	return fmt.Sprintf(`{"%s": {"success": true, "data": {
		"type": "game", "name": "%s", "is_free": true,
		"developers": ["Bar"],
		"release_date": {"coming_soon": true, "date": "TBA"}
	}}}`, id, name)
}

func testHarness(t *testing.T, store *fakeStore) (*steam.Client, Paths) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/harvest")
	t.Cleanup(cleanup)

	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	client := steam.NewClient(steam.ClientOptions{
		Retries:      2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: time.Millisecond * 4,
		StoreBaseURL: srv.URL,
		APIBaseURL:   srv.URL,
		SpyBaseURL:   srv.URL,
	})
	return client, tempPaths(t)
}

func quickConfig() Config {
	return Config{Sleep: time.Millisecond, Seed: 1}
}

func TestRunOutcomes(t *testing.T) {
	store := newFakeStore()
	store.setDetails("1", releasedGame("1", "Foo"))
	store.setDetails("2", `{"2": {"success": true, "data": {"type": "dlc", "name": "Foo DLC"}}}`)
	store.setDetails("3", comingSoonGame("3", "Soon"))
	store.spy["1"] = `{"developer": "Bar", "owners": "1,000,000 .. 2,000,000", "ccu": 512, "tags": {"Indie": 120}}`

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}

	cfg := quickConfig()
	cfg.Enrich = true
	h := New(client, state, cfg)

	sum, err := h.Run(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Summary{Added: 1, Rejected: 1, Deferred: 1}, sum)

	rec := state.Accepted["1"]
	require.Equal(t, "Foo", rec.Name)
	require.Equal(t, "1000000 .. 2000000", rec.EstimatedOwners)
	require.EqualValues(t, 512, rec.PeakCCU)
	require.Equal(t, map[string]int{"Indie": 120}, rec.Tags)

	require.Equal(t, RejectedEntry{Name: "Foo DLC", Reason: "dlc"}, state.Rejected["2"])
	require.True(t, state.IsDeferred("3"))

	// every store was flushed on the way out
	reloaded, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Foo", reloaded.Accepted["1"].Name)
	require.Equal(t, "dlc", reloaded.Rejected["2"].Reason)
	require.True(t, reloaded.IsDeferred("3"))
}

func TestRunSkipsSettledIdentifiers(t *testing.T) {
	store := newFakeStore()
	store.setDetails("1", releasedGame("1", "Foo"))
	store.setDetails("2", `{"2": {"success": true, "data": {"type": "game", "name": "Orphan", "is_free": true, "developers": []}}}`)
	store.setDetails("3", comingSoonGame("3", "Soon"))

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}

	h := New(client, state, quickConfig())
	_, err = h.Run(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatal(err)
	}

	// a fresh harvester over the reloaded state never refetches anything
	// that already has an outcome
	reloaded, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, RejectedEntry{Name: "Orphan", Reason: "no_developer"}, reloaded.Rejected["2"])
	cfg := quickConfig()
	cfg.SkipDeferred = true
	h2 := New(client, reloaded, cfg)

	sum, err := h2.Run(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Summary{Skipped: 3}, sum)
	require.Equal(t, 1, store.detailHits("1"))
	require.Equal(t, 1, store.detailHits("2"))
	require.Equal(t, 1, store.detailHits("3"))
}

func TestDeferredIdentifierAcceptedOnceReleased(t *testing.T) {
	store := newFakeStore()
	store.setDetails("3", comingSoonGame("3", "Soon"))

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}

	h := New(client, state, quickConfig())
	sum, err := h.Run(context.Background(), []string{"3"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Summary{Deferred: 1}, sum)

	// the item ships between runs
	store.setDetails("3", releasedGame("3", "Soon"))

	reloaded, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}
	h2 := New(client, reloaded, quickConfig())
	sum, err = h2.Run(context.Background(), []string{"3"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Summary{Added: 1}, sum)
	require.False(t, reloaded.IsDeferred("3"))
	require.Equal(t, "Soon", reloaded.Accepted["3"].Name)
}

func TestEnrichmentFallsBackToDefaults(t *testing.T) {
	store := newFakeStore()
	store.setDetails("5", releasedGame("5", "Quiet"))

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}

	cfg := quickConfig()
	cfg.Enrich = true
	h := New(client, state, cfg)

	_, err = h.Run(context.Background(), []string{"5"})
	if err != nil {
		t.Fatal(err)
	}
	rec := state.Accepted["5"]
	require.Equal(t, "0 - 0", rec.EstimatedOwners)
	require.NotNil(t, rec.Tags)
	require.Empty(t, rec.Tags)
}

func TestAutosaveRotatesBackups(t *testing.T) {
	store := newFakeStore()
	store.setDetails("1", releasedGame("1", "Foo"))
	store.setDetails("5", releasedGame("5", "Quux"))

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}

	cfg := quickConfig()
	cfg.Autosave = 1
	h := New(client, state, cfg)

	_, err = h.Run(context.Background(), []string{"1", "5"})
	if err != nil {
		t.Fatal(err)
	}

	current, err := Load(paths.Dataset, map[string]Record{})
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, current, 2)

	backup, err := Load(paths.Dataset+".bak", map[string]Record{})
	if err != nil {
		t.Fatal(err)
	}
	require.NotEmpty(t, backup)
	require.LessOrEqual(t, len(backup), 2)
}

// logRecorder collects emitted message strings so tests can assert on what
// the operator was told.
type logRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (l *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (l *logRecorder) Handle(_ context.Context, r slog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, r.Message)
	return nil
}

func (l *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return l }
func (l *logRecorder) WithGroup(string) slog.Handler      { return l }

func (l *logRecorder) has(message string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == message {
			return true
		}
	}
	return false
}

func recordLogs(t *testing.T) *logRecorder {
	recorder := &logRecorder{}
	prev := slog.Default()
	slog.SetDefault(slog.New(recorder))
	t.Cleanup(func() {
		slog.SetDefault(prev)
	})
	return recorder
}

func TestRunStopsWhenRetriesExhaust(t *testing.T) {
	// no detail body registered for "9", so every request 500s until the
	// budget runs out
	store := newFakeStore()

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}
	logs := recordLogs(t)

	h := New(client, state, quickConfig())
	_, err = h.Run(context.Background(), []string{"9"})
	require.ErrorIs(t, err, steam.ErrRetriesExhausted)
	require.False(t, state.Known("9"))

	// an aborted run must not report itself as finished
	require.True(t, logs.has("scan aborted"))
	require.False(t, logs.has("scan finished"))
}

func TestEnsureUniverse(t *testing.T) {
	store := newFakeStore()
	store.applist = `{"response": {"apps": [{"appid": 1}, {"appid": 2}], "have_more_results": false}}`

	client, paths := testHarness(t, store)
	state, err := LoadState(paths)
	if err != nil {
		t.Fatal(err)
	}
	state.Universe = []string{"2", "4"}

	// a cached universe wins unless refresh is forced
	err = EnsureUniverse(context.Background(), client, state, "key", false)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, store.detailHits("applist"))

	err = EnsureUniverse(context.Background(), client, state, "key", true)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"2", "4", "1"}, state.Universe)

	persisted, err := Load(paths.AppList, []string{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, state.Universe, persisted)
}
