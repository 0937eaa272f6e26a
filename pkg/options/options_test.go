package options

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var ignoreItem = cmpopts.IgnoreFields(model.Option{}, "Item")

func TestCacheKeyDefaults(t *testing.T) {
	t.Parallel()

	got := CacheKey(model.ApiOptionSource{URL: "https://api.example.com/countries?a=1&b=2"})
	want := `{"url":"https://api.example.com/countries?a=1&b=2","itemsPath":"","labelField":"","valueField":"","saveStrategy":"value"}`
	if got != want {
		t.Fatalf("CacheKey = %s, want %s", got, want)
	}

	explicit := CacheKey(model.ApiOptionSource{
		URL:          "https://api.example.com/countries?a=1&b=2",
		SaveStrategy: model.SaveStrategyValue,
		Method:       "POST",
		Headers:      map[string]string{"Authorization": "x"},
	})
	if explicit != got {
		t.Fatalf("method and headers must not affect the key")
	}
}

func TestResolveManual(t *testing.T) {
	t.Parallel()

	got := ResolveManual([]string{"Single", "Married"})
	want := []model.Option{{Label: "Single", Value: "Single"}, {Label: "Married", Value: "Married"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ResolveManual mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractItems(t *testing.T) {
	t.Parallel()

	var payload any
	if err := json.Unmarshal([]byte(`{"data":{"items":[1,2]},"flat":[3]}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := ExtractItems(payload, "data.items"); len(got) != 2 {
		t.Fatalf("data.items len = %d, want 2", len(got))
	}
	if got := ExtractItems(payload, "data.missing"); got != nil {
		t.Fatalf("missing segment should yield nil, got %v", got)
	}
	if got := ExtractItems(payload, "flat.deeper"); got != nil {
		t.Fatalf("walking into an array should yield nil, got %v", got)
	}
	if got := ExtractItems([]any{"a"}, ""); len(got) != 1 {
		t.Fatalf("empty path should return payload array")
	}
}

func TestMapItems(t *testing.T) {
	t.Parallel()

	var items []any
	raw := `[{"name":"India","code":"IN","id":1},{"code":"US","id":2},null,"plain"]`
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	byValue := MapItems(items, model.ApiOptionSource{LabelField: "name", ValueField: "id"})
	want := []model.Option{
		{Label: "India", Value: "1"},
		{Label: `{"code":"US","id":2}`, Value: "2"},
		{Label: "plain", Value: "plain"},
	}
	if diff := cmp.Diff(want, byValue, ignoreItem); diff != "" {
		t.Fatalf("MapItems mismatch (-want +got):\n%s", diff)
	}

	byLabel := MapItems(items[:1], model.ApiOptionSource{LabelField: "name", ValueField: "code", SaveStrategy: model.SaveStrategyLabel})
	if byLabel[0].Value != "India" {
		t.Fatalf("label strategy value = %q, want India", byLabel[0].Value)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(WithClock(clock.Now))
	src := model.ApiOptionSource{URL: "https://example.com"}

	cache.Set(ctx, src, []model.Option{{Label: "a", Value: "a"}})

	clock.Advance(30 * time.Minute)
	if _, ok := cache.Get(ctx, src); !ok {
		t.Fatalf("entry at exactly TTL should still be live")
	}

	clock.Advance(time.Minute)
	if _, ok := cache.Get(ctx, src); ok {
		t.Fatalf("entry at T+31m should be a miss")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be evicted on lookup")
	}
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewCache()
	a := model.ApiOptionSource{URL: "https://example.com/a"}
	b := model.ApiOptionSource{URL: "https://example.com/b"}
	cache.Set(ctx, a, ResolveManual([]string{"x"}))
	cache.Set(ctx, b, ResolveManual([]string{"y"}))

	cache.Invalidate(ctx, &a)
	if _, ok := cache.Get(ctx, a); ok {
		t.Fatalf("a should be invalidated")
	}
	if _, ok := cache.Get(ctx, b); !ok {
		t.Fatalf("b should survive single invalidation")
	}
	cache.Invalidate(ctx, nil)
	if cache.Len() != 0 {
		t.Fatalf("Invalidate(nil) should clear everything")
	}
}

func TestCachePersistenceLoadPrunesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := store.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}

	writer := NewCache(WithStore(kv), WithClock(clock.Now))
	fresh := model.ApiOptionSource{URL: "https://example.com/fresh"}
	stale := model.ApiOptionSource{URL: "https://example.com/stale"}
	writer.Set(ctx, stale, ResolveManual([]string{"old"}))
	clock.Advance(20 * time.Minute)
	writer.Set(ctx, fresh, ResolveManual([]string{"new"}))
	clock.Advance(15 * time.Minute)

	reader := NewCache(WithStore(kv), WithClock(clock.Now))
	if err := reader.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if reader.Len() != 1 {
		t.Fatalf("Len after load = %d, want 1", reader.Len())
	}
	got, ok := reader.Get(ctx, fresh)
	if !ok || got[0].Value != "new" {
		t.Fatalf("fresh entry not restored: %v %v", got, ok)
	}

	var persisted map[string]Entry
	if _, err := store.GetJSON(ctx, kv, StorageKey, &persisted); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("pruned cache should be persisted, got %d entries", len(persisted))
	}
}

func newCountingServer(t *testing.T, body string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("X-Token") != "" {
			w.Header().Set("X-Seen-Token", r.Header.Get("X-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolveRemoteCachesAndRefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, hits := newCountingServer(t, `{"data":{"items":[{"name":"India","code":"IN"},{"name":"Spain","code":"ES"}]}}`, http.StatusOK)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	resolver := NewResolver(
		WithHTTPClient(srv.Client()),
		WithCache(NewCache(WithClock(clock.Now))),
	)
	src := model.ApiOptionSource{URL: srv.URL, ItemsPath: "data.items", LabelField: "name", ValueField: "code"}

	first, err := resolver.ResolveRemote(ctx, src, false)
	if err != nil {
		t.Fatalf("ResolveRemote returned error: %v", err)
	}
	want := []model.Option{{Label: "India", Value: "IN"}, {Label: "Spain", Value: "ES"}}
	if diff := cmp.Diff(want, first, ignoreItem); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	// A second field sharing the same config hits the cache.
	shared := src
	shared.Headers = map[string]string{"X-Token": "abc"}
	if _, err := resolver.ResolveRemote(ctx, shared, false); err != nil {
		t.Fatalf("ResolveRemote returned error: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}

	if _, err := resolver.ResolveRemote(ctx, src, true); err != nil {
		t.Fatalf("forced refresh: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("hits after force = %d, want 2", got)
	}

	clock.Advance(31 * time.Minute)
	if _, err := resolver.ResolveRemote(ctx, src, false); err != nil {
		t.Fatalf("ResolveRemote after TTL: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Fatalf("hits after TTL = %d, want 3", got)
	}
}

func TestResolveRemoteSharedFetchSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"label":"India","value":"IN"}]`))
	}))
	t.Cleanup(srv.Close)

	resolver := NewResolver(WithHTTPClient(srv.Client()))
	src := model.ApiOptionSource{URL: srv.URL, LabelField: "label", ValueField: "value"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.ResolveRemote(firstCtx, src, false)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		opts []model.Option
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		opts, err := resolver.ResolveRemote(context.Background(), src, false)
		second <- outcome{opts, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, ErrFetch) {
		t.Fatalf("cancelled caller: expected ErrFetch, got %v", err)
	}
	close(release)

	got := <-second
	if got.err != nil {
		t.Fatalf("waiting caller returned error: %v", got.err)
	}
	want := []model.Option{{Label: "India", Value: "IN"}}
	if diff := cmp.Diff(want, got.opts, ignoreItem); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("hits = %d, want 1", n)
	}
}

func TestResolveRemoteFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	failing, _ := newCountingServer(t, `oops`, http.StatusInternalServerError)
	empty, _ := newCountingServer(t, `{"items":[]}`, http.StatusOK)

	resolver := NewResolver(WithHTTPClient(http.DefaultClient))

	if _, err := resolver.ResolveRemote(ctx, model.ApiOptionSource{URL: failing.URL}, false); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if _, err := resolver.ResolveRemote(ctx, model.ApiOptionSource{URL: empty.URL, ItemsPath: "items"}, false); !errors.Is(err, ErrNoOptions) {
		t.Fatalf("expected ErrNoOptions, got %v", err)
	}
	if resolver.Cache().Len() != 0 {
		t.Fatalf("failures must not be cached")
	}
}

func TestLoadFieldStates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ok, _ := newCountingServer(t, `["a","b"]`, http.StatusOK)
	failing, _ := newCountingServer(t, `{}`, http.StatusBadGateway)
	empty, _ := newCountingServer(t, `{"list":[]}`, http.StatusOK)

	resolver := NewResolver()
	tracker := NewTracker()

	manual := LoadField(ctx, resolver, tracker, model.FieldDefinition{
		Name: "status", Type: model.FieldTypeSelect, Options: []string{"Open"},
	}, false)
	if len(manual.Options) != 1 || manual.Error != "" || manual.Loading {
		t.Fatalf("manual state = %+v", manual)
	}

	remote := func(name, url, path string) model.FieldDefinition {
		return model.FieldDefinition{
			Name:         name,
			Type:         model.FieldTypeSelect,
			SelectSource: model.SelectSourceAPI,
			APIOptions:   &model.ApiOptionSource{URL: url, ItemsPath: path},
		}
	}

	if state := LoadField(ctx, resolver, tracker, remote("letters", ok.URL, ""), false); len(state.Options) != 2 || state.Error != "" {
		t.Fatalf("ok state = %+v", state)
	}
	if state := LoadField(ctx, resolver, tracker, remote("broken", failing.URL, ""), false); state.Error != MessageLoadFailed || len(state.Options) != 0 {
		t.Fatalf("failing state = %+v", state)
	}
	if state := LoadField(ctx, resolver, tracker, remote("none", empty.URL, "list"), false); state.Error != MessageNoOptions {
		t.Fatalf("empty state = %+v", state)
	}
}

func TestTrackerDiscardsStaleTokens(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	first := tracker.Begin("country")
	second := tracker.Begin("country")

	if !tracker.State("country").Loading {
		t.Fatalf("expected loading state")
	}
	if tracker.Complete("country", first, ResolveManual([]string{"old"}), "") {
		t.Fatalf("stale completion should be discarded")
	}
	if !tracker.Complete("country", second, ResolveManual([]string{"new"}), "") {
		t.Fatalf("latest completion should apply")
	}
	state := tracker.State("country")
	if state.Loading || state.Options[0].Value != "new" {
		t.Fatalf("state = %+v", state)
	}
}

func TestPresetsDeduplicateByCacheKey(t *testing.T) {
	t.Parallel()

	src := &model.ApiOptionSource{URL: "https://example.com/countries", LabelField: "name"}
	same := &model.ApiOptionSource{URL: "https://example.com/countries", LabelField: "name", SaveStrategy: model.SaveStrategyValue}
	other := &model.ApiOptionSource{URL: "https://example.com/cities"}

	fields := []model.FieldDefinition{
		{Name: "a", Type: model.FieldTypeSelect, SelectSource: model.SelectSourceAPI, APIOptions: src},
		{Name: "b", Type: model.FieldTypeSelect, SelectSource: model.SelectSourceAPI, APIOptions: same},
		{Name: "c", Type: model.FieldTypeSelect, SelectSource: model.SelectSourceAPI, APIOptions: other},
		{Name: "d", Type: model.FieldTypeText},
	}
	got := Presets(fields)
	if len(got) != 2 || got[0].URL != src.URL || got[1].URL != other.URL {
		t.Fatalf("Presets = %+v", got)
	}
}
