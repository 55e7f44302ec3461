package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/bundles"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
)

func testBundle() *bundles.Bundle {
	return &bundles.Bundle{
		Name: "acme",
		AssetCategories: []bundles.AssetCategory{
			{Name: "logos", Title: "Logos", AllowedTypes: []string{"png", "svg"}},
		},
		SoundCues: []bundles.SoundCue{{Name: "goal", Assignable: true}},
	}
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	root := t.TempDir()
	reg := replicant.NewRegistry(nil, logging.NewNop())
	table, err := NewTable(reg, root, []*bundles.Bundle{testBundle()})
	require.NoError(t, err)
	return table
}

func digestOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type changeLog struct {
	mu      sync.Mutex
	changes []replicant.Change[Record]
}

func (c *changeLog) record(change replicant.Change[Record]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
}

func (c *changeLog) snapshot() []replicant.Change[Record] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]replicant.Change[Record], len(c.changes))
	copy(out, c.changes)
	return out
}

func startRegistry(t *testing.T, table *Table, debounce time.Duration) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan Event, 64)
	watcher := NewWatcher(table.Categories(), logging.NewNop())
	registry := NewRegistry(table, NewHasher(), debounce, 2, logging.NewNop())
	go func() { _ = watcher.Run(ctx, events) }()
	go func() { _ = registry.Run(ctx, events) }()

	require.Eventually(t, registry.Committed, 5*time.Second, 10*time.Millisecond)
	return registry
}

func TestParseRecord(t *testing.T) {
	rec := ParseRecord("/srv/assets", "/srv/assets/acme/sounds/foo.mp3", "abc")
	assert.Equal(t, Record{
		Digest:    "abc",
		BaseName:  "foo.mp3",
		Extension: ".mp3",
		Name:      "foo",
		Namespace: "acme",
		Category:  "sounds",
		URL:       "/assets/acme/sounds/foo.mp3",
	}, rec)

	decomposed := ParseRecord("/srv/assets", "/srv/assets/acme/logos/cafe\u0301 logo.png", "abc")
	assert.Equal(t, "caf\u00e9 logo.png", decomposed.BaseName)
	assert.Equal(t, "/assets/acme/logos/caf%C3%A9%20logo.png", decomposed.URL)

	assert.Panics(t, func() { ParseRecord("/srv/assets", "/srv/assets/acme/foo.mp3", "") })
	assert.Panics(t, func() { ParseRecord("/srv/assets", "/elsewhere/acme/sounds/foo.mp3", "") })
}

func TestCategoryMatches(t *testing.T) {
	c := Category{Namespace: "acme", Name: "logos", AllowedTypes: []string{"png"}, Dir: "/srv/assets/acme/logos"}

	assert.True(t, c.Matches("/srv/assets/acme/logos/a.png"))
	assert.True(t, c.Matches("/srv/assets/acme/logos/A.PNG"))
	assert.False(t, c.Matches("/srv/assets/acme/logos/a.jpg"))
	assert.False(t, c.Matches("/srv/assets/acme/logos/.hidden.png"))
	assert.False(t, c.Matches("/srv/assets/acme/logos/.upload-123.partial"))
	assert.False(t, c.Matches("/srv/assets/acme/logos/nested/a.png"))
	assert.False(t, c.Matches("/srv/assets/acme/sounds/a.png"))

	open := Category{Namespace: "acme", Name: "misc", Dir: "/srv/assets/acme/misc"}
	assert.True(t, open.Matches("/srv/assets/acme/misc/readme"))
	assert.Equal(t, []string{"/srv/assets/acme/misc/*"}, open.Patterns())
}

func TestTableIncludesSoundsCategory(t *testing.T) {
	table := newTestTable(t)

	_, ok := table.Lookup("acme", "logos")
	assert.True(t, ok)
	sounds, ok := table.Lookup("acme", "sounds")
	require.True(t, ok)
	assert.Equal(t, "assets:sounds", sounds.Name())
	assert.Equal(t, "acme", sounds.Namespace())

	c, ok := table.Category("acme", "sounds")
	require.True(t, ok)
	assert.Equal(t, []string{"mp3", "ogg"}, c.AllowedTypes)
}

func TestHasherDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, "hello")

	h := NewHasher()
	digest, err := h.Digest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)

	_, err = h.Digest(context.Background(), filepath.Dir(path))
	assert.Error(t, err)
}

func TestInitialScanPublishesOneBatch(t *testing.T) {
	table := newTestTable(t)
	logos := filepath.Join(table.Root(), "acme", "logos")
	writeFile(t, filepath.Join(logos, "a.png"), "alpha")
	writeFile(t, filepath.Join(logos, "b.svg"), "bravo")
	writeFile(t, filepath.Join(logos, "ignored.txt"), "nope")
	writeFile(t, filepath.Join(table.Root(), "acme", "sounds", "horn.mp3"), "honk")

	logosRep, _ := table.Lookup("acme", "logos")
	var log changeLog
	logosRep.OnChange(log.record)

	startRegistry(t, table, 50*time.Millisecond)

	changes := log.snapshot()
	require.Len(t, changes, 1)
	require.Len(t, changes[0].Operations, 1)
	op := changes[0].Operations[0]
	assert.Equal(t, replicant.MethodPush, op.Method)
	require.Len(t, op.Items, 2)
	assert.Equal(t, "/assets/acme/logos/a.png", op.Items[0].URL)
	assert.Equal(t, digestOf("alpha"), op.Items[0].Digest)
	assert.Equal(t, "/assets/acme/logos/b.svg", op.Items[1].URL)

	sounds := table.Records("acme", "sounds")
	require.Len(t, sounds, 1)
	assert.Equal(t, "horn", sounds[0].Name)
}

func TestUnreadableFileDoesNotBlockBatch(t *testing.T) {
	table := newTestTable(t)
	logos := filepath.Join(table.Root(), "acme", "logos")
	writeFile(t, filepath.Join(logos, "a.png"), "alpha")
	require.NoError(t, os.Symlink(filepath.Join(logos, "missing.png"), filepath.Join(logos, "dead.png")))

	startRegistry(t, table, 50*time.Millisecond)

	records := table.Records("acme", "logos")
	require.Len(t, records, 1)
	assert.Equal(t, "/assets/acme/logos/a.png", records[0].URL)
}

func TestEmptyScanCommitsWithoutChanges(t *testing.T) {
	table := newTestTable(t)
	logosRep, _ := table.Lookup("acme", "logos")
	var log changeLog
	logosRep.OnChange(log.record)

	startRegistry(t, table, 50*time.Millisecond)

	assert.Empty(t, log.snapshot())
	assert.DirExists(t, filepath.Join(table.Root(), "acme", "logos"))
	assert.DirExists(t, filepath.Join(table.Root(), "acme", "sounds"))
}

func TestLiveEventsUpdateCollection(t *testing.T) {
	table := newTestTable(t)
	path := filepath.Join(table.Root(), "acme", "logos", "live.png")

	startRegistry(t, table, 50*time.Millisecond)

	writeFile(t, path, "first")
	require.Eventually(t, func() bool {
		records := table.Records("acme", "logos")
		return len(records) == 1 && records[0].Digest == digestOf("first")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return len(table.Records("acme", "logos")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSoundsCategoryIgnoresUnlistedTypes(t *testing.T) {
	table := newTestTable(t)
	dir := filepath.Join(table.Root(), "acme", "sounds")
	wav := filepath.Join(dir, "foo.wav")
	mp3 := filepath.Join(dir, "foo.mp3")

	sounds, ok := table.Category("acme", "sounds")
	require.True(t, ok)
	assert.False(t, sounds.Matches(wav))
	assert.True(t, sounds.Matches(mp3))

	startRegistry(t, table, 50*time.Millisecond)
	writeFile(t, wav, "riff")
	writeFile(t, mp3, "id3")

	require.Eventually(t, func() bool {
		return len(table.Records("acme", "sounds")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return len(table.Records("acme", "sounds")) != 1
	}, 200*time.Millisecond, 10*time.Millisecond)

	rec := table.Records("acme", "sounds")[0]
	assert.Equal(t, "foo.mp3", rec.BaseName)
	assert.Equal(t, "/assets/acme/sounds/foo.mp3", rec.URL)
	assert.Equal(t, digestOf("id3"), rec.Digest)
}

func TestChangesAreDebouncedPerPath(t *testing.T) {
	table := newTestTable(t)
	path := filepath.Join(table.Root(), "acme", "logos", "busy.png")
	writeFile(t, path, "v0")

	logosRep, _ := table.Lookup("acme", "logos")
	startRegistry(t, table, 300*time.Millisecond)
	require.Len(t, table.Records("acme", "logos"), 1)

	var log changeLog
	logosRep.OnChange(log.record)

	for _, content := range []string{"v01", "v012", "v0123"} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		records := table.Records("acme", "logos")
		return len(records) == 1 && records[0].Digest == digestOf("v0123")
	}, 5*time.Second, 20*time.Millisecond)

	changes := log.snapshot()
	require.Len(t, changes, 1)
	assert.Equal(t, replicant.MethodSplice, changes[0].Operations[0].Method)
}

func TestSupersededDigestIsDiscarded(t *testing.T) {
	table := newTestTable(t)
	path := filepath.Join(table.Root(), "acme", "logos", "crest.png")

	release := make(chan struct{})
	var calls atomic.Int32
	registry := NewRegistry(table, nil, 10*time.Millisecond, 2, logging.NewNop())
	registry.digest = func(ctx context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return "partial", nil
		}
		return "complete", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events := make(chan Event, 8)
	go func() { _ = registry.Run(ctx, events) }()

	events <- Event{Kind: EventReady}
	require.Eventually(t, registry.Committed, 5*time.Second, 10*time.Millisecond)

	events <- Event{Kind: EventAdd, Path: path}
	events <- Event{Kind: EventChange, Path: path}
	require.Eventually(t, func() bool {
		records := table.Records("acme", "logos")
		return len(records) == 1 && records[0].Digest == "complete"
	}, 5*time.Second, 10*time.Millisecond)

	close(release)
	assert.Never(t, func() bool {
		records := table.Records("acme", "logos")
		return len(records) != 1 || records[0].Digest != "complete"
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newGatewayServer(t *testing.T, table *Table, maxFiles int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewGateway(table, maxFiles, logging.NewNop()).Register(mux, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayUpload(t *testing.T) {
	table := newTestTable(t)
	srv := newGatewayServer(t, table, 2)

	body, contentType := multipartBody(t, map[string]string{"one.png": "1", "two.png": "2"})
	resp, err := http.Post(srv.URL+"/assets/acme/logos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.ElementsMatch(t, []string{"one.png", "two.png"}, payload.Files)

	dir := filepath.Join(table.Root(), "acme", "logos")
	assert.FileExists(t, filepath.Join(dir, "one.png"))
	assert.FileExists(t, filepath.Join(dir, "two.png"))
	leftovers, err := filepath.Glob(filepath.Join(dir, ".upload-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGatewayUploadRejectsTooManyFiles(t *testing.T) {
	table := newTestTable(t)
	srv := newGatewayServer(t, table, 2)

	body, contentType := multipartBody(t, map[string]string{"a.png": "a", "b.png": "b", "c.png": "c"})
	resp, err := http.Post(srv.URL+"/assets/acme/logos", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NoDirExists(t, filepath.Join(table.Root(), "acme", "logos"))
}

func TestGatewayUnknownCollection(t *testing.T) {
	table := newTestTable(t)
	srv := newGatewayServer(t, table, 2)

	body, contentType := multipartBody(t, map[string]string{"a.png": "a"})
	resp, err := http.Post(srv.URL+"/assets/acme/nope", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/assets/other/logos/a.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayDelete(t *testing.T) {
	table := newTestTable(t)
	srv := newGatewayServer(t, table, 2)
	path := filepath.Join(table.Root(), "acme", "logos", "gone.png")
	writeFile(t, path, "x")

	del := func(name string) int {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/assets/acme/logos/"+name, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, del("gone.png"))
	assert.NoFileExists(t, path)
	assert.Equal(t, http.StatusGone, del("gone.png"))
	assert.Equal(t, http.StatusGone, del("never-existed.png"))
}

func TestGatewayServesFiles(t *testing.T) {
	table := newTestTable(t)
	srv := newGatewayServer(t, table, 2)
	writeFile(t, filepath.Join(table.Root(), "acme", "logos", "team logo.png"), "pixels")
	writeFile(t, filepath.Join(table.Root(), "secret.txt"), "hidden")

	resp, err := http.Get(srv.URL + "/assets/acme/logos/team%20logo.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pixels", buf.String())

	resp2, err := http.Get(srv.URL + "/assets/acme/logos/%2e%2e/%2e%2e/secret.txt")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
