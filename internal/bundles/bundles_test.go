package bundles_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/bundles"
	"stagehand/internal/logging"
)

const acmeManifest = `
name = "acme"
version = "1.2.0"

[[graphics]]
file = "main.html"
width = 1920
height = 1080
single_instance = true

[[graphics]]
file = "lower-third.html"

[[asset_categories]]
name = "team-logos"
allowed_types = [".PNG", "jpg", "png"]

[[sound_cues]]
name = "goal"
assignable = true
`

func writeBundle(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundles.ManifestTOML), []byte(manifest), 0o644))
	return dir
}

func writeGit(t *testing.T, dir, head string, refs map[string]string) {
	t.Helper()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(head+"\n"), 0o644))
	for ref, hash := range refs {
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, filepath.FromSlash(ref)), []byte(hash+"\n"), 0o644))
	}
}

func TestManagerLoadsManifest(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "acme", acmeManifest)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-bundle"), 0o755))

	mgr := bundles.NewManager(root, logging.NewNop())
	require.NoError(t, mgr.Load())

	all := mgr.All()
	require.Len(t, all, 1)
	acme, ok := mgr.Find("acme")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", acme.Version)
	assert.Nil(t, acme.Git)

	graphic, ok := acme.GraphicByURL("/bundles/acme/graphics/main.html")
	require.True(t, ok)
	assert.True(t, graphic.SingleInstance)
	_, ok = acme.GraphicByURL("/bundles/acme/graphics/missing.html")
	assert.False(t, ok)

	categories := acme.Categories()
	require.Len(t, categories, 2)
	assert.Equal(t, "team-logos", categories[0].Name)
	assert.Equal(t, "Team Logos", categories[0].Title)
	assert.Equal(t, []string{"png", "jpg"}, categories[0].AllowedTypes)
	assert.Equal(t, bundles.SoundsCategory, categories[1].Name)
	assert.Equal(t, []string{"mp3", "ogg"}, categories[1].AllowedTypes)
}

func TestManifestYAML(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "yammy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundles.ManifestYAML), []byte(`
version: "0.1.0"
graphics:
  - file: index.html
    single_instance: true
asset_categories:
  - name: logos
    title: Logos
`), 0o644))

	mgr := bundles.NewManager(root, logging.NewNop())
	require.NoError(t, mgr.Load())
	b, ok := mgr.Find("yammy")
	require.True(t, ok)
	assert.Equal(t, "/bundles/yammy/graphics/index.html", b.Graphics[0].URL)
	assert.Len(t, b.Categories(), 1)
}

func TestManifestValidation(t *testing.T) {
	cases := map[string]string{
		"name mismatch":      `name = "other"`,
		"reserved sounds":    "[[asset_categories]]\nname = \"sounds\"\n[[sound_cues]]\nname = \"x\"\nassignable = true\n",
		"duplicate graphic":  "[[graphics]]\nfile = \"a.html\"\n[[graphics]]\nfile = \"a.html\"\n",
		"empty graphic file": "[[graphics]]\nfile = \"\"\n",
	}
	for name, manifest := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeBundle(t, root, "acme", manifest)
			mgr := bundles.NewManager(root, logging.NewNop())
			_, err := mgr.Reload("acme")
			assert.Error(t, err)
			_, ok := mgr.Find("acme")
			assert.False(t, ok)
		})
	}
}

func TestReadGit(t *testing.T) {
	t.Run("loose ref", func(t *testing.T) {
		dir := t.TempDir()
		writeGit(t, dir, "ref: refs/heads/main", map[string]string{"refs/heads/main": "0123456789abcdef"})
		info, err := bundles.ReadGit(dir)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "main", info.Branch)
		assert.Equal(t, "0123456789abcdef", info.Hash)
		assert.Equal(t, "0123456", info.ShortHash)
	})

	t.Run("packed ref", func(t *testing.T) {
		dir := t.TempDir()
		writeGit(t, dir, "ref: refs/heads/live", nil)
		packed := "# pack-refs with: peeled fully-peeled sorted\nfeedfacefeedface refs/heads/live\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "packed-refs"), []byte(packed), 0o644))
		info, err := bundles.ReadGit(dir)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "feedfacefeedface", info.Hash)
	})

	t.Run("detached", func(t *testing.T) {
		dir := t.TempDir()
		writeGit(t, dir, "abcdef0123456789", nil)
		info, err := bundles.ReadGit(dir)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Empty(t, info.Branch)
		assert.Equal(t, "abcdef0", info.ShortHash)
	})

	t.Run("not a repository", func(t *testing.T) {
		info, err := bundles.ReadGit(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, info)
	})
}

func TestReloadEmitsEvents(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "acme", acmeManifest)
	writeGit(t, dir, "ref: refs/heads/main", map[string]string{"refs/heads/main": "1111111111"})

	mgr := bundles.NewManager(root, logging.NewNop())
	var events []bundles.Event
	mgr.OnChange(func(evt bundles.Event) { events = append(events, evt) })

	_, err := mgr.Reload("acme")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "refs", "heads", "main"), []byte("2222222222\n"), 0o644))
	_, err = mgr.Reload("acme")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, bundles.ManifestTOML)))
	_, err = mgr.Reload("acme")
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, bundles.EventAdded, events[0].Kind)
	assert.Equal(t, bundles.EventGitChanged, events[1].Kind)
	assert.Equal(t, "2222222222", events[1].Bundle.Git.Hash)
	assert.Equal(t, bundles.EventRemoved, events[2].Kind)
	assert.Nil(t, events[2].Bundle)
}

func TestWatcherReloadsOnManifestChange(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "acme", acmeManifest)

	mgr := bundles.NewManager(root, logging.NewNop())
	require.NoError(t, mgr.Load())

	var (
		mu    sync.Mutex
		kinds []bundles.EventKind
	)
	mgr.OnChange(func(evt bundles.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, evt.Kind)
	})

	w, err := bundles.NewWatcher(mgr, 20*time.Millisecond, logging.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register its directories.
	time.Sleep(50 * time.Millisecond)
	updated := acmeManifest + "\n[[graphics]]\nfile = \"extra.html\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, bundles.ManifestTOML), []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		b, ok := mgr.Find("acme")
		return ok && len(b.Graphics) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, bundles.EventChanged)
}
