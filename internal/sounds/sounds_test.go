package sounds_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/assets"
	"stagehand/internal/bundles"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
	"stagehand/internal/sounds"
)

const goalURL = "/assets/acme/sounds/goal.mp3"

func acmeBundle(cues ...bundles.SoundCue) *bundles.Bundle {
	return &bundles.Bundle{Name: "acme", SoundCues: cues}
}

func defaultCues() []bundles.SoundCue {
	return []bundles.SoundCue{
		{Name: "goal", Assignable: true, DefaultFile: "sounds/horn.ogg"},
		{Name: "intro"},
	}
}

type fixture struct {
	root  string
	table *assets.Table
	board *sounds.Board
}

func newFixture(t *testing.T, store replicant.Store, root string, bundle *bundles.Bundle) fixture {
	t.Helper()
	reg := replicant.NewRegistry(store, logging.NewNop())
	table, err := assets.NewTable(reg, root, []*bundles.Bundle{bundle})
	require.NoError(t, err)
	board, err := sounds.NewBoard(reg, table, []*bundles.Bundle{bundle}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(board.Watch())
	return fixture{root: root, table: table, board: board}
}

func (f fixture) addSound(t *testing.T, name string) {
	t.Helper()
	rep, ok := f.table.Lookup("acme", bundles.SoundsCategory)
	require.True(t, ok)
	sum := sha256.Sum256([]byte(name))
	path := filepath.Join(f.root, "acme", bundles.SoundsCategory, name)
	require.NoError(t, rep.Push(assets.ParseRecord(f.root, path, hex.EncodeToString(sum[:]))))
}

func (f fixture) removeSound(t *testing.T, url string) {
	t.Helper()
	rep, ok := f.table.Lookup("acme", bundles.SoundsCategory)
	require.True(t, ok)
	idx, _, found := rep.Find(func(r assets.Record) bool { return r.URL == url })
	require.True(t, found)
	require.NoError(t, rep.Splice(idx, 1))
}

func TestCuesSeededFromManifest(t *testing.T) {
	f := newFixture(t, nil, t.TempDir(), acmeBundle(defaultCues()...))

	cues, ok := f.board.Cues("acme")
	require.True(t, ok)
	assert.Equal(t, []sounds.Cue{
		{Name: "goal", Assignable: true, DefaultFile: "sounds/horn.ogg", Volume: sounds.DefaultVolume},
		{Name: "intro", Volume: sounds.DefaultVolume},
	}, cues)
	assert.Equal(t, []string{"acme"}, f.board.Namespaces())

	_, ok = f.board.Cues("other")
	assert.False(t, ok)
}

func TestAssignRequiresKnownFile(t *testing.T) {
	f := newFixture(t, nil, t.TempDir(), acmeBundle(defaultCues()...))

	_, err := f.board.Assign("acme", "goal", goalURL)
	assert.True(t, errors.Is(err, sounds.ErrUnknownFile))

	f.addSound(t, "goal.mp3")
	cue, err := f.board.Assign("acme", "goal", "goal.mp3")
	require.NoError(t, err)
	assert.Equal(t, goalURL, cue.File)

	_, err = f.board.Assign("acme", "intro", goalURL)
	assert.True(t, errors.Is(err, sounds.ErrNotAssignable))
	_, err = f.board.Assign("acme", "missing", goalURL)
	assert.True(t, errors.Is(err, sounds.ErrUnknownCue))
	_, err = f.board.Assign("other", "goal", goalURL)
	assert.True(t, errors.Is(err, sounds.ErrUnknownCue))

	cue, err = f.board.Assign("acme", "goal", "")
	require.NoError(t, err)
	assert.Empty(t, cue.File)
}

func TestSetVolumeBounds(t *testing.T) {
	f := newFixture(t, nil, t.TempDir(), acmeBundle(defaultCues()...))

	cue, err := f.board.SetVolume("acme", "intro", 75)
	require.NoError(t, err)
	assert.Equal(t, 75, cue.Volume)

	_, err = f.board.SetVolume("acme", "intro", 101)
	assert.True(t, errors.Is(err, sounds.ErrVolume))
	_, err = f.board.SetVolume("acme", "intro", -1)
	assert.True(t, errors.Is(err, sounds.ErrVolume))

	cues, _ := f.board.Cues("acme")
	assert.Equal(t, 75, cues[1].Volume)
}

func TestRemovedFileClearsAssignment(t *testing.T) {
	f := newFixture(t, nil, t.TempDir(), acmeBundle(defaultCues()...))
	f.addSound(t, "goal.mp3")
	f.addSound(t, "cheer.mp3")
	_, err := f.board.Assign("acme", "goal", goalURL)
	require.NoError(t, err)

	f.removeSound(t, "/assets/acme/sounds/cheer.mp3")
	cues, _ := f.board.Cues("acme")
	assert.Equal(t, goalURL, cues[0].File)

	f.removeSound(t, goalURL)
	cues, _ = f.board.Cues("acme")
	assert.Empty(t, cues[0].File)
}

func TestAssignmentsSurviveRestart(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "replicants.db")

	store, err := replicant.OpenSQLite(path)
	require.NoError(t, err)
	f := newFixture(t, store, root, acmeBundle(defaultCues()...))
	f.addSound(t, "goal.mp3")
	_, err = f.board.Assign("acme", "goal", goalURL)
	require.NoError(t, err)
	_, err = f.board.SetVolume("acme", "intro", 10)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = replicant.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// The manifest dropped intro and added outro since the last run.
	restarted := newFixture(t, store, root, acmeBundle(
		bundles.SoundCue{Name: "outro", Assignable: true},
		bundles.SoundCue{Name: "goal", Assignable: true, DefaultFile: "sounds/horn.ogg"},
	))
	cues, ok := restarted.board.Cues("acme")
	require.True(t, ok)
	assert.Equal(t, []sounds.Cue{
		{Name: "outro", Assignable: true, Volume: sounds.DefaultVolume},
		{Name: "goal", Assignable: true, DefaultFile: "sounds/horn.ogg", File: goalURL, Volume: sounds.DefaultVolume},
	}, cues)
}

func TestUnassignableCueDropsPersistedFile(t *testing.T) {
	root := t.TempDir()
	store, err := replicant.OpenSQLite(filepath.Join(t.TempDir(), "replicants.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := newFixture(t, store, root, acmeBundle(defaultCues()...))
	f.addSound(t, "goal.mp3")
	_, err = f.board.Assign("acme", "goal", goalURL)
	require.NoError(t, err)

	restarted := newFixture(t, store, root, acmeBundle(
		bundles.SoundCue{Name: "goal", DefaultFile: "sounds/horn.ogg"},
		bundles.SoundCue{Name: "cheer", Assignable: true},
	))
	cues, _ := restarted.board.Cues("acme")
	require.Len(t, cues, 2)
	assert.False(t, cues[0].Assignable)
	assert.Empty(t, cues[0].File)
}
