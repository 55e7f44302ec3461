package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/api"
	"stagehand/internal/config"
	"stagehand/internal/daemon"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
	"stagehand/internal/sounds"
	"stagehand/internal/testsupport"
)

const acmeManifest = `
name = "acme"
version = "1.0.0"

[[graphics]]
file = "main.html"
single_instance = true

[[asset_categories]]
name = "logos"
allowed_types = ["png"]
`

const soundCueManifest = `
[[sound_cues]]
name = "goal"
assignable = true
default_file = "sounds/horn.ogg"
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPI("secret"),
		testsupport.WithChangeDebounce(50),
		testsupport.WithPersistence(true),
	)
	testsupport.WriteBundle(t, cfg, "acme", acmeManifest)
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func get(t *testing.T, d *daemon.Daemon, path, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://"+d.APIAddr()+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func put(t *testing.T, d *daemon.Daemon, path, token, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, "http://"+d.APIAddr()+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)

	status := d.Status(context.Background())
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.Bundles)
	assert.Equal(t, 1, status.AssetCategories)
	assert.Equal(t, cfg.ReplicantDBPath(), status.ReplicantDBPath)
	assert.NotEmpty(t, d.APIAddr())

	d.Stop()
	assert.False(t, d.Status(context.Background()).Running)
}

func TestDaemonIsSingleInstance(t *testing.T) {
	cfg := testConfig(t)
	startDaemon(t, cfg)

	second, err := daemon.New(cfg, nil, logging.NewNop())
	require.NoError(t, err)
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAPIRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, get(t, d, "/api/status", "", nil))
	assert.Equal(t, http.StatusUnauthorized, get(t, d, "/api/status", "wrong", nil))

	var status api.DaemonStatus
	assert.Equal(t, http.StatusOK, get(t, d, "/api/status", "secret", &status))
	assert.True(t, status.Running)

	var bundles api.BundleListResponse
	assert.Equal(t, http.StatusOK, get(t, d, "/api/bundles", "secret", &bundles))
	require.Len(t, bundles.Bundles, 1)
	assert.Equal(t, "/bundles/acme/graphics/main.html", bundles.Bundles[0].Graphics[0].URL)
}

func TestAssetDownloadRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.AssetsDir, "acme", "logos", "crest.png"), 16)

	assert.Equal(t, http.StatusUnauthorized, get(t, d, "/assets/acme/logos/crest.png", "", nil))
	assert.Equal(t, http.StatusUnauthorized, get(t, d, "/assets/acme/logos/crest.png", "wrong", nil))
	assert.Equal(t, http.StatusOK, get(t, d, "/assets/acme/logos/crest.png", "secret", nil))
}

func TestUploadFlowsIntoCollection(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	require.Eventually(t, func() bool { return d.Status(context.Background()).AssetsReady }, 5*time.Second, 10*time.Millisecond)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "crest.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, "http://"+d.APIAddr()+"/assets/acme/logos", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		var list api.AssetListResponse
		if get(t, d, "/api/assets?namespace=acme&category=logos", "secret", &list) != http.StatusOK {
			return false
		}
		return len(list.Assets) == 1 && list.Assets[0].URL == "/assets/acme/logos/crest.png"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, get(t, d, "/api/assets?namespace=acme&category=nope", "secret", nil))
}

func TestRefreshGraphicValidatesTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.APIBind = ""
	d, err := daemon.New(cfg, nil, logging.NewNop())
	require.NoError(t, err)

	assert.NoError(t, d.RefreshGraphic("", true))
	assert.NoError(t, d.RefreshGraphic("/bundles/acme/graphics/main.html", false))
	assert.Error(t, d.RefreshGraphic("", false))
	assert.Error(t, d.RefreshGraphic("unknown-socket", false))
	assert.Error(t, d.KillGraphic("unknown-socket"))

	kind, err := d.RefreshBundle("acme")
	require.NoError(t, err)
	assert.Equal(t, "changed", kind)
}

func TestHandlerServesWithoutListener(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.APIToken = ""
	d, err := daemon.New(cfg, nil, logging.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graphics/instances", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.GraphicListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Instances)
}

func TestSoundCueAssignmentSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPI("secret"),
		testsupport.WithChangeDebounce(50),
		testsupport.WithPersistence(true),
	)
	testsupport.WriteBundle(t, cfg, "acme", acmeManifest+soundCueManifest)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.AssetsDir, "acme", "sounds", "goal.mp3"), 32)

	store, err := replicant.OpenSQLite(cfg.ReplicantDBPath())
	require.NoError(t, err)
	first, err := daemon.New(cfg, store, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	require.Eventually(t, func() bool { return first.Status(context.Background()).Assets == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, put(t, first, "/api/sounds/acme/missing", "secret", `{"file":"goal.mp3"}`))
	assert.Equal(t, http.StatusBadRequest, put(t, first, "/api/sounds/acme/goal", "secret", `{"file":"absent.mp3"}`))
	assert.Equal(t, http.StatusBadRequest, put(t, first, "/api/sounds/acme/goal", "secret", `{"volume":400}`))
	require.Equal(t, http.StatusOK, put(t, first, "/api/sounds/acme/goal", "secret", `{"file":"goal.mp3","volume":55}`))

	persistent := false
	for _, desc := range first.Status(context.Background()).Replicants {
		if desc.Namespace == "acme" && desc.Name == sounds.CollectionName {
			persistent = desc.Persistent
		}
	}
	assert.True(t, persistent)
	require.NoError(t, first.Close())
	require.NoError(t, store.Close())

	second := startDaemon(t, cfg)
	require.Eventually(t, func() bool { return second.Status(context.Background()).AssetsReady }, 5*time.Second, 10*time.Millisecond)

	var list api.SoundCueListResponse
	require.Equal(t, http.StatusOK, get(t, second, "/api/sounds?namespace=acme", "secret", &list))
	assert.Equal(t, []api.SoundCue{{
		Namespace:   "acme",
		Name:        "goal",
		Assignable:  true,
		DefaultFile: "sounds/horn.ogg",
		File:        "/assets/acme/sounds/goal.mp3",
		Volume:      55,
	}}, list.Cues)
	assert.Equal(t, http.StatusNotFound, get(t, second, "/api/sounds?namespace=other", "secret", nil))
}
