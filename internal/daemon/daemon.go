package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stagehand/internal/api"
	"stagehand/internal/assets"
	"stagehand/internal/bundles"
	"stagehand/internal/config"
	"stagehand/internal/graphics"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
	"stagehand/internal/socket"
	"stagehand/internal/sounds"
)

const assetEventBuffer = 256

// Daemon owns the runtime components and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	base   *slog.Logger
	logger *slog.Logger

	replicants *replicant.Registry
	store      replicant.Store
	bundles    *bundles.Manager
	table      *assets.Table
	assets     *assets.Registry
	gateway    *assets.Gateway
	graphics   *graphics.Registry
	sounds     *sounds.Board
	hub        *socket.Hub
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unwatch []func()
}

// New loads bundles and builds every runtime component. store may be nil when
// replicant persistence is disabled.
func New(cfg *config.Config, store replicant.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	manager := bundles.NewManager(cfg.Paths.BundlesDir, logger)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load bundles: %w", err)
	}

	reg := replicant.NewRegistry(store, logger)
	table, err := assets.NewTable(reg, cfg.Paths.AssetsDir, manager.All())
	if err != nil {
		return nil, err
	}
	board, err := sounds.NewBoard(reg, table, manager.All(), logger)
	if err != nil {
		return nil, err
	}
	hub := socket.NewHub(logger)
	gfx, err := graphics.NewRegistry(reg, manager, hub, cfg.GracePeriod(), logger)
	if err != nil {
		return nil, err
	}
	graphics.Bind(hub, gfx)

	lockPath := filepath.Join(cfg.Paths.DBDir, "stagehandd.lock")
	d := &Daemon{
		cfg:        cfg,
		base:       logger,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		replicants: reg,
		store:      store,
		bundles:    manager,
		table:      table,
		assets:     assets.NewRegistry(table, assets.NewHasher(), cfg.ChangeDebounce(), cfg.Assets.HashWorkers, logger),
		gateway:    assets.NewGateway(table, cfg.Assets.MaxUploadFiles, logger),
		graphics:   gfx,
		sounds:     board,
		hub:        hub,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the watchers and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stagehand daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	bundleWatcher, err := bundles.NewWatcher(d.bundles, d.cfg.ChangeDebounce(), d.base)
	if err != nil {
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start bundle watcher: %w", err)
	}

	d.unwatch = append(d.unwatch,
		socket.BindReplicants(d.hub, d.replicants),
		d.graphics.WatchBundles(d.bundles),
		d.sounds.Watch(),
		d.bundles.OnChange(d.logBundleChange),
	)

	events := make(chan assets.Event, assetEventBuffer)
	assetWatcher := assets.NewWatcher(d.table.Categories(), d.base)
	d.goRun(runCtx, "asset watcher", func(ctx context.Context) error { return assetWatcher.Run(ctx, events) })
	d.goRun(runCtx, "asset registry", func(ctx context.Context) error { return d.assets.Run(ctx, events) })
	d.goRun(runCtx, "bundle watcher", bundleWatcher.Run)

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("stagehand daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("bundles", len(d.bundles.All())),
		logging.Int("asset_categories", len(d.table.Categories())),
	)
	return nil
}

func (d *Daemon) goRun(ctx context.Context, name string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(ctx); err != nil {
			d.logger.Error(name+" stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "component_failed"),
				logging.String(logging.FieldImpact, name+" is no longer running"),
				logging.String(logging.FieldErrorHint, "check directory permissions and restart the daemon"),
			)
		}
	}()
}

func (d *Daemon) logBundleChange(evt bundles.Event) {
	attrs := []logging.Attr{
		logging.String(logging.FieldBundle, evt.Name),
		logging.String(logging.FieldEventType, "bundle_"+string(evt.Kind)),
	}
	if evt.Kind == bundles.EventAdded {
		attrs = append(attrs, logging.String(logging.FieldImpact, "asset categories of new bundles are watched after a restart"))
	}
	d.logger.Info("bundle changed", logging.Args(attrs...)...)
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.hub.Close()
	d.wg.Wait()
	for _, fn := range d.unwatch {
		fn()
	}
	d.unwatch = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("stagehand daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Handler returns the HTTP handler serving the API, assets and socket.
func (d *Daemon) Handler() http.Handler { return d.api.handler }

// APIAddr returns the bound API address, empty when the API is not listening.
func (d *Daemon) APIAddr() string { return d.api.addr() }

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		LockFilePath:    d.lockPath,
		SocketPath:      d.cfg.SocketPath(),
		APIBind:         d.APIAddr(),
		Bundles:         len(d.bundles.All()),
		AssetCategories: len(d.table.Categories()),
		AssetsReady:     d.assets.Committed(),
		Graphics:        api.CountGraphics(d.graphics.Instances()),
		Clients:         d.hub.Count(),
		Replicants:      d.replicants.List(),
	}
	if sqlite, ok := d.store.(*replicant.SQLiteStore); ok && sqlite != nil {
		status.ReplicantDBPath = sqlite.Path()
	}
	for _, c := range d.table.Categories() {
		status.Assets += len(d.table.Records(c.Namespace, c.Name))
	}
	return status
}

// Bundles returns the loaded bundles ordered by name.
func (d *Daemon) Bundles() []*bundles.Bundle {
	return d.bundles.All()
}

// RefreshBundle reloads a bundle from disk and asks its open pages to reload.
func (d *Daemon) RefreshBundle(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("bundle name is required")
	}
	evt, err := d.bundles.Reload(name)
	if err != nil {
		return "", err
	}
	d.graphics.RequestBundleRefresh(name)
	if evt == nil {
		return "unchanged", nil
	}
	return string(evt.Kind), nil
}

// Assets lists watched categories, optionally narrowed by namespace and
// category. Records are included when a single category is selected.
func (d *Daemon) Assets(namespace, category string) (api.AssetListResponse, error) {
	var resp api.AssetListResponse
	for _, c := range d.table.Categories() {
		if namespace != "" && c.Namespace != namespace {
			continue
		}
		if category != "" && c.Name != category {
			continue
		}
		records := d.table.Records(c.Namespace, c.Name)
		resp.Categories = append(resp.Categories, api.FromCategory(c, len(records)))
		if namespace != "" && category != "" {
			resp.Assets = records
		}
	}
	if namespace != "" && category != "" && len(resp.Categories) == 0 {
		return resp, fmt.Errorf("no asset collection %s/%s", namespace, category)
	}
	return resp, nil
}

// GraphicInstances returns every graphic registration.
func (d *Daemon) GraphicInstances() []graphics.Instance {
	return d.graphics.Instances()
}

// RefreshGraphic asks graphics to reload. all reloads every bundle's pages;
// a target starting with "/" reloads every instance of that graphic;
// anything else is taken as a socket id.
func (d *Daemon) RefreshGraphic(target string, all bool) error {
	if all {
		for _, b := range d.bundles.All() {
			d.graphics.RequestBundleRefresh(b.Name)
		}
		return nil
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.New("refresh requires a graphic path or socket id")
	}
	if strings.HasPrefix(target, "/") {
		d.graphics.RequestRefreshAll(target)
		return nil
	}
	inst, ok := d.graphics.Lookup(target)
	if !ok {
		return fmt.Errorf("no graphic registered for socket %s", target)
	}
	d.graphics.RequestRefresh(inst)
	return nil
}

// KillGraphic asks the graphic registered by socketID to close.
func (d *Daemon) KillGraphic(socketID string) error {
	inst, ok := d.graphics.Lookup(strings.TrimSpace(socketID))
	if !ok {
		return fmt.Errorf("no graphic registered for socket %s", socketID)
	}
	d.graphics.RequestKill(inst)
	return nil
}

// SoundCues lists the sound cues of namespace, or of every bundle when
// namespace is empty.
func (d *Daemon) SoundCues(namespace string) (api.SoundCueListResponse, error) {
	resp := api.SoundCueListResponse{Cues: []api.SoundCue{}}
	namespaces := d.sounds.Namespaces()
	if namespace != "" {
		namespaces = []string{namespace}
	}
	for _, ns := range namespaces {
		cues, ok := d.sounds.Cues(ns)
		if !ok {
			return resp, fmt.Errorf("%w: bundle %s declares no sound cues", sounds.ErrUnknownCue, ns)
		}
		for _, c := range cues {
			resp.Cues = append(resp.Cues, api.FromCue(ns, c))
		}
	}
	return resp, nil
}

// UpdateSoundCue assigns a file to a cue or changes its volume.
func (d *Daemon) UpdateSoundCue(namespace, name string, update api.SoundCueUpdate) (api.SoundCue, error) {
	if update.File == nil && update.Volume == nil {
		return api.SoundCue{}, errors.New("sound cue update requires a file or a volume")
	}
	if update.Volume != nil && (*update.Volume < 0 || *update.Volume > 100) {
		return api.SoundCue{}, sounds.ErrVolume
	}
	var (
		cue sounds.Cue
		err error
	)
	if update.File != nil {
		if cue, err = d.sounds.Assign(namespace, name, *update.File); err != nil {
			return api.SoundCue{}, err
		}
	}
	if update.Volume != nil {
		if cue, err = d.sounds.SetVolume(namespace, name, *update.Volume); err != nil {
			return api.SoundCue{}, err
		}
	}
	return api.FromCue(namespace, cue), nil
}
