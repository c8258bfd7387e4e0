package cmd

import (
	"io"
	"log/slog"

	"github.com/quarrylabs/quarry/internal/backends"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/logging"
	"github.com/quarrylabs/quarry/internal/pipeline"
	"github.com/quarrylabs/quarry/internal/registry"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/syncer"
	"github.com/quarrylabs/quarry/internal/ui"
)

// appEnv holds the wired application components a command needs.
// Commands request only what they use via the open* helpers; Close
// tears down whatever was opened.
type appEnv struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *registry.Registry
	embedder embed.Embedder
	pipeline *pipeline.Pipeline
	engine   *syncer.Engine
	closers  []func()
}

// newEnv loads configuration and sets up logging. Log output goes to
// the rotating file under DataDir; stderr mirroring is reserved for
// --debug runs so normal CLI output stays clean.
func newEnv() (*appEnv, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.LogPath(),
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: flagDebug || cfg.Logging.Stderr,
	}
	if flagDebug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &appEnv{cfg: cfg, logger: logger, closers: []func(){cleanup}}, nil
}

// Close releases resources in reverse open order.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *appEnv) openStore() (*store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	st, err := store.Open(store.Config{
		Dir:        e.cfg.StoreDir(),
		Dimension:  e.cfg.Store.Dimension,
		DisableANN: e.cfg.Store.DisableANN,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.store = st
	e.closers = append(e.closers, func() { _ = st.Close() })
	return st, nil
}

func (e *appEnv) openRegistry() (*registry.Registry, error) {
	if e.registry != nil {
		return e.registry, nil
	}
	reg, err := registry.Open(e.cfg.RegistryPath())
	if err != nil {
		return nil, err
	}
	e.registry = reg
	e.closers = append(e.closers, func() { _ = reg.Close() })
	return reg, nil
}

func (e *appEnv) openEmbedder() (embed.Embedder, error) {
	if e.embedder != nil {
		return e.embedder, nil
	}
	embedder, err := backends.NewRegistry().Get(backends.Spec{
		Backend:   e.cfg.Embedding.Backend,
		Model:     e.cfg.Embedding.Model,
		Dimension: e.cfg.Embedding.Dimension,
		CacheSize: e.cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	e.embedder = embedder
	return embedder, nil
}

func (e *appEnv) openPipeline() (*pipeline.Pipeline, error) {
	if e.pipeline != nil {
		return e.pipeline, nil
	}
	st, err := e.openStore()
	if err != nil {
		return nil, err
	}
	embedder, err := e.openEmbedder()
	if err != nil {
		return nil, err
	}
	p := pipeline.New(st, embedder, e.logger)
	p.MaxChars = e.cfg.Chunking.MaxChars
	p.OverlapChars = e.cfg.Chunking.OverlapChars
	e.pipeline = p
	return p, nil
}

func (e *appEnv) openEngine() (*syncer.Engine, error) {
	if e.engine != nil {
		return e.engine, nil
	}
	st, err := e.openStore()
	if err != nil {
		return nil, err
	}
	reg, err := e.openRegistry()
	if err != nil {
		return nil, err
	}
	p, err := e.openPipeline()
	if err != nil {
		return nil, err
	}
	e.engine = &syncer.Engine{
		Registry:   reg,
		Store:      st,
		Ingestor:   p,
		Logger:     e.logger,
		Extensions: extract.SupportedExtensions(),
		LockPath:   e.cfg.LockPath(),
	}
	return e.engine, nil
}

func (e *appEnv) printer(out io.Writer) *ui.Printer {
	return ui.NewPrinter(out, flagNoColor)
}
