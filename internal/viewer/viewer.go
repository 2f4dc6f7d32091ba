// Package viewer wires configuration, asset loading and the scene session
// together and runs user requests off the render thread.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/assets"
	"github.com/Faultbox/decalview/internal/config"
	"github.com/Faultbox/decalview/internal/session"
)

// watchSettle is how long a watched file must stay quiet before reloading.
const watchSettle = 250 * time.Millisecond

// eventBuffer is the number of completions kept for the render loop.
const eventBuffer = 32

// Kind identifies a request type.
type Kind int

// Request kinds.
const (
	KindModel Kind = iota
	KindDecal
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindDecal:
		return "decal"
	case KindColor:
		return "color"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event reports a finished request.
type Event struct {
	Kind     Kind
	Source   string
	Err      error
	Duration time.Duration
}

// Superseded reports whether the request was replaced by a newer one and
// needs no user feedback.
func (e Event) Superseded() bool {
	return errors.Is(e.Err, session.ErrSuperseded) ||
		errors.Is(e.Err, context.Canceled) ||
		errors.Is(e.Err, session.ErrClosed)
}

// Viewer owns the session and the asset manager behind it.
type Viewer struct {
	log     *zap.Logger
	assets  *assets.Manager
	session *session.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	modelCancel context.CancelFunc
	decalCancel context.CancelFunc
	closed      bool

	events  chan Event
	watcher *assets.Watcher
}

// New builds the asset manager, loaders and session described by cfg.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	mgr := assets.NewManager(cfg.Assets.HTTPTimeout)
	mgr.SetCacheLimit(cfg.Assets.CacheSize)
	for _, root := range cfg.Assets.Roots {
		if err := mgr.AddRoot(root); err != nil {
			log.Warn("skipping asset root", zap.String("root", root), zap.Error(err))
		}
	}

	policy, err := session.ParsePolicy(cfg.Viewer.SurfacePolicy)
	if err != nil {
		return nil, err
	}
	table, err := cfg.Decal.Table()
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		Models:         assets.NewModelLoader(mgr, cfg.Assets.MaxTextureSize, log.Named("assets")),
		Textures:       assets.NewImageLoader(mgr, cfg.Assets.MaxTextureSize),
		Log:            log.Named("session"),
		TargetSize:     cfg.Viewer.TargetSize,
		VerticalOffset: cfg.Viewer.VerticalOffset,
		Policy:         policy,
		Placements:     table,
	}

	v := newViewer(session.New(opts), mgr, log)
	if cfg.Viewer.WatchFiles {
		if err := v.startWatcher(); err != nil {
			log.Warn("file watching disabled", zap.Error(err))
		}
	}
	return v, nil
}

func newViewer(sess *session.Session, mgr *assets.Manager, log *zap.Logger) *Viewer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Viewer{
		log:     log,
		assets:  mgr,
		session: sess,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, eventBuffer),
	}
}

// Session returns the session the viewer drives.
func (v *Viewer) Session() *session.Session {
	return v.session
}

// Events delivers request completions. The render loop drains it each frame.
func (v *Viewer) Events() <-chan Event {
	return v.events
}

// LoadModel starts loading source, cancelling any model or decal request
// still in flight.
func (v *Viewer) LoadModel(source string) {
	v.loadModel(source, "")
}

// loadModel loads source and, once it is installed, applies decalSource if
// it is not empty.
func (v *Viewer) loadModel(source, decalSource string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	if v.modelCancel != nil {
		v.modelCancel()
	}
	if v.decalCancel != nil {
		v.decalCancel()
		v.decalCancel = nil
	}
	ctx, cancel := context.WithCancel(v.ctx)
	v.modelCancel = cancel

	v.start(KindModel, source, func() error {
		defer cancel()
		if err := v.session.LoadModel(ctx, source); err != nil {
			return err
		}
		v.watch(source)
		if decalSource != "" {
			if err := v.ApplyDecal(decalSource); err != nil {
				v.log.Debug("decal not reapplied", zap.Error(err))
			}
		}
		return nil
	})
}

// ApplyDecal starts projecting the image at source. It fails fast with
// session.ErrNoModel when nothing is loaded.
func (v *Viewer) ApplyDecal(source string) error {
	if v.session.State() == session.StateEmpty {
		return session.ErrNoModel
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return session.ErrClosed
	}
	if v.decalCancel != nil {
		v.decalCancel()
	}
	ctx, cancel := context.WithCancel(v.ctx)
	v.decalCancel = cancel

	v.start(KindDecal, source, func() error {
		defer cancel()
		err := v.session.ApplyDecal(ctx, source)
		if err == nil {
			v.watch(source)
		}
		return err
	})
	return nil
}

// SetColor recolors the model. It runs synchronously since no I/O is
// involved.
func (v *Viewer) SetColor(hex string) error {
	start := time.Now()
	err := v.session.SetModelColorHex(hex)
	v.emit(Event{Kind: KindColor, Source: hex, Err: err, Duration: time.Since(start)})
	return err
}

// start runs fn in a goroutine and reports its result.
func (v *Viewer) start(kind Kind, source string, fn func() error) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		begin := time.Now()
		err := fn()
		v.emit(Event{Kind: kind, Source: source, Err: err, Duration: time.Since(begin)})
	}()
}

func (v *Viewer) emit(ev Event) {
	log := v.log.With(zap.Stringer("kind", ev.Kind), zap.String("source", ev.Source), zap.Duration("took", ev.Duration))
	switch {
	case ev.Err == nil:
		log.Debug("request finished")
	case ev.Superseded():
		log.Debug("request superseded", zap.Error(ev.Err))
	default:
		log.Warn("request failed", zap.Error(ev.Err))
	}

	select {
	case v.events <- ev:
	default:
		v.log.Warn("event dropped", zap.Stringer("kind", ev.Kind))
	}
}

// Wait blocks until every request started so far has finished.
func (v *Viewer) Wait() {
	v.wg.Wait()
}

// Close cancels outstanding requests, waits for them and releases the
// session.
func (v *Viewer) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			v.log.Debug("closing watcher", zap.Error(err))
		}
	}
	v.session.Close()
	v.assets.Close()
}
