package viewer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/assets"
)

func (v *Viewer) startWatcher() error {
	w, err := assets.NewWatcher(watchSettle, v.log.Named("watch"))
	if err != nil {
		return err
	}
	v.watcher = w

	v.wg.Add(2)
	go func() {
		defer v.wg.Done()
		w.Run(v.ctx)
	}()
	go func() {
		defer v.wg.Done()
		for {
			select {
			case <-v.ctx.Done():
				return
			case source := <-w.Changes():
				v.reload(source)
			}
		}
	}()
	return nil
}

// watch registers a local file for hot reload.
func (v *Viewer) watch(source string) {
	if v.watcher == nil || assets.IsURL(source) {
		return
	}
	path, err := v.assets.Locate(source)
	if err != nil {
		return
	}
	if err := v.watcher.Add(path); err != nil {
		v.log.Debug("not watching", zap.String("source", source), zap.Error(err))
	}
}

// reload re-runs the request that last used a changed file. A reloaded model
// gets its decal back.
func (v *Viewer) reload(path string) {
	snap := v.session.Snapshot()
	modelPath, _ := v.assets.Locate(snap.ModelSource)
	decalPath, _ := v.assets.Locate(snap.DecalSource)

	switch path {
	case "":
		return
	case modelPath:
		v.log.Info("model changed on disk", zap.String("source", snap.ModelSource))
		v.assets.Invalidate(snap.ModelSource)
		v.loadModel(snap.ModelSource, snap.DecalSource)
	case decalPath:
		v.log.Info("decal image changed on disk", zap.String("source", snap.DecalSource))
		v.assets.Invalidate(snap.DecalSource)
		if err := v.ApplyDecal(snap.DecalSource); err != nil {
			v.log.Debug("decal reload skipped", zap.Error(err))
		}
	}
}
