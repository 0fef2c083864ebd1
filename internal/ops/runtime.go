package ops

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

// Runtime holds the live configuration. Readers always see a complete
// Loaded value.
type Runtime struct {
	v atomic.Value
}

// NewRuntime stores the initial configuration.
func NewRuntime(loaded Loaded) *Runtime {
	var rt Runtime
	rt.v.Store(loaded)
	return &rt
}

func (r *Runtime) Load() Loaded {
	return r.v.Load().(Loaded)
}

func (r *Runtime) Update(loaded Loaded) {
	r.v.Store(loaded)
}

// Watch polls path every interval and calls update with the reloaded config
// when the file modification time advances. A file that fails to load keeps
// the previous config.
func Watch(ctx context.Context, path string, interval time.Duration, update func(Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config stat failed, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("config reload failed, err: %+v", err)
				continue
			}
			update(loaded)
			logs.Infof("config reloaded: %s", path)
		}
	}
}
