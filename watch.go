package lifecycle

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent is one observation from WatchArtifacts: the service state after
// an artifact changed on disk, or an error from the watcher itself.
type WatchEvent struct {
	// Path is the artifact that changed; empty for the initial snapshot
	Path string
	// State is the supervisor state observed after the change
	State ServiceState
	// Err is set instead of State when observation failed
	Err error
}

// WatchCleanupFunc stops a watch and releases its resources.
type WatchCleanupFunc func() error

// watchState tracks the last observed state and the pending debounce timer.
type watchState struct {
	mu        sync.Mutex
	lastState ServiceState
	lastPath  string
	debouncer *time.Timer
}

// WatchArtifacts watches the supervisor's on-disk artifacts plus the config
// file and emits the service state whenever one of them changes. Events are
// debounced, since supervisors and editors rewrite files in bursts.
//
// The returned cleanup function must be called to stop the watch; it blocks
// until the watcher goroutine has exited.
func WatchArtifacts(ctx context.Context, sup Supervisor, configPath string) (<-chan WatchEvent, WatchCleanupFunc, error) {
	paths := append([]string{}, sup.ArtifactPaths()...)
	if configPath != "" {
		paths = append(paths, configPath)
	}

	watched := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		watched[p] = struct{}{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpWatch, Path: configPath, Err: err}
	}

	// Watch parent directories: the artifacts themselves are replaced
	// atomically, which drops per-file watches.
	dirs := make(map[string]struct{})
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, nil, &OpError{Op: OpWatch, Path: dir, Err: err}
		}
	}

	ch := make(chan WatchEvent, 10)
	sctx := stopper.WithContext(ctx)

	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	state := &watchState{lastState: StateUnknown}

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	observe := func() {
		if sctx.IsStopping() {
			return
		}

		s, err := sup.State(ctx)
		if err != nil {
			if !sctx.IsStopping() {
				select {
				case ch <- WatchEvent{Err: err}:
				case <-sctx.Stopping():
				}
			}
			return
		}

		state.mu.Lock()
		changed := s != state.lastState || state.lastPath != ""
		path := state.lastPath
		state.lastState = s
		state.lastPath = ""
		state.mu.Unlock()

		if changed && !sctx.IsStopping() {
			select {
			case ch <- WatchEvent{Path: path, State: s}:
			case <-sctx.Stopping():
			}
		}
	}

	// Initial snapshot before any filesystem event arrives.
	observe()

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			state.mu.Lock()
			if state.debouncer != nil {
				state.debouncer.Stop()
			}
			state.mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if _, tracked := watched[event.Name]; !tracked {
					continue
				}

				state.mu.Lock()
				state.lastPath = event.Name
				if state.debouncer != nil {
					state.debouncer.Stop()
				}
				state.debouncer = time.AfterFunc(10*time.Millisecond, observe)
				state.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- WatchEvent{Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
