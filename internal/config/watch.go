package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.New(os.Stderr).With().Str("subsystem", "config").Logger()

// Watcher reloads the config file when it changes on disk. Reloads whose
// file was discarded entirely are dropped, so the previous config stays live.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher
	log  *zerolog.Logger

	updates chan Config

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Watch observes the directory holding path, since editors usually replace
// the file instead of writing it in place.
func Watch(path string, logger *zerolog.Logger) (*Watcher, error) {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		fsw:     fsw,
		log:     logger,
		updates: make(chan Config, 1),
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Updates delivers the latest successfully reloaded config. Unread updates
// are replaced by newer ones.
func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, warns := Load(w.path)
	for _, warn := range warns {
		w.log.Warn().Err(warn).Str("path", w.path).Msg("config reload")
	}
	if warns.Rejected() {
		w.log.Warn().Str("path", w.path).Msg("config reload failed, keeping previous config")
		return
	}

	// replace any update the driver has not picked up yet
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
		w.log.Info().Str("path", w.path).Msg("config reloaded")
	default:
	}
}
