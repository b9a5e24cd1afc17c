// Package config reloads the exporter configuration while it runs, on SIGHUP
// and whenever the configuration file changes on disk.
package config

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc re-reads the configuration at configPath. A returned error is
// logged and the previous configuration stays in effect.
type ReloadFunc func(configPath string) error

// Reload triggers, used in log entries.
const (
	TriggerSIGHUP = "SIGHUP"
	TriggerFile   = "file change"
)

// Watcher calls a ReloadFunc on SIGHUP and on writes to the configuration file.
// Reloads never run concurrently.
//
// The directory holding the file is watched rather than the file itself:
// editors that save through a temporary file and a rename replace the inode,
// which a file-level watch would lose.
type Watcher struct {
	path   string
	reload ReloadFunc

	reloadMu sync.Mutex
	reloads  int

	fsw     *fsnotify.Watcher
	sighup  chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Once
}

// NewWatcher creates a watcher for configPath. Nothing is watched until Start.
func NewWatcher(configPath string, reloadFn ReloadFunc) *Watcher {
	return &Watcher{
		path:   configPath,
		reload: reloadFn,
		done:   make(chan struct{}),
	}
}

// Start installs the SIGHUP handler and the file watch.
//
// The SIGHUP handler is always installed. If the file watch cannot be set up
// the error is returned and SIGHUP remains the only trigger.
//
// Usage:
//
//	w := config.NewWatcher("/etc/a10_exporter/config.json", reloadFn)
//	if err := w.Start(); err != nil {
//	    log.Warnf("File watcher setup failed: %v", err)
//	}
//	defer w.Close()
func (w *Watcher) Start() error {
	w.sighup = make(chan os.Signal, 1)
	signal.Notify(w.sighup, syscall.SIGHUP)
	w.wg.Add(1)
	go w.signalLoop()
	log.Info("SIGHUP handler configured for config reload")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.wg.Add(1)
	go w.fileLoop()

	log.Infof("Watching config file: %s", w.path)
	return nil
}

func (w *Watcher) signalLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.sighup:
			w.Reload(TriggerSIGHUP)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) fileLoop() {
	defer w.wg.Done()
	name := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.Reload(TriggerFile)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("File watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Reload runs the ReloadFunc once, waiting for any reload already in progress.
func (w *Watcher) Reload(trigger string) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	log.WithField("trigger", trigger).Info("Reloading configuration...")
	if err := w.reload(w.path); err != nil {
		log.WithField("trigger", trigger).Errorf("Configuration reload failed: %v", err)
		return
	}
	w.reloads++
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	return w.reloads
}

// Close stops both triggers and waits for the watch goroutines to exit.
// A reload already running is allowed to finish.
func (w *Watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		if w.sighup != nil {
			signal.Stop(w.sighup)
		}
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
		w.wg.Wait()
	})
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
