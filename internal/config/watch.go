// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thediveo/lxkns/log"
)

// Watch watches the configuration at path for changes until the context is
// done, calling onchange with each successfully reloaded configuration.
// Invalid configurations are logged and otherwise ignored, so the last good
// configuration stays in effect.
//
// Watch watches the directory containing a configuration file instead of the
// file itself, so that editors replacing the file as well as Kubernetes'
// atomic ConfigMap symlink swaps are noticed.
func Watch(ctx context.Context, v *viper.Viper, path string, onchange func(*Config)) error {
	path = filepath.Clean(path)
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	relevant := func(name string) bool { return filepath.Clean(name) == path }
	if st.IsDir() {
		dir = path
		relevant = isFragment
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(ev.Name) ||
					!ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
					continue
				}
				log.Infof("configuration file %s changed, reloading", path)
				cfg, err := Load(v, path)
				if err != nil {
					log.Errorf("keeping previous configuration, reason: %s", err.Error())
					continue
				}
				onchange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("watching configuration file %s: %s", path, err.Error())
			}
		}
	}()
	return nil
}
