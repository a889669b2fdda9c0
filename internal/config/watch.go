package config

import (
	"github.com/spf13/viper"

	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/utils/watch"
)

// Watch re-reads the config file whenever it changes and applies the new
// log level. Other settings need a restart. It returns nil, nil when no
// config file was read.
func Watch(v *viper.Viper) (*watch.Watcher, error) {
	file := v.ConfigFileUsed()
	if file == "" {
		return nil, nil
	}

	w, err := watch.NewWatcher(file, func() error {
		return Reload(v)
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

// Reload re-reads the config file and applies the log level.
func Reload(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	lvl, err := debug.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return err
	}
	if lvl != debug.Level() {
		debug.SetLevel(lvl)
		debug.Info("log level changed", "level", lvl.String())
	}
	return nil
}
