// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"

	"github.com/wingedpig/lattice/internal/config"
	"github.com/wingedpig/lattice/internal/events"
	"github.com/wingedpig/lattice/internal/trigger"
)

// Watch groups.
const (
	groupTriggers = "triggers"
	groupScripts  = "scripts"
)

// watchFiles registers the definitions file and init scripts with the
// watcher. Handlers run until ctx is cancelled.
func (app *App) watchFiles(ctx context.Context) error {
	if app.watcher == nil {
		return nil
	}
	cfg := app.config

	var errs []error
	if cfg.Triggers.File != "" {
		path := cfg.Resolve(cfg.Triggers.File)
		errs = append(errs, app.watcher.Watch(groupTriggers, []string{path}, func(string) {
			app.reloadTriggers(ctx, path)
		}))
	}

	if len(cfg.Scripts.Init) > 0 {
		paths := make([]string, len(cfg.Scripts.Init))
		for i, p := range cfg.Scripts.Init {
			paths[i] = cfg.Resolve(p)
		}
		errs = append(errs, app.watcher.Watch(groupScripts, paths, func(path string) {
			if err := app.runScript(ctx, path); err != nil {
				app.log.Error().Err(err).Str("file", path).Msg("script reload failed")
				return
			}
			app.log.Info().Str("file", path).Msg("script reloaded")
		}))
	}
	return errors.Join(errs...)
}

// reloadTriggers replaces the tree with the definitions in path. A file
// that fails to load or validate leaves the current tree in place.
func (app *App) reloadTriggers(ctx context.Context, path string) {
	fail := func(err error) {
		app.log.Error().Err(err).Str("file", path).Msg("trigger reload failed")
		app.publish(events.EventTriggersReloadFailed, map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
	}

	defs, err := config.LoadTriggers(path)
	if err != nil {
		fail(err)
		return
	}
	config.ApplyConditionWindow(defs, app.config.Engine.DefaultConditionWindow)

	var total int
	err = app.session.Do(ctx, func(u *trigger.Unit) error {
		if err := u.Replace(defs); err != nil {
			return err
		}
		u.Compile()
		total = u.Len()
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			fail(err)
		}
		return
	}

	app.log.Info().Str("file", path).Int("triggers", total).Msg("triggers reloaded")
	app.publish(events.EventTriggersReloaded, map[string]interface{}{
		"file":     path,
		"roots":    len(defs),
		"triggers": total,
	})
}
