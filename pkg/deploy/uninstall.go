// pkg/deploy/uninstall.go

package deploy

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/nginx"
	"github.com/rdock-dev/rdockctl/pkg/shared"
)

// UninstallOptions scopes the teardown.
type UninstallOptions struct {
	// Domain selects which nginx config to consider removing. Empty skips
	// config handling entirely.
	Domain string
	// Username's credential entry is removed when set; other entries in
	// the shared store are never touched.
	Username string
	// PurgeConfig also removes an owned config file. Foreign-owned files
	// (append-mode deployments) are left alone regardless.
	PurgeConfig bool
	// DisableSite is split out for the same symlink reason as EnableSite.
	DisableSite func(ctx context.Context, domain string) error
}

// Uninstall reverses unit installation and removes the install directory.
// Teardown is best effort: each step runs even when earlier ones fail, and
// the failures come back as one combined error.
func (d *Deployer) Uninstall(ctx context.Context, opts UninstallOptions) error {
	log := otelzap.Ctx(ctx)
	var errs *multierror.Error

	for _, unit := range []string{shared.TerminalUnitName, shared.EditorUnitName} {
		if err := d.Installer.Remove(ctx, unit); err != nil {
			errs = multierror.Append(errs, cerr.Wrapf(err, "remove unit %s", unit))
		}
	}

	if err := d.Fs.RemoveAll(shared.InstallDir); err != nil {
		errs = multierror.Append(errs, cerr.Wrapf(err, "remove %s", shared.InstallDir))
	}

	if opts.Username != "" {
		if err := d.Store.Remove(ctx, opts.Username); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if opts.Domain != "" {
		if err := d.removeConfig(ctx, opts); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	log.Info("Uninstall complete")
	return nil
}

// removeConfig deletes the domain's nginx config only when rdockctl created
// it. Append-mode deployments merged into someone else's file; removing
// that would take down an unrelated application, so it stays.
func (d *Deployer) removeConfig(ctx context.Context, opts UninstallOptions) error {
	log := otelzap.Ctx(ctx)
	configPath := nginx.ConfigPath(opts.Domain)

	data, err := afero.ReadFile(d.Fs, configPath)
	if err != nil {
		if exists, _ := afero.Exists(d.Fs, configPath); !exists {
			return nil
		}
		return cerr.Wrapf(err, "read %s", configPath)
	}

	if !nginx.IsOwned(string(data)) {
		log.Warn("Config file is not owned by rdockctl; leaving it in place",
			zap.String("path", configPath))
		return nil
	}
	if !opts.PurgeConfig {
		log.Info("Owned config kept; pass --purge-config to remove it",
			zap.String("path", configPath))
		return nil
	}

	disable := opts.DisableSite
	if disable == nil {
		disable = nginx.DisableSite
	}
	if err := disable(ctx, opts.Domain); err != nil {
		return err
	}
	if err := d.Fs.Remove(configPath); err != nil {
		return cerr.Wrapf(err, "remove %s", configPath)
	}

	// nginx is still running with the old config loaded; reload to drop it.
	if err := d.Merger.Validator.Validate(ctx); err != nil {
		return cerr.Wrap(err, "config tree invalid after removal")
	}
	if err := d.Merger.Reloader.Reload(ctx); err != nil {
		return err
	}
	log.Info("Removed owned nginx config", zap.String("path", configPath))
	return nil
}
