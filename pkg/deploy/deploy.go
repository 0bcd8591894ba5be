// pkg/deploy/deploy.go

// Package deploy wires the whole pipeline: normalize, synthesize, merge the
// nginx config, provision TLS, upsert the credential, install units, verify.
// Every stage is idempotent; re-running against a deployed host converges.
package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/certbot"
	"github.com/rdock-dev/rdockctl/pkg/execute"
	"github.com/rdock-dev/rdockctl/pkg/htpasswd"
	"github.com/rdock-dev/rdockctl/pkg/nginx"
	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/shared"
	"github.com/rdock-dev/rdockctl/pkg/systemd"
	"github.com/rdock-dev/rdockctl/pkg/verify"
)

// Options carries the operator's choices that are not part of the Target.
type Options struct {
	// Mode is the explicit --mode flag; ModeAuto lets DecideMode pick.
	Mode nginx.Mode
	// ConfirmOverwrite authorizes clobbering a foreign root-path config.
	// Set by the interactive prompt or --yes.
	ConfirmOverwrite bool
	// RequireTLS makes certificate failure fatal instead of degrading to
	// a functional HTTP-only deployment.
	RequireTLS bool
	// Password for the credential entry; prompted when empty upstream.
	Password string
}

// Deployer holds the injected host collaborators. Production wiring comes
// from NewDeployer; tests assemble one from fakes.
type Deployer struct {
	Fs          afero.Fs
	Runner      execute.Runner
	Merger      *nginx.Merger
	Provisioner *certbot.Provisioner
	Store       *htpasswd.Store
	Installer   *systemd.Installer
	Verifier    *verify.Verifier

	// EnableSite is split out because symlinks bypass afero.
	EnableSite func(ctx context.Context, domain string) error
}

// NewDeployer wires the production collaborators against the real host.
func NewDeployer() *Deployer {
	fs := afero.NewOsFs()
	runner := execute.CommandRunner{}
	validator := nginx.CommandValidator{Runner: runner}
	reloader := nginx.ServiceReloader{Runner: runner}
	ctl := systemd.CommandSystemctl{Runner: runner}

	return &Deployer{
		Fs:     fs,
		Runner: runner,
		Merger: &nginx.Merger{Fs: fs, Validator: validator, Reloader: reloader},
		Provisioner: &certbot.Provisioner{
			Fs: fs, Runner: runner, Validator: validator, Reloader: reloader,
		},
		Store:      &htpasswd.Store{Fs: fs, Path: shared.HtpasswdPath},
		Installer:  &systemd.Installer{Fs: fs, Ctl: ctl},
		Verifier:   &verify.Verifier{Ctl: ctl},
		EnableSite: nginx.EnsureSiteEnabled,
	}
}

// Deploy runs the full pipeline for one target. Stages run sequentially and
// each completes or fails before the next begins; the only non-fatal stages
// are certificate issuance (when TLS is not required) and verification.
func (d *Deployer) Deploy(ctx context.Context, target Target, opts Options) error {
	log := otelzap.Ctx(ctx)

	target.Normalize()
	if err := target.Validate(ctx); err != nil {
		return err
	}

	spec := nginx.SiteSpec{
		Domain:       target.Domain,
		BasePath:     target.BasePath,
		TerminalPort: target.TerminalPort,
		EditorPort:   target.EditorPort,
		SkipEditor:   target.SkipEditor,
		AuthRealm:    "rdock",
		HtpasswdPath: d.Store.Path,
	}
	blocks := nginx.SynthesizeLocations(spec)

	configPath := nginx.ConfigPath(target.Domain)
	existingText := ""
	existingPresent, _ := afero.Exists(d.Fs, configPath)
	if existingPresent {
		data, err := afero.ReadFile(d.Fs, configPath)
		if err != nil {
			return cerr.Wrapf(err, "read %s", configPath)
		}
		existingText = string(data)
	}

	mode := nginx.DecideMode(existingPresent, target.BasePath == "", opts.Mode, opts.ConfirmOverwrite)
	log.Info("Merger decision",
		zap.String("mode", mode.String()),
		zap.Bool("existing_config", existingPresent),
		zap.String("base_path", target.BasePath))

	if mode == nginx.ModeAbort {
		return rdock_err.NewExpectedError(ctx, cerr.WithHint(
			nginx.ErrRootPathConflict,
			fmt.Sprintf("a config for %s already exists; re-run with --mode overwrite and --yes to replace it, or deploy under a --base-path", target.Domain)))
	}

	plan, err := nginx.BuildPlan(mode, existingText, spec, blocks)
	if err != nil {
		return err
	}
	if err := d.Merger.Apply(ctx, configPath, plan); err != nil {
		return err
	}
	if err := d.EnableSite(ctx, target.Domain); err != nil {
		return err
	}

	if target.SkipTLS {
		log.Info("TLS provisioning skipped by operator")
	} else {
		if err := d.Provisioner.Ensure(ctx, configPath, target.Domain, target.Email); err != nil {
			if opts.RequireTLS {
				return cerr.Wrap(err, "TLS provisioning failed and --require-tls is set")
			}
			// The HTTP-only config is valid and serving; degrade loudly.
			log.Warn("TLS provisioning failed; continuing with HTTP only",
				zap.String("domain", target.Domain), zap.Error(err))
		}
	}

	if err := d.Store.Upsert(ctx, target.Username, opts.Password); err != nil {
		return err
	}
	if ok, err := d.Store.Verify(target.Username, opts.Password); err != nil || !ok {
		return cerr.Newf("credential self-check failed for %s", target.Username)
	}

	for _, unit := range d.units(target) {
		if err := d.Installer.Install(ctx, unit); err != nil {
			return err
		}
	}

	d.verifyBackends(ctx, target)

	log.Info("Deployment complete",
		zap.String("domain", target.Domain),
		zap.String("base_path", target.BasePath),
		zap.Bool("tls", !target.SkipTLS))
	return nil
}

// units returns the unit configs for the target's backends.
func (d *Deployer) units(target Target) []systemd.UnitConfig {
	units := []systemd.UnitConfig{
		{
			Name:             shared.TerminalUnitName,
			Description:      "rdock web terminal",
			ExecStart:        fmt.Sprintf("%s --port %d", filepath.Join(shared.InstallDir, "rdock-server"), target.TerminalPort),
			WorkingDirectory: shared.InstallDir,
			Environment:      map[string]string{"RDOCK_PORT": fmt.Sprintf("%d", target.TerminalPort)},
		},
	}
	if !target.SkipEditor {
		units = append(units, systemd.UnitConfig{
			Name:             shared.EditorUnitName,
			Description:      "rdock code editor",
			ExecStart:        fmt.Sprintf("%s --bind-addr 127.0.0.1:%d --auth none", filepath.Join(shared.InstallDir, "code-server"), target.EditorPort),
			WorkingDirectory: shared.InstallDir,
		})
	}
	return units
}

// verifyBackends runs the post-deploy health check. Failures are warnings:
// the host state is already valid, the operator just gets pointed at logs.
func (d *Deployer) verifyBackends(ctx context.Context, target Target) {
	log := otelzap.Ctx(ctx)

	checks := []struct {
		unit string
		port int
	}{
		{shared.TerminalUnitName, target.TerminalPort},
	}
	if !target.SkipEditor {
		checks = append(checks, struct {
			unit string
			port int
		}{shared.EditorUnitName, target.EditorPort})
	}

	for _, c := range checks {
		res := d.Verifier.Check(ctx, c.unit, c.port)
		if !res.Healthy() {
			log.Warn("Post-deploy check unhealthy; see journalctl for the unit",
				zap.String("unit", c.unit),
				zap.Bool("active", res.Active),
				zap.Error(res.ProbeError))
		}
	}
}
