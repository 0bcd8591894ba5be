// pkg/systemd/unit.go

package systemd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/shared"
)

// UnitConfig describes one managed backend process. Restart is always
// "always": the backends must survive crashes and reboots unattended.
type UnitConfig struct {
	Name             string // without the .service suffix
	Description      string
	ExecStart        string
	WorkingDirectory string
	User             string
	Environment      map[string]string
	RestartSec       int
}

// UnitPath returns the on-disk path for a unit name.
func UnitPath(name string) string {
	return filepath.Join(shared.SystemdUnitDir, name+".service")
}

// Render emits the unit file content.
func (u UnitConfig) Render() string {
	var sb strings.Builder
	sb.WriteString("[Unit]\n")
	sb.WriteString(fmt.Sprintf("Description=%s\n", u.Description))
	sb.WriteString("After=network-online.target\n")
	sb.WriteString("Wants=network-online.target\n")
	sb.WriteString("\n[Service]\n")
	sb.WriteString("Type=simple\n")
	if u.User != "" {
		sb.WriteString(fmt.Sprintf("User=%s\n", u.User))
	}
	if u.WorkingDirectory != "" {
		sb.WriteString(fmt.Sprintf("WorkingDirectory=%s\n", u.WorkingDirectory))
	}
	keys := make([]string, 0, len(u.Environment))
	for k := range u.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("Environment=\"%s=%s\"\n", k, u.Environment[k]))
	}
	sb.WriteString(fmt.Sprintf("ExecStart=%s\n", u.ExecStart))
	sb.WriteString("Restart=always\n")
	restartSec := u.RestartSec
	if restartSec <= 0 {
		restartSec = int(shared.RestartDelay.Seconds())
	}
	sb.WriteString(fmt.Sprintf("RestartSec=%d\n", restartSec))
	sb.WriteString("\n[Install]\n")
	sb.WriteString("WantedBy=multi-user.target\n")
	return sb.String()
}

// Installer writes unit files and drives systemctl. Both collaborators are
// injected so the install logic runs against fakes in tests.
type Installer struct {
	Fs  afero.Fs
	Ctl Systemctl
}

// Install writes (or updates) the unit, enables it for boot, and restarts
// it. Idempotent by unit name: unchanged content skips the write and the
// daemon-reload, leaving only the restart, which Restart=always makes a
// tolerable blip.
func (in *Installer) Install(ctx context.Context, unit UnitConfig) error {
	log := otelzap.Ctx(ctx)
	path := UnitPath(unit.Name)
	content := unit.Render()

	log.Info("Assessing systemd unit", zap.String("unit", unit.Name))
	existing, err := afero.ReadFile(in.Fs, path)
	changed := err != nil || string(existing) != content

	if changed {
		if err == nil {
			// Preserve whatever was there before we clobber it.
			if berr := afero.WriteFile(in.Fs, path+".bak", existing, 0644); berr != nil {
				log.Warn("Failed to back up existing unit file, continuing",
					zap.String("unit", unit.Name), zap.Error(berr))
			}
		}
		if err := afero.WriteFile(in.Fs, path, []byte(content), 0644); err != nil {
			return cerr.Wrapf(err, "write unit %s", unit.Name)
		}
		if err := in.Ctl.DaemonReload(ctx); err != nil {
			return err
		}
		log.Info("systemd unit written", zap.String("path", path))
	} else {
		log.Info("systemd unit unchanged", zap.String("unit", unit.Name))
	}

	if err := in.Ctl.EnableNow(ctx, unit.Name); err != nil {
		return err
	}
	if changed {
		if err := in.Ctl.Restart(ctx, unit.Name); err != nil {
			return err
		}
	}
	return nil
}

// Remove stops and disables the unit and deletes its file. Best effort on
// the stop/disable: a unit that was never loaded should not block teardown.
func (in *Installer) Remove(ctx context.Context, name string) error {
	log := otelzap.Ctx(ctx)

	if err := in.Ctl.Stop(ctx, name); err != nil {
		log.Warn("Failed to stop unit, continuing removal",
			zap.String("unit", name), zap.Error(err))
	}
	if err := in.Ctl.Disable(ctx, name); err != nil {
		log.Warn("Failed to disable unit, continuing removal",
			zap.String("unit", name), zap.Error(err))
	}

	path := UnitPath(name)
	if err := in.Fs.Remove(path); err != nil {
		if exists, _ := afero.Exists(in.Fs, path); exists {
			return cerr.Wrapf(err, "remove unit file %s", path)
		}
		return nil
	}
	return in.Ctl.DaemonReload(ctx)
}
