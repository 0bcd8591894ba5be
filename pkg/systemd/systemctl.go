// pkg/systemd/systemctl.go

package systemd

import (
	"context"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/rdock-dev/rdockctl/pkg/execute"
)

// Systemctl abstracts the process supervisor's registry operations used by
// the installer and the verifier.
type Systemctl interface {
	DaemonReload(ctx context.Context) error
	EnableNow(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

// CommandSystemctl is the production implementation backed by systemctl.
type CommandSystemctl struct {
	Runner execute.Runner
}

func (c CommandSystemctl) run(ctx context.Context, args ...string) error {
	_, err := c.Runner.Run(ctx, execute.Options{
		Command: "systemctl",
		Args:    args,
		Timeout: time.Minute,
	})
	if err != nil {
		return cerr.Wrapf(err, "systemctl %s", strings.Join(args, " "))
	}
	return nil
}

func (c CommandSystemctl) DaemonReload(ctx context.Context) error {
	return c.run(ctx, "daemon-reload")
}

func (c CommandSystemctl) EnableNow(ctx context.Context, unit string) error {
	return c.run(ctx, "enable", unit+".service")
}

func (c CommandSystemctl) Restart(ctx context.Context, unit string) error {
	return c.run(ctx, "restart", unit+".service")
}

func (c CommandSystemctl) Stop(ctx context.Context, unit string) error {
	return c.run(ctx, "stop", unit+".service")
}

func (c CommandSystemctl) Disable(ctx context.Context, unit string) error {
	return c.run(ctx, "disable", unit+".service")
}

// IsActive distinguishes "inactive" (clean false) from systemctl itself
// failing. `systemctl is-active` exits non-zero for inactive units, so the
// output is the signal, not the exit code.
func (c CommandSystemctl) IsActive(ctx context.Context, unit string) (bool, error) {
	out, err := c.Runner.Run(ctx, execute.Options{
		Command: "systemctl",
		Args:    []string{"is-active", unit + ".service"},
		Timeout: 30 * time.Second,
		Capture: true,
	})
	state := strings.TrimSpace(out)
	if state == "active" {
		return true, nil
	}
	if state != "" {
		return false, nil
	}
	return false, err
}
