// pkg/nginx/system.go

package nginx

import (
	"context"
	"os"
	"path/filepath"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/execute"
	"github.com/rdock-dev/rdockctl/pkg/shared"
)

// ConfigPath returns the sites-available path for a domain.
func ConfigPath(domain string) string {
	return filepath.Join(shared.NginxSitesAvailable, domain+".conf")
}

// EnabledPath returns the sites-enabled symlink path for a domain.
func EnabledPath(domain string) string {
	return filepath.Join(shared.NginxSitesEnabled, domain+".conf")
}

// CommandValidator validates the whole nginx config tree with `nginx -t`.
type CommandValidator struct {
	Runner execute.Runner
}

func (v CommandValidator) Validate(ctx context.Context) error {
	_, err := v.Runner.Run(ctx, execute.Options{
		Command: "nginx",
		Args:    []string{"-t"},
		Timeout: 30 * time.Second,
		Capture: true,
	})
	if err != nil {
		return cerr.Wrap(err, "nginx -t")
	}
	return nil
}

// ServiceReloader reloads nginx through systemctl. Reload keeps unrelated
// connections alive; restart would drop them.
type ServiceReloader struct {
	Runner execute.Runner
}

func (r ServiceReloader) Reload(ctx context.Context) error {
	_, err := r.Runner.Run(ctx, execute.Options{
		Command: "systemctl",
		Args:    []string{"reload", "nginx"},
		Timeout: 30 * time.Second,
	})
	return err
}

// EnsureSiteEnabled symlinks the domain config into sites-enabled.
// Idempotent: an existing correct link is left alone.
func EnsureSiteEnabled(ctx context.Context, domain string) error {
	log := otelzap.Ctx(ctx)
	target := ConfigPath(domain)
	link := EnabledPath(domain)

	if current, err := os.Readlink(link); err == nil {
		if current == target {
			log.Debug("Site already enabled", zap.String("link", link))
			return nil
		}
		if err := os.Remove(link); err != nil {
			return cerr.Wrapf(err, "remove stale symlink %s", link)
		}
	}

	if err := os.Symlink(target, link); err != nil {
		return cerr.Wrapf(err, "enable site %s", domain)
	}
	log.Info("Enabled nginx site", zap.String("link", link), zap.String("target", target))
	return nil
}

// DisableSite removes the sites-enabled symlink. Missing link is a no-op.
func DisableSite(ctx context.Context, domain string) error {
	link := EnabledPath(domain)
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return cerr.Wrapf(err, "disable site %s", domain)
	}
	return nil
}
