// pkg/certbot/certbot.go

// Package certbot provisions TLS for a deployed domain via certbot's nginx
// installer. Domain validation probes the plain HTTP listener, so the
// HTTP-only config must already be live before Obtain runs.
package certbot

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/execute"
	"github.com/rdock-dev/rdockctl/pkg/nginx"
)

// Provisioner obtains or confirms TLS material for one domain.
type Provisioner struct {
	Fs        afero.Fs
	Runner    execute.Runner
	Validator nginx.Validator
	Reloader  nginx.Reloader
}

// HasTLS reports whether the domain's config already carries a secure
// listener, e.g. from a prior append-mode run against a certbot-managed
// file. Issuance is skipped in that case.
func (p *Provisioner) HasTLS(configPath string) (bool, error) {
	data, err := afero.ReadFile(p.Fs, configPath)
	if err != nil {
		return false, cerr.Wrapf(err, "read %s", configPath)
	}
	return nginx.HasTLSListener(string(data)), nil
}

// Obtain requests a certificate and lets certbot rewrite the config with the
// secure listener and redirect, then re-validates and reloads. The caller
// decides whether a failure is fatal (spec: degrade to HTTP-only when TLS
// was optional).
func (p *Provisioner) Obtain(ctx context.Context, domain, email string) error {
	log := otelzap.Ctx(ctx)

	args := []string{
		"--nginx",
		"-d", domain,
		"--non-interactive",
		"--agree-tos",
		"--redirect",
	}
	if email != "" {
		args = append(args, "-m", email)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}

	log.Info("Requesting certificate", zap.String("domain", domain))
	if _, err := p.Runner.Run(ctx, execute.Options{
		Command: "certbot",
		Args:    args,
		Timeout: 5 * time.Minute,
		Capture: true,
	}); err != nil {
		// Common causes: DNS not pointing here yet, Let's Encrypt rate
		// limits, port 80 unreachable. The HTTP-only config is still
		// intact and serving.
		return cerr.Wrapf(err, "certbot for %s", domain)
	}

	// certbot edited the config behind our back; re-check before trusting
	// its reload.
	if err := p.Validator.Validate(ctx); err != nil {
		return cerr.Wrap(err, "config invalid after certbot rewrite")
	}
	if err := p.Reloader.Reload(ctx); err != nil {
		return cerr.Wrap(err, "reload after certbot")
	}

	log.Info("Certificate installed", zap.String("domain", domain))
	return nil
}

// Ensure is the idempotent entry point: skip issuance when TLS is already
// configured, obtain otherwise.
func (p *Provisioner) Ensure(ctx context.Context, configPath, domain, email string) error {
	log := otelzap.Ctx(ctx)

	hasTLS, err := p.HasTLS(configPath)
	if err != nil {
		return err
	}
	if hasTLS {
		log.Info("TLS already configured, skipping issuance",
			zap.String("domain", domain))
		return nil
	}
	return p.Obtain(ctx, domain, email)
}
