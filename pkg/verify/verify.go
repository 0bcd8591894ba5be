// pkg/verify/verify.go

// Package verify runs the post-deploy health check: unit liveness via the
// process supervisor and one direct HTTP probe per backend, bypassing the
// proxy so a broken backend is distinguishable from a misconfigured proxy.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/systemd"
)

// Result summarizes one backend's health.
type Result struct {
	Unit       string
	Active     bool
	ProbeCode  int
	ProbeError error
}

// Healthy is true when the unit runs and the probe connected, regardless of
// status code: redirects and auth challenges are legitimate responses from a
// backend that has not seen a login yet.
func (r Result) Healthy() bool {
	return r.Active && r.ProbeError == nil
}

// Verifier polls the supervisor and probes backends over loopback.
type Verifier struct {
	Ctl    systemd.Systemctl
	Client *http.Client

	// PollInterval and PollWindow bound the wait for a unit to come up
	// after restart.
	PollInterval time.Duration
	PollWindow   time.Duration
}

func (v *Verifier) interval() time.Duration {
	if v.PollInterval > 0 {
		return v.PollInterval
	}
	return time.Second
}

func (v *Verifier) window() time.Duration {
	if v.PollWindow > 0 {
		return v.PollWindow
	}
	return 15 * time.Second
}

func (v *Verifier) client() *http.Client {
	if v.Client != nil {
		return v.Client
	}
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// WaitActive polls once per interval until the unit reports active or the
// window closes.
func (v *Verifier) WaitActive(ctx context.Context, unit string) (bool, error) {
	deadline := time.Now().Add(v.window())
	for {
		active, err := v.Ctl.IsActive(ctx, unit)
		if err != nil {
			return false, cerr.Wrapf(err, "query unit %s", unit)
		}
		if active {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(v.interval()):
		}
	}
}

// ProbeBackend issues one local GET directly against the backend port.
func (v *Verifier) ProbeBackend(ctx context.Context, port int) (int, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Check verifies one backend: bounded wait for the unit, then the probe.
// Non-200 codes are downgraded to warnings by the caller; only connection
// failures and dead units are real trouble.
func (v *Verifier) Check(ctx context.Context, unit string, port int) Result {
	log := otelzap.Ctx(ctx)
	res := Result{Unit: unit}

	active, err := v.WaitActive(ctx, unit)
	if err != nil {
		res.ProbeError = err
		return res
	}
	res.Active = active
	if !active {
		log.Warn("Unit did not become active within the wait window",
			zap.String("unit", unit))
		return res
	}

	code, err := v.ProbeBackend(ctx, port)
	res.ProbeCode = code
	res.ProbeError = err

	switch {
	case err != nil:
		log.Warn("Backend probe failed; the unit is running but not answering HTTP",
			zap.String("unit", unit), zap.Int("port", port), zap.Error(err))
	case code != http.StatusOK:
		log.Warn("Backend answered with a non-200 status; often fine (redirect or auth challenge)",
			zap.String("unit", unit), zap.Int("port", port), zap.Int("status", code))
	default:
		log.Info("Backend healthy", zap.String("unit", unit), zap.Int("port", port))
	}
	return res
}
