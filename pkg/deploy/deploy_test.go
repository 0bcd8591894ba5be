// pkg/deploy/deploy_test.go

package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdock-dev/rdockctl/pkg/htpasswd"
	"github.com/rdock-dev/rdockctl/pkg/nginx"
	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/shared"
	"github.com/rdock-dev/rdockctl/pkg/systemd"
	"github.com/rdock-dev/rdockctl/pkg/verify"
)

type fakeValidator struct{ err error }

func (v *fakeValidator) Validate(context.Context) error { return v.err }

type fakeReloader struct{ calls int }

func (r *fakeReloader) Reload(context.Context) error { r.calls++; return nil }

type fakeCtl struct{ calls []string }

func (f *fakeCtl) record(s string) error {
	f.calls = append(f.calls, s)
	return nil
}

func (f *fakeCtl) DaemonReload(context.Context) error             { return f.record("daemon-reload") }
func (f *fakeCtl) EnableNow(_ context.Context, u string) error    { return f.record("enable " + u) }
func (f *fakeCtl) Restart(_ context.Context, u string) error      { return f.record("restart " + u) }
func (f *fakeCtl) Stop(_ context.Context, u string) error         { return f.record("stop " + u) }
func (f *fakeCtl) Disable(_ context.Context, u string) error      { return f.record("disable " + u) }
func (f *fakeCtl) IsActive(context.Context, string) (bool, error) { return true, nil }

// newTestDeployer wires a Deployer entirely from fakes plus a shared
// in-memory filesystem.
func newTestDeployer() (*Deployer, *fakeCtl, *fakeReloader) {
	fs := afero.NewMemMapFs()
	ctl := &fakeCtl{}
	reloader := &fakeReloader{}

	d := &Deployer{
		Fs:        fs,
		Merger:    &nginx.Merger{Fs: fs, Validator: &fakeValidator{}, Reloader: reloader},
		Store:     &htpasswd.Store{Fs: fs, Path: shared.HtpasswdPath},
		Installer: &systemd.Installer{Fs: fs, Ctl: ctl},
		Verifier: &verify.Verifier{
			Ctl:          ctl,
			PollInterval: time.Millisecond,
			PollWindow:   10 * time.Millisecond,
		},
		EnableSite: func(context.Context, string) error { return nil },
	}
	return d, ctl, reloader
}

func backendPort(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func TestDeployCleanHost(t *testing.T) {
	d, ctl, _ := newTestDeployer()
	ctx := context.Background()

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		BasePath:     "",
		TerminalPort: backendPort(t),
		EditorPort:   backendPort(t),
		SkipTLS:      true,
	}

	require.NoError(t, d.Deploy(ctx, target, Options{Password: "s3cret"}))

	// HTTP-only config with terminal at / and editor at /code/.
	data, err := afero.ReadFile(d.Fs, nginx.ConfigPath("x.example.com"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, shared.OwnedConfigMarker))
	assert.Contains(t, text, "location / {")
	assert.Contains(t, text, "location /code/ {")
	assert.NotContains(t, text, "443")

	// One credential entry for admin.
	entries, err := d.Store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin", entries[0].Username)

	// Both units installed, enabled, restarted.
	for _, unit := range []string{shared.TerminalUnitName, shared.EditorUnitName} {
		exists, _ := afero.Exists(d.Fs, systemd.UnitPath(unit))
		assert.True(t, exists, unit)
		assert.Contains(t, ctl.calls, "enable "+unit)
		assert.Contains(t, ctl.calls, "restart "+unit)
	}
}

func TestDeployIsIdempotent(t *testing.T) {
	d, _, reloader := newTestDeployer()
	ctx := context.Background()

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		BasePath:     "/rdock",
		TerminalPort: backendPort(t),
		EditorPort:   backendPort(t),
		SkipTLS:      true,
	}

	require.NoError(t, d.Deploy(ctx, target, Options{Password: "s3cret"}))
	configPath := nginx.ConfigPath("x.example.com")
	once, err := afero.ReadFile(d.Fs, configPath)
	require.NoError(t, err)
	reloadsAfterFirst := reloader.calls

	// Second run against the already-deployed host converges: config
	// byte-identical, still one credential entry, no extra reload.
	require.NoError(t, d.Deploy(ctx, target, Options{Password: "s3cret"}))
	twice, err := afero.ReadFile(d.Fs, configPath)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
	assert.Equal(t, reloadsAfterFirst, reloader.calls)

	entries, err := d.Store.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeployRootPathCollisionAborts(t *testing.T) {
	d, _, _ := newTestDeployer()
	ctx := context.Background()

	foreign := "server {\n    listen 80;\n    server_name x.example.com;\n}\n"
	configPath := nginx.ConfigPath("x.example.com")
	require.NoError(t, afero.WriteFile(d.Fs, configPath, []byte(foreign), 0644))

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		BasePath:     "",
		TerminalPort: 7681,
		EditorPort:   8443,
		SkipTLS:      true,
	}

	err := d.Deploy(ctx, target, Options{Password: "pw"})
	require.Error(t, err)
	assert.True(t, rdock_err.IsExpectedUserError(err))

	// No mutation happened.
	data, readErr := afero.ReadFile(d.Fs, configPath)
	require.NoError(t, readErr)
	assert.Equal(t, foreign, string(data))
}

func TestDeployRootPathCollisionConfirmedOverwrites(t *testing.T) {
	d, _, _ := newTestDeployer()
	ctx := context.Background()

	foreign := "server {\n    listen 80;\n    server_name x.example.com;\n}\n"
	configPath := nginx.ConfigPath("x.example.com")
	require.NoError(t, afero.WriteFile(d.Fs, configPath, []byte(foreign), 0644))

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		TerminalPort: backendPort(t),
		EditorPort:   backendPort(t),
		SkipTLS:      true,
	}

	require.NoError(t, d.Deploy(ctx, target, Options{Password: "pw", ConfirmOverwrite: true}))

	data, err := afero.ReadFile(d.Fs, configPath)
	require.NoError(t, err)
	assert.True(t, nginx.IsOwned(string(data)))
	assert.Contains(t, string(data), "location / {")
}

func TestDeploySkipEditor(t *testing.T) {
	d, _, _ := newTestDeployer()
	ctx := context.Background()

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		BasePath:     "/rdock",
		TerminalPort: backendPort(t),
		SkipTLS:      true,
		SkipEditor:   true,
	}

	require.NoError(t, d.Deploy(ctx, target, Options{Password: "pw"}))

	data, err := afero.ReadFile(d.Fs, nginx.ConfigPath("x.example.com"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/code/")

	exists, _ := afero.Exists(d.Fs, systemd.UnitPath(shared.EditorUnitName))
	assert.False(t, exists)
}

func TestDeployInvalidTarget(t *testing.T) {
	d, _, _ := newTestDeployer()
	ctx := context.Background()

	tests := []struct {
		name   string
		target Target
	}{
		{name: "missing domain", target: Target{Username: "admin", TerminalPort: 7681, EditorPort: 8443}},
		{name: "missing username", target: Target{Domain: "x.example.com", TerminalPort: 7681, EditorPort: 8443}},
		{name: "colon in username", target: Target{Domain: "x.example.com", Username: "a:b", TerminalPort: 7681, EditorPort: 8443}},
		{name: "equal ports", target: Target{Domain: "x.example.com", Username: "admin", TerminalPort: 7681, EditorPort: 7681}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Deploy(ctx, tt.target, Options{Password: "pw"})
			require.Error(t, err)
			assert.True(t, rdock_err.IsExpectedUserError(err))

			// Input errors happen before any mutation.
			exists, _ := afero.Exists(d.Fs, shared.HtpasswdPath)
			assert.False(t, exists)
		})
	}
}

func TestUninstallKeepsForeignConfig(t *testing.T) {
	d, ctl, _ := newTestDeployer()
	ctx := context.Background()

	foreign := "server {\n    listen 80;\n}\n"
	configPath := nginx.ConfigPath("x.example.com")
	require.NoError(t, afero.WriteFile(d.Fs, configPath, []byte(foreign), 0644))
	require.NoError(t, d.Store.Upsert(ctx, "admin", "pw"))
	require.NoError(t, d.Store.Upsert(ctx, "other", "pw2"))

	err := d.Uninstall(ctx, UninstallOptions{
		Domain:      "x.example.com",
		Username:    "admin",
		PurgeConfig: true,
		DisableSite: func(context.Context, string) error { return nil },
	})
	require.NoError(t, err)

	// The foreign config is never removed, purge flag or not.
	data, readErr := afero.ReadFile(d.Fs, configPath)
	require.NoError(t, readErr)
	assert.Equal(t, foreign, string(data))

	// Our credential entry is gone; the unrelated one survives.
	entries, loadErr := d.Store.Load()
	require.NoError(t, loadErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "other", entries[0].Username)

	assert.Contains(t, ctl.calls, "stop "+shared.TerminalUnitName)
}

func TestUninstallPurgesOwnedConfig(t *testing.T) {
	d, _, reloader := newTestDeployer()
	ctx := context.Background()

	target := Target{
		Domain:       "x.example.com",
		Username:     "admin",
		TerminalPort: backendPort(t),
		EditorPort:   backendPort(t),
		SkipTLS:      true,
	}
	require.NoError(t, d.Deploy(ctx, target, Options{Password: "pw", ConfirmOverwrite: true}))
	reloadsAfterDeploy := reloader.calls

	err := d.Uninstall(ctx, UninstallOptions{
		Domain:      "x.example.com",
		Username:    "admin",
		PurgeConfig: true,
		DisableSite: func(context.Context, string) error { return nil },
	})
	require.NoError(t, err)

	exists, _ := afero.Exists(d.Fs, nginx.ConfigPath("x.example.com"))
	assert.False(t, exists)
	assert.Greater(t, reloader.calls, reloadsAfterDeploy, "nginx reloaded after dropping the config")
}
