// pkg/systemd/unit_test.go

package systemd

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCtl struct {
	calls []string
}

func (f *fakeCtl) record(s string) error {
	f.calls = append(f.calls, s)
	return nil
}

func (f *fakeCtl) DaemonReload(context.Context) error            { return f.record("daemon-reload") }
func (f *fakeCtl) EnableNow(_ context.Context, u string) error   { return f.record("enable " + u) }
func (f *fakeCtl) Restart(_ context.Context, u string) error     { return f.record("restart " + u) }
func (f *fakeCtl) Stop(_ context.Context, u string) error        { return f.record("stop " + u) }
func (f *fakeCtl) Disable(_ context.Context, u string) error     { return f.record("disable " + u) }
func (f *fakeCtl) IsActive(context.Context, string) (bool, error) { return true, nil }

func testUnit() UnitConfig {
	return UnitConfig{
		Name:             "rdock-terminal",
		Description:      "rdock web terminal",
		ExecStart:        "/opt/rdock/rdock-server --port 7681",
		WorkingDirectory: "/opt/rdock",
		Environment:      map[string]string{"RDOCK_PORT": "7681"},
	}
}

func TestUnitRender(t *testing.T) {
	out := testUnit().Render()

	assert.Contains(t, out, "Description=rdock web terminal")
	assert.Contains(t, out, "ExecStart=/opt/rdock/rdock-server --port 7681")
	assert.Contains(t, out, "WorkingDirectory=/opt/rdock")
	assert.Contains(t, out, `Environment="RDOCK_PORT=7681"`)
	assert.Contains(t, out, "Restart=always")
	assert.Contains(t, out, "RestartSec=3")
	assert.Contains(t, out, "WantedBy=multi-user.target")
}

func TestInstallWritesEnablesRestarts(t *testing.T) {
	ctl := &fakeCtl{}
	in := &Installer{Fs: afero.NewMemMapFs(), Ctl: ctl}

	require.NoError(t, in.Install(context.Background(), testUnit()))

	data, err := afero.ReadFile(in.Fs, UnitPath("rdock-terminal"))
	require.NoError(t, err)
	assert.Equal(t, testUnit().Render(), string(data))
	assert.Equal(t, []string{
		"daemon-reload",
		"enable rdock-terminal",
		"restart rdock-terminal",
	}, ctl.calls)
}

func TestInstallUnchangedIsNoOp(t *testing.T) {
	ctl := &fakeCtl{}
	in := &Installer{Fs: afero.NewMemMapFs(), Ctl: ctl}

	require.NoError(t, in.Install(context.Background(), testUnit()))
	ctl.calls = nil

	// Same content: no write, no daemon-reload, no restart.
	require.NoError(t, in.Install(context.Background(), testUnit()))
	assert.Equal(t, []string{"enable rdock-terminal"}, ctl.calls)
}

func TestInstallChangedPortRewrites(t *testing.T) {
	ctl := &fakeCtl{}
	in := &Installer{Fs: afero.NewMemMapFs(), Ctl: ctl}

	require.NoError(t, in.Install(context.Background(), testUnit()))
	ctl.calls = nil

	changed := testUnit()
	changed.ExecStart = "/opt/rdock/rdock-server --port 9000"
	require.NoError(t, in.Install(context.Background(), changed))

	data, err := afero.ReadFile(in.Fs, UnitPath("rdock-terminal"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "--port 9000")
	assert.Contains(t, ctl.calls, "restart rdock-terminal")

	// Previous unit content is preserved as a backup.
	bak, err := afero.ReadFile(in.Fs, UnitPath("rdock-terminal")+".bak")
	require.NoError(t, err)
	assert.Contains(t, string(bak), "--port 7681")
}

func TestRemove(t *testing.T) {
	ctl := &fakeCtl{}
	in := &Installer{Fs: afero.NewMemMapFs(), Ctl: ctl}

	require.NoError(t, in.Install(context.Background(), testUnit()))
	ctl.calls = nil

	require.NoError(t, in.Remove(context.Background(), "rdock-terminal"))
	exists, _ := afero.Exists(in.Fs, UnitPath("rdock-terminal"))
	assert.False(t, exists)
	assert.Equal(t, []string{
		"stop rdock-terminal",
		"disable rdock-terminal",
		"daemon-reload",
	}, ctl.calls)

	// Removing an absent unit does not fail teardown.
	require.NoError(t, in.Remove(context.Background(), "rdock-terminal"))
}
