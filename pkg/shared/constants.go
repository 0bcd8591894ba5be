// pkg/shared/constants.go

package shared

import "time"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Canonical host paths managed by rdockctl. The nginx config and htpasswd
// file are shared mutable state with other applications on the host; see
// pkg/nginx for the mutation protocol.
const (
	NginxSitesAvailable = "/etc/nginx/sites-available"
	NginxSitesEnabled   = "/etc/nginx/sites-enabled"
	HtpasswdPath        = "/etc/nginx/.htpasswd"
	SystemdUnitDir      = "/etc/systemd/system"
	InstallDir          = "/opt/rdock"
	ConfigDir           = "/etc/rdock"
	ConfigFileName      = "rdockctl"
	EnvPrefix           = "RDOCK"
)

// Default loopback ports for the managed backends. The terminal server and
// the editor never listen publicly; nginx is the sole public surface.
const (
	DefaultTerminalPort = 7681
	DefaultEditorPort   = 8443
)

// Managed unit names. Identity is the unit name, so re-running a deploy
// updates in place rather than accumulating units.
const (
	TerminalUnitName = "rdock-terminal"
	EditorUnitName   = "rdock-editor"
)

// RestartDelay is the systemd RestartSec applied to every managed unit.
const RestartDelay = 3 * time.Second

// OwnedConfigMarker is written as the first line of every nginx config file
// rdockctl creates outright. Files without it pre-existed and belong to
// another application: mutations must be block-scoped insertions only.
const OwnedConfigMarker = "# managed by rdockctl"
