// pkg/nginx/merge.go

package nginx

import (
	"context"
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/shared"
)

// Mode is the merger's decision for one run.
type Mode int

const (
	ModeAuto Mode = iota // no explicit choice from the operator
	ModeCreate
	ModeAppend
	ModeOverwrite
	ModeAbort
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeAppend:
		return "append"
	case ModeOverwrite:
		return "overwrite"
	case ModeAbort:
		return "abort"
	default:
		return "auto"
	}
}

// ErrRootPathConflict is returned when a root-path deployment would clobber
// an existing config that belongs to another application.
var ErrRootPathConflict = cerr.New("existing nginx config would be overwritten by a root-path deployment")

// DecideMode is the pure decision function at the heart of the merger. The
// interactive prompt is a thin adapter supplying explicit and confirmed;
// nothing here touches the filesystem or the terminal.
//
//	no existing config            -> Create
//	existing + empty base path    -> Overwrite only with confirmation, else Abort
//	existing + sub-path           -> operator's explicit mode, default Append
func DecideMode(existingPresent, basePathEmpty bool, explicit Mode, confirmedOverwrite bool) Mode {
	if !existingPresent {
		return ModeCreate
	}
	if basePathEmpty {
		// Riskiest path in the whole system: silently destroying another
		// application's working config. Overwrite must be explicit.
		if confirmedOverwrite {
			return ModeOverwrite
		}
		return ModeAbort
	}
	switch explicit {
	case ModeOverwrite:
		return ModeOverwrite
	case ModeAppend, ModeAuto:
		return ModeAppend
	default:
		return ModeAppend
	}
}

// MutationPlan is computed in full before any write; it is never partially
// applied.
type MutationPlan struct {
	Mode     Mode
	Anchor   string // exact anchor line for Append, empty otherwise
	NewText  string // complete replacement file content
	NoChange bool   // append found every block already present
}

// HasTLSListener reports whether the config already has a secure listener,
// i.e. certbot has run against it before.
func HasTLSListener(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "listen") && strings.Contains(trimmed, "443") {
			return true
		}
	}
	return false
}

// IsOwned reports whether the file was created by rdockctl outright, as
// opposed to pre-existing config we merely appended into.
func IsOwned(text string) bool {
	return strings.HasPrefix(text, shared.OwnedConfigMarker)
}

func ownedHeader() string {
	return shared.OwnedConfigMarker + " - do not edit the location blocks below by hand\n"
}

// HasLocation reports whether a location block for matchPath already exists
// in the config text.
func HasLocation(text, matchPath string) bool {
	needle := "location " + matchPath + " "
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, needle) || trimmed == "location "+matchPath+"{" {
			return true
		}
	}
	return false
}

// findAnchorLine returns the exact line the synthesized blocks are inserted
// before: the secure listener when TLS is already configured, else the first
// listener of the HTTP server block. Anchoring on the listen directive keeps
// the insertion inside the matching server block.
func findAnchorLine(text string) (string, error) {
	preferTLS := HasTLSListener(text)
	var httpAnchor string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || !strings.HasPrefix(trimmed, "listen") {
			continue
		}
		if strings.Contains(trimmed, "443") {
			if preferTLS {
				return line, nil
			}
			continue
		}
		if httpAnchor == "" {
			httpAnchor = line
		}
	}
	if preferTLS {
		return "", cerr.New("config claims a TLS listener but none was found")
	}
	if httpAnchor == "" {
		return "", cerr.New("no listen directive found in existing config")
	}
	return httpAnchor, nil
}

// BuildPlan computes the full mutation before anything touches disk.
// existingText is empty for Create.
func BuildPlan(mode Mode, existingText string, spec SiteSpec, blocks []LocationBlock) (MutationPlan, error) {
	switch mode {
	case ModeCreate, ModeOverwrite:
		return MutationPlan{
			Mode:    mode,
			NewText: RenderServerConfig(spec, blocks),
		}, nil

	case ModeAppend:
		// Converge instead of duplicating: drop blocks that are already
		// present from a prior run.
		var missing []LocationBlock
		for _, b := range blocks {
			if !HasLocation(existingText, b.MatchPath) {
				missing = append(missing, b)
			}
		}
		if len(missing) == 0 {
			return MutationPlan{Mode: mode, NoChange: true, NewText: existingText}, nil
		}

		anchor, err := findAnchorLine(existingText)
		if err != nil {
			return MutationPlan{}, err
		}

		indent := leadingWhitespace(anchor)
		var insert strings.Builder
		for _, b := range missing {
			insert.WriteString(b.Render(indent))
			insert.WriteString("\n")
		}

		newText, err := insertBeforeLine(existingText, anchor, insert.String())
		if err != nil {
			return MutationPlan{}, err
		}
		return MutationPlan{Mode: mode, Anchor: anchor, NewText: newText}, nil

	default:
		return MutationPlan{}, cerr.Newf("cannot build a plan for mode %s", mode)
	}
}

// insertBeforeLine splices text in front of the first occurrence of the
// exact anchor line, treating the file as a single atomic value.
func insertBeforeLine(text, anchor, insert string) (string, error) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == anchor {
			var sb strings.Builder
			sb.WriteString(strings.Join(lines[:i], "\n"))
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(insert)
			sb.WriteString(strings.Join(lines[i:], "\n"))
			return sb.String(), nil
		}
	}
	return "", cerr.Newf("anchor line not found: %q", strings.TrimSpace(anchor))
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// Validator checks a fully written config; the production implementation
// runs `nginx -t`.
type Validator interface {
	Validate(ctx context.Context) error
}

// Reloader makes the serving daemon pick up a validated config. Reload, not
// restart: unrelated connections must survive our deploy.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Merger applies mutation plans to the shared nginx config with snapshot,
// validate, reload-or-rollback discipline.
type Merger struct {
	Fs        afero.Fs
	Validator Validator
	Reloader  Reloader
}

// BackupPath returns where Apply snapshots the pre-mutation file.
func BackupPath(configPath string) string {
	return configPath + ".rdock-bak"
}

// Apply executes a plan transactionally: snapshot, write the in-memory
// replacement, validate, then reload. On validation failure the pre-run
// bytes are restored verbatim; the daemon never sees a half-applied file
// because reload is the only observable transition.
func (m *Merger) Apply(ctx context.Context, configPath string, plan MutationPlan) error {
	log := otelzap.Ctx(ctx)

	if plan.Mode == ModeAppend && plan.NoChange {
		log.Info("Location blocks already present, nothing to apply",
			zap.String("path", configPath))
		return nil
	}

	existed := true
	snapshot, err := afero.ReadFile(m.Fs, configPath)
	if err != nil {
		existed = false
		snapshot = nil
	}

	if plan.Mode == ModeCreate && existed {
		return cerr.Newf("create planned but %s already exists", configPath)
	}
	if plan.Mode != ModeCreate && !existed {
		return cerr.Newf("%s planned but %s does not exist", plan.Mode, configPath)
	}

	// Snapshot. Both append and overwrite get the same rollback discipline.
	if existed {
		if err := afero.WriteFile(m.Fs, BackupPath(configPath), snapshot, 0644); err != nil {
			return cerr.Wrap(err, "snapshot existing config")
		}
	}

	log.Info("Writing nginx config",
		zap.String("path", configPath),
		zap.String("mode", plan.Mode.String()))
	if err := afero.WriteFile(m.Fs, configPath, []byte(plan.NewText), 0644); err != nil {
		return cerr.Wrap(err, "write nginx config")
	}

	if err := m.Validator.Validate(ctx); err != nil {
		log.Error("nginx config validation failed, rolling back",
			zap.String("path", configPath), zap.Error(err))
		if rbErr := m.rollback(configPath, snapshot, existed); rbErr != nil {
			return cerr.WithSecondaryError(
				cerr.Wrap(err, "config validation failed and rollback also failed"), rbErr)
		}
		return cerr.Wrap(err, "config validation failed, previous config restored")
	}

	if err := m.Reloader.Reload(ctx); err != nil {
		// The file on disk is valid; reload failure is reported, not
		// rolled back.
		return cerr.Wrap(err, "reload nginx")
	}

	log.Info("nginx config applied and reloaded",
		zap.String("path", configPath),
		zap.String("mode", plan.Mode.String()))
	return nil
}

func (m *Merger) rollback(configPath string, snapshot []byte, existed bool) error {
	if !existed {
		return m.Fs.Remove(configPath)
	}
	if err := afero.WriteFile(m.Fs, configPath, snapshot, 0644); err != nil {
		return fmt.Errorf("restore %s from snapshot: %w", configPath, err)
	}
	return nil
}
