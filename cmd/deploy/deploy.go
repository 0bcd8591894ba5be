// cmd/deploy/deploy.go

package deploy

import (
	"fmt"
	"os"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/deploy"
	"github.com/rdock-dev/rdockctl/pkg/interaction"
	"github.com/rdock-dev/rdockctl/pkg/nginx"
	"github.com/rdock-dev/rdockctl/pkg/rdock_cli"
	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/rdock_io"
	"github.com/rdock-dev/rdockctl/pkg/shared"
)

var DeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy rdock behind nginx with TLS and basic auth",
	Long: `Deploy runs the whole pipeline: synthesize nginx location blocks for
the terminal and editor, merge them into the domain's config (creating it,
appending to a foreign one, or overwriting with explicit consent), obtain a
certificate, upsert the htpasswd credential, install systemd units, and
verify the result.

Re-running is safe and converges to the same host state.`,
	Example: `  rdockctl deploy --domain dev.example.com --user admin
  rdockctl deploy --domain dev.example.com --user admin --base-path /rdock --mode append
  rdockctl deploy --domain dev.example.com --user admin --skip-tls --yes`,
	RunE: rdock_cli.Wrap(runDeploy),
}

func init() {
	f := DeployCmd.Flags()
	f.String("domain", "", "public domain name for the deployment (required)")
	f.String("user", "", "username for the basic-auth credential (required)")
	f.String("base-path", "", "URL prefix to serve under; empty deploys at the root")
	f.Int("terminal-port", shared.DefaultTerminalPort, "local port of the terminal backend")
	f.Int("editor-port", shared.DefaultEditorPort, "local port of the editor backend")
	f.String("email", "", "contact email for certificate registration")
	f.Bool("skip-tls", false, "deploy HTTP-only, skipping certificate provisioning")
	f.Bool("skip-editor", false, "deploy the terminal only")
	f.String("mode", "", "merge mode for an existing config: append or overwrite")
	f.Bool("require-tls", false, "treat certificate failure as fatal instead of degrading to HTTP")
	f.Bool("yes", false, "assume yes on confirmations (required for overwrite without a TTY)")
	f.String("password", "", "credential password; prompted when unset (or RDOCK_PASSWORD)")

	_ = rdock_cli.BindFlags(DeployCmd)
}

func runDeploy(rc *rdock_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	domain, _ := f.GetString("domain")
	user, _ := f.GetString("user")
	basePath, _ := f.GetString("base-path")
	terminalPort, _ := f.GetInt("terminal-port")
	editorPort, _ := f.GetInt("editor-port")
	skipTLS, _ := f.GetBool("skip-tls")
	skipEditor, _ := f.GetBool("skip-editor")
	requireTLS, _ := f.GetBool("require-tls")
	yes, _ := f.GetBool("yes")
	modeFlag, _ := f.GetString("mode")

	target := deploy.Target{
		Domain:       domain,
		Username:     user,
		BasePath:     basePath,
		TerminalPort: terminalPort,
		EditorPort:   editorPort,
		Email:        viper.GetString("email"),
		SkipTLS:      skipTLS,
		SkipEditor:   skipEditor,
	}
	target.Normalize()

	mode, err := parseMode(modeFlag)
	if err != nil {
		return rdock_err.NewExpectedError(rc.Ctx, err)
	}

	password := viper.GetString("password")
	if password == "" {
		password, err = interaction.PromptSecret(fmt.Sprintf("Password for %s", user))
		if err != nil {
			return rdock_err.NewExpectedError(rc.Ctx, err)
		}
	}
	if password == "" {
		return rdock_err.NewExpectedError(rc.Ctx, cerr.New("a non-empty password is required"))
	}

	// Thin interactive adapter around the pure merge decision: the only
	// question a human ever gets asked is the overwrite confirmation.
	confirmed := yes
	if !confirmed && domain != "" {
		if _, statErr := os.Stat(nginx.ConfigPath(domain)); statErr == nil {
			wantsOverwrite := target.BasePath == "" || mode == nginx.ModeOverwrite
			if wantsOverwrite {
				confirmed = interaction.PromptYesNo(
					fmt.Sprintf("An nginx config for %s already exists. Overwrite it", domain), false)
				if !confirmed {
					rc.Log.Warn("Overwrite declined", zap.String("domain", domain))
					if mode == nginx.ModeOverwrite {
						return rdock_err.NewExpectedError(rc.Ctx,
							cerr.New("overwrite requested but not confirmed; nothing was changed"))
					}
				}
			}
		}
	}

	d := deploy.NewDeployer()
	return d.Deploy(rc.Ctx, target, deploy.Options{
		Mode:             mode,
		ConfirmOverwrite: confirmed,
		RequireTLS:       requireTLS,
		Password:         password,
	})
}

func parseMode(s string) (nginx.Mode, error) {
	switch s {
	case "":
		return nginx.ModeAuto, nil
	case "append":
		return nginx.ModeAppend, nil
	case "overwrite":
		return nginx.ModeOverwrite, nil
	default:
		return nginx.ModeAuto, cerr.Newf("unknown --mode %q (want append or overwrite)", s)
	}
}
