// cmd/status/status.go

package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdock-dev/rdockctl/pkg/deploy"
	"github.com/rdock-dev/rdockctl/pkg/rdock_cli"
	"github.com/rdock-dev/rdockctl/pkg/rdock_io"
	"github.com/rdock-dev/rdockctl/pkg/shared"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the health of a deployed rdock instance",
	Long: `Status runs the post-deploy verifier on its own: unit liveness via
systemd plus a direct HTTP probe against each backend port, bypassing nginx
so backend and proxy problems are told apart.`,
	RunE: rdock_cli.Wrap(runStatus),
}

func init() {
	f := StatusCmd.Flags()
	f.Int("terminal-port", shared.DefaultTerminalPort, "local port of the terminal backend")
	f.Int("editor-port", shared.DefaultEditorPort, "local port of the editor backend")
	f.Bool("skip-editor", false, "check the terminal only")
}

func runStatus(rc *rdock_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	terminalPort, _ := f.GetInt("terminal-port")
	editorPort, _ := f.GetInt("editor-port")
	skipEditor, _ := f.GetBool("skip-editor")

	d := deploy.NewDeployer()

	checks := []struct {
		unit string
		port int
	}{
		{shared.TerminalUnitName, terminalPort},
	}
	if !skipEditor {
		checks = append(checks, struct {
			unit string
			port int
		}{shared.EditorUnitName, editorPort})
	}

	allHealthy := true
	for _, c := range checks {
		res := d.Verifier.Check(rc.Ctx, c.unit, c.port)
		state := "ok"
		if !res.Healthy() {
			state = "unhealthy"
			allHealthy = false
		}
		fmt.Printf("%-16s active=%-5v status=%-3d %s\n", c.unit, res.Active, res.ProbeCode, state)
	}

	if !allHealthy {
		fmt.Println("One or more backends are unhealthy; check `journalctl -u <unit>`.")
	}
	return nil
}
