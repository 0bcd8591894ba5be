// cmd/uninstall/uninstall.go

package uninstall

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdock-dev/rdockctl/pkg/deploy"
	"github.com/rdock-dev/rdockctl/pkg/interaction"
	"github.com/rdock-dev/rdockctl/pkg/rdock_cli"
	"github.com/rdock-dev/rdockctl/pkg/rdock_io"
)

var UninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove rdock units, the install directory, and owned config",
	Long: `Uninstall stops and disables the rdock systemd units, removes the
install directory, and deletes the credential entry for the given user.

The nginx config is removed only when rdockctl created it and --purge-config
is passed. Configs rdock was appended into belong to another application and
are always left untouched.`,
	RunE: rdock_cli.Wrap(runUninstall),
}

func init() {
	f := UninstallCmd.Flags()
	f.String("domain", "", "domain whose owned nginx config may be removed")
	f.String("user", "", "credential entry to remove from the shared htpasswd store")
	f.Bool("purge-config", false, "also remove an rdockctl-owned nginx config")
	f.Bool("yes", false, "skip the confirmation prompt")
}

func runUninstall(rc *rdock_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	domain, _ := f.GetString("domain")
	user, _ := f.GetString("user")
	purge, _ := f.GetBool("purge-config")
	yes, _ := f.GetBool("yes")

	if !yes && !interaction.PromptYesNo("Remove rdock services and install directory", false) {
		fmt.Println("Aborted.")
		return nil
	}

	d := deploy.NewDeployer()
	return d.Uninstall(rc.Ctx, deploy.UninstallOptions{
		Domain:      domain,
		Username:    user,
		PurgeConfig: purge,
	})
}
