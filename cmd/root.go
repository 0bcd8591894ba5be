// cmd/root.go

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/cmd/deploy"
	"github.com/rdock-dev/rdockctl/cmd/status"
	"github.com/rdock-dev/rdockctl/cmd/uninstall"
	"github.com/rdock-dev/rdockctl/cmd/version"
	"github.com/rdock-dev/rdockctl/pkg/logger"
	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/shared"
)

// RootCmd is the base command for rdockctl.
var RootCmd = &cobra.Command{
	Use:   "rdockctl",
	Short: "Deploy and manage rdock behind nginx with TLS and basic auth",
	Long: `rdockctl deploys the rdock web terminal and editor behind an nginx
reverse proxy, provisions TLS via certbot, manages the shared htpasswd
credential store, and installs systemd units for the backends.

Every command is safe to re-run: deployments converge instead of
duplicating configuration, and mutations to shared files are validated
and rolled back on failure.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// initConfig loads defaults from /etc/rdock/rdockctl.yaml and RDOCK_* env
// vars; flags still win.
func initConfig() {
	viper.SetConfigName(shared.ConfigFileName)
	viper.AddConfigPath(shared.ConfigDir)
	viper.SetEnvPrefix(shared.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		zap.L().Debug("Loaded config file", zap.String("file", viper.ConfigFileUsed()))
	}
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	cobra.OnInitialize(initConfig)
	RootCmd.AddCommand(deploy.DeployCmd)
	RootCmd.AddCommand(uninstall.UninstallCmd)
	RootCmd.AddCommand(status.StatusCmd)
	RootCmd.AddCommand(version.VersionCmd)
}

// Execute runs the CLI and maps errors to exit codes: 0 success, 1 system
// error, 2 expected operator error.
func Execute() {
	RegisterCommands()

	if err := RootCmd.Execute(); err != nil {
		if rdock_err.IsExpectedUserError(err) {
			logger.L().Warn("Command declined or invalid input", zap.Error(err))
		} else {
			logger.L().Error("Command failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(rdock_err.ExitCode(err))
	}
	logger.Sync()
}
