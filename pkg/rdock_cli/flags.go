// pkg/rdock_cli/flags.go

package rdock_cli

import (
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags binds every flag on cmd to viper so RDOCK_* env vars and the
// config file can supply values; an explicit flag still wins.
func BindFlags(cmd *cobra.Command) error {
	var result error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}
