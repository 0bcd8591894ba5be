// cmd/version/version.go

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rdock-dev/rdockctl/pkg/shared"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rdockctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rdockctl %s (%s/%s)\n", shared.Version, runtime.GOOS, runtime.GOARCH)
	},
}
