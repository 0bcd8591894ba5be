// pkg/rdock_cli/wrap.go

package rdock_cli

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/logger"
	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/rdock_io"
)

// Wrap adapts a RuntimeContext handler to a cobra RunE, adding panic
// recovery, lifecycle logging, and stack-trace capture for system errors.
func Wrap(fn func(rc *rdock_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitFallback()

		rc := rdock_io.NewContext(context.Background(), cmd.Name())
		defer rc.End(&err)

		defer func() {
			if r := recover(); r != nil {
				err = cerr.AssertionFailedf("panic: %v", r)
				rc.Log.Error("Panic recovered", zap.Any("panic", r))
			}
		}()

		rc.LogRuntimeExecutionContext()

		err = fn(rc, cmd, args)
		if err != nil && !rdock_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
