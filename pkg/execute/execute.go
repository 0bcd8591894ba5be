// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/telemetry"
)

// Options configures one external command invocation. Shell execution is
// deliberately unsupported: args only.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	Retries int
	Delay   time.Duration
	Capture bool
}

// Runner executes external commands. The command implementation shells out;
// tests inject fakes so the orchestration logic runs without a real host.
type Runner interface {
	Run(ctx context.Context, opts Options) (string, error)
}

// CommandRunner is the production Runner backed by os/exec.
type CommandRunner struct{}

func (CommandRunner) Run(ctx context.Context, opts Options) (string, error) {
	return Run(ctx, opts)
}

// Run executes a command with structured logging and bounded retries.
// Combined output is always captured; it is returned when opts.Capture is
// set and folded into the error summary otherwise.
func Run(ctx context.Context, opts Options) (string, error) {
	log := otelzap.Ctx(ctx)
	cmdStr := opts.Command + " " + strings.Join(opts.Args, " ")

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	runCtx, span := telemetry.Start(runCtx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	log.Debug("Starting execution", zap.String("command", cmdStr))

	var output string
	var err error

	attempts := opts.Retries
	if attempts < 1 {
		attempts = 1
	}

	for i := 1; i <= attempts; i++ {
		cmd := exec.CommandContext(runCtx, opts.Command, opts.Args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}

		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf

		err = cmd.Run()
		output = buf.String()

		if err == nil {
			log.Debug("Execution succeeded", zap.String("command", cmdStr))
			break
		}

		span.RecordError(err)
		log.Warn("Execution failed",
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", rdock_err.ExtractSummary(output, 2)),
			zap.Error(err),
		)

		if i < attempts {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, cerr.Wrapf(err, "%s: %s", cmdStr, rdock_err.ExtractSummary(output, 2))
	}
	if opts.Capture {
		return output, nil
	}
	return "", nil
}

// RunSimple executes a command with default options.
func RunSimple(ctx context.Context, command string, args ...string) error {
	_, err := Run(ctx, Options{Command: command, Args: args})
	return err
}

func defaultTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	// certbot and apt are slow; generous default, callers tighten.
	return 3 * time.Minute
}
