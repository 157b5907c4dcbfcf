package bus

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner executes an external command and returns its trimmed output.
// Every invocation is bounded by a timeout; failures (spawn error, non-zero
// exit, timeout) come back as plain errors, never panics.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the real Runner backed by os/exec
type ExecRunner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewExecRunner creates a runner that bounds every call by timeout
func NewExecRunner(logger *zap.Logger, timeout time.Duration) *ExecRunner {
	return &ExecRunner{logger: logger, timeout: timeout}
}

// Run invokes name with args and returns combined output with surrounding
// whitespace stripped.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Debug("Command failed",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Error(err))
		return "", fmt.Errorf("%s %v: %w (%s)", name, args, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
