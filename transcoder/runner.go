package transcoder

import (
	"context"
	"os/exec"
)

// Runner invokes an external command and returns its combined output.
// The default implementation shells out; tests substitute fakes so the
// adapter is testable without a real ffmpeg install.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
