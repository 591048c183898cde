package collector

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-tangra/go-tangra-sysinfo/internal/fallback"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host with a C locale so output is
// parseable.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("run %s: %w", name, ctxErr)
		}
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return "", fmt.Errorf("run %s: %w", name, fallback.ErrNoData)
	}
	return string(out), nil
}

// command builds a strategy around a single command invocation and a parser
// for its output.
func command[T any](c *Collector, parse func(string) (T, error), name string, args ...string) fallback.Strategy[T] {
	label := strings.TrimSpace(name + " " + strings.Join(args, " "))
	return fallback.New(label, func(ctx context.Context) (T, error) {
		out, err := c.opts.Runner.Run(ctx, name, args...)
		if err != nil {
			var zero T
			return zero, err
		}
		return parse(out)
	})
}
