// Package system is the capability layer between orchestration logic and
// the host. Everything that would otherwise shell out directly goes through
// these interfaces so tests can substitute recording fakes and alternate
// backends can be dropped in without touching the pipeline.
package system

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns combined output. A non-zero
	// exit is returned as an error carrying the captured output.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// BinaryFinder resolves command names to paths.
type BinaryFinder interface {
	LookPath(name string) (string, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimSpace(buf.String())
	if err != nil {
		return out, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, out)
	}
	return out, nil
}

// ExecFinder resolves binaries via the PATH.
type ExecFinder struct{}

func (ExecFinder) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
