package supervisor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/moor-sh/moor/internal/system"
)

// portOwners returns the PIDs of processes listening on the TCP port.
// lsof exits non-zero when nothing matches, which is the free-port case.
func portOwners(ctx context.Context, runner system.Runner, port int) ([]int, error) {
	out, err := runner.Run(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN")
	if err != nil {
		return nil, nil
	}

	var pids []int
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, convErr := strconv.Atoi(line)
		if convErr != nil {
			return nil, fmt.Errorf("unexpected lsof output %q: %w", line, convErr)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// matchingProcesses scans the process table for commands matching pattern.
// Used to tell NotRunning apart from an orphaned instance that lost its
// state record.
func matchingProcesses(ctx context.Context, runner system.Runner, pattern string) []int {
	out, err := runner.Run(ctx, "pgrep", "-f", pattern)
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pid, convErr := strconv.Atoi(line); convErr == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
