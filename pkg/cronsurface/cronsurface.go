// Package cronsurface is a thin wrapper over the host's crontab,
// exposing list/add/remove operations to the scheduler.
package cronsurface

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Controller shells to `crontab`.
type Controller struct{}

// New returns a Controller.
func New() *Controller {
	return &Controller{}
}

// List returns the current crontab's lines.
func (c *Controller) List(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "crontab", "-l").Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("list crontab: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Add appends a job `<schedule> <command>` to the crontab.
func (c *Controller) Add(ctx context.Context, schedule, command string) error {
	lines, err := c.List(ctx)
	if err != nil {
		return err
	}
	lines = append(lines, schedule+" "+command)
	return c.write(ctx, lines)
}

// Remove removes the jobIndex-th line (0-based) from the crontab.
func (c *Controller) Remove(ctx context.Context, jobIndex string) error {
	idx, err := strconv.Atoi(jobIndex)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobIndex, err)
	}

	lines, err := c.List(ctx)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(lines) {
		return fmt.Errorf("job id %d out of range", idx)
	}

	lines = append(lines[:idx], lines[idx+1:]...)
	return c.write(ctx, lines)
}

func (c *Controller) write(ctx context.Context, lines []string) error {
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = bytes.NewBufferString(strings.Join(lines, "\n") + "\n")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("write crontab: %w: %s", err, out)
	}
	return nil
}
