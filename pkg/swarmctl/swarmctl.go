// Package swarmctl is a thin wrapper over `docker swarm` / `docker
// stack`, exposing swarm lifecycle operations to the scheduler.
package swarmctl

import (
	"context"
	"fmt"

	"github.com/persys-dev/persys-agent/pkg/runtime"
)

// Controller shells to the runtime's swarm/stack subcommands.
type Controller struct {
	Runtime *runtime.Adapter
}

// New returns a Controller backed by rt.
func New(rt *runtime.Adapter) *Controller {
	return &Controller{Runtime: rt}
}

// Status returns `docker info --format '{{json .Swarm}}'`.
func (c *Controller) Status(ctx context.Context) (string, error) {
	out, _, err := c.Runtime.Invoke(ctx, "info", "--format", "{{json .Swarm}}")
	if err != nil {
		return out, fmt.Errorf("swarm status: %w", err)
	}
	return out, nil
}

// Init runs `docker swarm init`.
func (c *Controller) Init(ctx context.Context, advertiseAddr string) (string, error) {
	args := []string{"swarm", "init"}
	if advertiseAddr != "" {
		args = append(args, "--advertise-addr", advertiseAddr)
	}
	out, _, err := c.Runtime.Invoke(ctx, args...)
	if err != nil {
		return out, fmt.Errorf("swarm init: %w", err)
	}
	return out, nil
}

// Join runs `docker swarm join`.
func (c *Controller) Join(ctx context.Context, token, remoteAddr string) (string, error) {
	out, _, err := c.Runtime.Invoke(ctx, "swarm", "join", "--token", token, remoteAddr)
	if err != nil {
		return out, fmt.Errorf("swarm join: %w", err)
	}
	return out, nil
}

// Leave runs `docker swarm leave --force`.
func (c *Controller) Leave(ctx context.Context) (string, error) {
	out, _, err := c.Runtime.Invoke(ctx, "swarm", "leave", "--force")
	if err != nil {
		return out, fmt.Errorf("swarm leave: %w", err)
	}
	return out, nil
}

// Deploy runs `docker stack deploy -c <composeFile> <stackName>`.
func (c *Controller) Deploy(ctx context.Context, stackName, composeFile string) (string, error) {
	out, _, err := c.Runtime.Invoke(ctx, "stack", "deploy", "-c", composeFile, stackName)
	if err != nil {
		return out, fmt.Errorf("stack deploy %s: %w", stackName, err)
	}
	return out, nil
}

// Remove runs `docker stack rm <stackName>`.
func (c *Controller) Remove(ctx context.Context, stackName string) (string, error) {
	out, _, err := c.Runtime.Invoke(ctx, "stack", "rm", stackName)
	if err != nil {
		return out, fmt.Errorf("stack rm %s: %w", stackName, err)
	}
	return out, nil
}
