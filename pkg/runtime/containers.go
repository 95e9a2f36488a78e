package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/persys-dev/persys-agent/pkg/types"
)

// ContainerRecord is one tab-delimited row from `docker ps`.
type ContainerRecord struct {
	ID     string
	Names  string
	Image  string
	Status string
	Ports  string
}

// ListContainers lists containers (running only, unless all is true) and
// parses the tab-delimited id/names/image/status/ports format.
func (a *Adapter) ListContainers(ctx context.Context, all bool) ([]ContainerRecord, error) {
	args := []string{"ps", "--format", "{{.ID}}\t{{.Names}}\t{{.Image}}\t{{.Status}}\t{{.Ports}}"}
	if all {
		args = append(args, "-a")
	}

	out, _, err := a.Invoke(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return parseContainerLines(out), nil
}

func parseContainerLines(out string) []ContainerRecord {
	var records []ContainerRecord
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.Split(line, "\t")
		rec := ContainerRecord{}
		if len(fields) > 0 {
			rec.ID = fields[0]
		}
		if len(fields) > 1 {
			rec.Names = fields[1]
		}
		if len(fields) > 2 {
			rec.Image = fields[2]
		}
		if len(fields) > 3 {
			rec.Status = fields[3]
		}
		if len(fields) > 4 {
			rec.Ports = fields[4]
		}
		records = append(records, rec)
	}
	return records
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func parseContainerState(out string) (*ContainerState, error) {
	var state ContainerState
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &state); err != nil {
		return nil, fmt.Errorf("parse state JSON: %w", err)
	}
	return &state, nil
}

// ContainerState is the subset of `docker inspect --format '{{json .State}}'`
// fields the reconciler needs.
type ContainerState struct {
	Running    bool   `json:"Running"`
	Paused     bool   `json:"Paused"`
	Restarting bool   `json:"Restarting"`
	Dead       bool   `json:"Dead"`
	Status     string `json:"Status"`
	Error      string `json:"Error"`
}

// InspectState returns the named container's .State JSON.
func (a *Adapter) InspectState(ctx context.Context, name string) (*ContainerState, error) {
	out, exitCode, err := a.Invoke(ctx, "inspect", name, "--format", "{{json .State}}")
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("inspect %s: exit code %d: %s", name, exitCode, out)
	}

	state, err := parseContainerState(out)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", name, err)
	}
	return state, nil
}

// ToContainerStatus maps .State fields to the unified status taxonomy
// per the precedence rules: boolean flags win over .Status text.
func (s *ContainerState) ToContainerStatus() (types.ContainerStatus, string) {
	reason := ""
	var status types.ContainerStatus

	switch {
	case s.Running:
		status = types.StatusRunning
	case s.Paused:
		status = types.StatusPaused
	case s.Restarting:
		status = types.StatusRestarting
	case s.Dead:
		status = types.StatusDead
	default:
		switch s.Status {
		case "created":
			status = types.StatusContainerCreating
		case "exited":
			status = types.StatusExited
		case "removing":
			status = types.StatusRemoving
		case "dead":
			status = types.StatusDead
		case "running":
			status = types.StatusRunning
		default:
			status = types.StatusContainerCreating
		}
	}

	if s.Error != "" {
		status = types.StatusImagePullBackOff
		reason = s.Error
	}
	return status, reason
}

// ImageRecord is one tab-delimited row from `docker images`.
type ImageRecord struct {
	ID         string
	Repository string
	Tag        string
	Size       string
}

// ListImages lists images and parses the tab-delimited
// id/repository/tag/size format.
func (a *Adapter) ListImages(ctx context.Context, all bool) ([]ImageRecord, error) {
	args := []string{"images", "--format", "{{.ID}}\t{{.Repository}}\t{{.Tag}}\t{{.Size}}"}
	if all {
		args = append(args, "-a")
	}

	out, _, err := a.Invoke(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var records []ImageRecord
	for _, line := range splitNonEmptyLines(out) {
		fields := strings.Split(line, "\t")
		rec := ImageRecord{}
		if len(fields) > 0 {
			rec.ID = fields[0]
		}
		if len(fields) > 1 {
			rec.Repository = fields[1]
		}
		if len(fields) > 2 {
			rec.Tag = fields[2]
		}
		if len(fields) > 3 {
			rec.Size = fields[3]
		}
		records = append(records, rec)
	}
	return records, nil
}

// PullImage pulls image via `docker pull`.
func (a *Adapter) PullImage(ctx context.Context, image string) (string, error) {
	out, exitCode, err := a.Invoke(ctx, "pull", image)
	if err != nil {
		return out, fmt.Errorf("pull %s: %w", image, err)
	}
	if exitCode != 0 {
		return out, fmt.Errorf("pull %s: exit code %d", image, exitCode)
	}
	return out, nil
}

// LoginToRegistry logs in via `docker login`, matching the original
// success criterion: the output contains "Login Succeeded".
func (a *Adapter) LoginToRegistry(ctx context.Context, registry, username, password string) (bool, string, error) {
	args := []string{"login"}
	if registry != "" {
		args = append(args, registry)
	}
	args = append(args, "-u", username, "--password-stdin")

	cmd := append([]string{}, args...)
	out, _, err := a.invokeWithStdin(ctx, strings.NewReader(password), cmd...)
	if err != nil {
		return false, out, fmt.Errorf("login: %w", err)
	}
	return strings.Contains(out, "Login Succeeded"), out, nil
}

// PullPrivateImage logs into registry, then pulls image.
func (a *Adapter) PullPrivateImage(ctx context.Context, registry, username, password, image string) (string, error) {
	ok, out, err := a.LoginToRegistry(ctx, registry, username, password)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("login to %s did not report success", registry)
	}
	return a.PullImage(ctx, image)
}
