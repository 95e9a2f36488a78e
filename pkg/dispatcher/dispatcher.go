// Package dispatcher accepts workload launch requests, spawns the
// container runtime asynchronously, and tracks in-flight launches by
// workload id and by subprocess PID until the view reconciler observes
// them in the runtime's own listing.
package dispatcher

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/metrics"
	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/types"
)

// WorkloadState is the dispatcher's last-known status for a named
// workload, independent of the reconciler's merged view.
type WorkloadState struct {
	Status     string
	Reason     string
	LastUpdate time.Time
}

// Dispatcher tracks in-flight launches across three independently
// mutex-guarded maps; no two are ever locked at once.
type Dispatcher struct {
	Runtime *runtime.Adapter

	pendingMu sync.Mutex
	pending   map[string]time.Time // workloadId -> launchedAt

	runningMu sync.Mutex
	running   map[int]string // pid -> workloadId

	stateMu sync.Mutex
	states  map[string]WorkloadState // workloadId -> last known state
}

// New returns a Dispatcher backed by rt.
func New(rt *runtime.Adapter) *Dispatcher {
	return &Dispatcher{
		Runtime: rt,
		pending: make(map[string]time.Time),
		running: make(map[int]string),
		states:  make(map[string]WorkloadState),
	}
}

// Run launches spec asynchronously: it starts the subprocess without
// waiting, records the pending/running-pid bookkeeping, and returns
// immediately. The actual exec.Cmd is reaped by a detached goroutine so
// it never becomes a zombie process.
func (d *Dispatcher) Run(spec types.LaunchSpec) error {
	args := buildRunArgs(spec)

	cmd := exec.Command(d.Runtime.Binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start docker run for %s: %w", spec.WorkloadID, err)
	}

	now := time.Now()
	d.pendingMu.Lock()
	d.pending[spec.WorkloadID] = now
	d.pendingMu.Unlock()

	pid := cmd.Process.Pid
	if pid > 0 {
		d.runningMu.Lock()
		d.running[pid] = spec.WorkloadID
		d.runningMu.Unlock()
	}

	metrics.WorkloadLaunchesTotal.Inc()

	go d.reap(cmd, pid, spec.WorkloadID)

	return nil
}

func (d *Dispatcher) reap(cmd *exec.Cmd, pid int, workloadID string) {
	err := cmd.Wait()

	d.runningMu.Lock()
	delete(d.running, pid)
	d.runningMu.Unlock()

	d.stateMu.Lock()
	if err != nil {
		d.states[workloadID] = WorkloadState{Status: string(types.StatusImagePullBackOff), Reason: err.Error(), LastUpdate: time.Now()}
		log.WithWorkloadID(workloadID).Warn().Err(err).Msg("dispatcher: launch subprocess exited with error")
	} else {
		d.states[workloadID] = WorkloadState{Status: string(types.StatusContainerCreating), LastUpdate: time.Now()}
	}
	d.stateMu.Unlock()
}

// buildRunArgs composes `docker run` arguments, augmenting labels with
// displayName and workloadId per the dispatcher contract.
func buildRunArgs(spec types.LaunchSpec) []string {
	args := []string{"run", "-d", "--name", spec.Name}

	if spec.RestartPolicy != "" {
		args = append(args, "--restart="+spec.RestartPolicy)
	}
	for _, port := range spec.Ports {
		args = append(args, "-p", port)
	}
	for k, v := range spec.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	for _, vol := range spec.Volumes {
		args = append(args, "-v", vol)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}

	args = append(args, "--label", "displayName="+spec.DisplayName)
	args = append(args, "--label", "workloadId="+spec.WorkloadID)

	args = append(args, spec.Image)
	if spec.Command != "" {
		args = append(args, spec.Command)
	}
	return args
}

// TestSeedPending injects a pendingWorkloads entry directly, for tests
// exercising the reconciler's pending-expiry and visibility rules
// without going through a real Run call.
func (d *Dispatcher) TestSeedPending(workloadID string, launchedAt time.Time) {
	d.pendingMu.Lock()
	d.pending[workloadID] = launchedAt
	d.pendingMu.Unlock()
}

// PendingSnapshot returns a copy of the pendingWorkloads map.
func (d *Dispatcher) PendingSnapshot() map[string]time.Time {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	snap := make(map[string]time.Time, len(d.pending))
	for k, v := range d.pending {
		snap[k] = v
	}
	return snap
}

// DeletePending removes workloadId from pendingWorkloads.
func (d *Dispatcher) DeletePending(workloadID string) {
	d.pendingMu.Lock()
	delete(d.pending, workloadID)
	d.pendingMu.Unlock()
}

// RunningSnapshot returns a copy of the runningDockerRuns map.
func (d *Dispatcher) RunningSnapshot() map[int]string {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()

	snap := make(map[int]string, len(d.running))
	for k, v := range d.running {
		snap[k] = v
	}
	return snap
}

// DeleteRunning removes pid from runningDockerRuns.
func (d *Dispatcher) DeleteRunning(pid int) {
	d.runningMu.Lock()
	delete(d.running, pid)
	d.runningMu.Unlock()
}

// State returns the last known WorkloadState for workloadId, if tracked.
func (d *Dispatcher) State(workloadID string) (WorkloadState, bool) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	s, ok := d.states[workloadID]
	return s, ok
}

// Stop invokes `docker stop <id>` and returns its output.
func (d *Dispatcher) Stop(ctx context.Context, id string) (string, error) {
	out, _, err := d.Runtime.Invoke(ctx, "stop", id)
	if err != nil {
		return out, fmt.Errorf("stop %s: %w", id, err)
	}
	return out, nil
}

// Remove invokes `docker rm <id>` and returns its output.
func (d *Dispatcher) Remove(ctx context.Context, id string) (string, error) {
	out, _, err := d.Runtime.Invoke(ctx, "rm", id)
	if err != nil {
		return out, fmt.Errorf("remove %s: %w", id, err)
	}
	return out, nil
}

// Logs invokes `docker logs <id>` and returns its output.
func (d *Dispatcher) Logs(ctx context.Context, id string) (string, error) {
	out, _, err := d.Runtime.Invoke(ctx, "logs", id)
	if err != nil {
		return out, fmt.Errorf("logs %s: %w", id, err)
	}
	return out, nil
}
