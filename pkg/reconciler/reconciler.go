package reconciler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/persys-dev/persys-agent/pkg/dispatcher"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/metrics"
	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/types"
)

const pendingTimeout = 35 * time.Minute

// Reconciler produces the unified container view by fusing the
// runtime's reported containers with the dispatcher's pending-launch
// and in-flight-subprocess state.
type Reconciler struct {
	Runtime    *runtime.Adapter
	Dispatcher *dispatcher.Dispatcher
}

// New returns a Reconciler.
func New(rt *runtime.Adapter, disp *dispatcher.Dispatcher) *Reconciler {
	return &Reconciler{Runtime: rt, Dispatcher: disp}
}

// Reconcile runs the five-step deterministic merge procedure and
// returns the unified, deduplicated container list.
func (r *Reconciler) Reconcile(ctx context.Context, all bool) ([]types.ContainerView, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

	records, err := r.Runtime.ListContainers(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list containers: %w", err)
	}

	list := make([]types.ContainerView, 0, len(records))
	names := make(map[string]bool, len(records))
	for _, rec := range records {
		list = append(list, types.ContainerView{
			ID:     rec.ID,
			Names:  rec.Names,
			Image:  rec.Image,
			Ports:  rec.Ports,
			Status: types.StatusContainerCreating,
		})
		names[rec.Names] = true
	}

	r.mergePending(names, &list)
	r.inspectEach(ctx, list)
	r.mergeRunningByPID(names, &list)
	r.fallbackScan(names, &list)

	metrics.PendingWorkloadsGauge.Set(float64(len(r.Dispatcher.PendingSnapshot())))

	return dedupeByName(list), nil
}

// mergePending implements step 2: drop pendingWorkloads entries already
// visible in the runtime list (invariant 3), synthesize a Pulling record
// for ones with a live launch subprocess, and drop ones past the
// timeout with no live subprocess.
func (r *Reconciler) mergePending(names map[string]bool, list *[]types.ContainerView) {
	now := time.Now()
	for workloadID, launchedAt := range r.Dispatcher.PendingSnapshot() {
		if names[workloadID] {
			r.Dispatcher.DeletePending(workloadID)
			continue
		}

		age := now.Sub(launchedAt)
		if processRunningForName(workloadID) {
			sinceMinutes := age.Minutes()
			*list = append(*list, types.ContainerView{
				Names:        workloadID,
				Status:       types.StatusPulling,
				Reason:       "docker run in progress",
				SinceMinutes: &sinceMinutes,
			})
			names[workloadID] = true
			continue
		}

		if age > pendingTimeout {
			r.Dispatcher.DeletePending(workloadID)
			continue
		}
	}
}

// inspectEach implements step 3: for each record with a name, fetch its
// detailed state and map it to the unified status taxonomy.
func (r *Reconciler) inspectEach(ctx context.Context, list []types.ContainerView) {
	for i := range list {
		if list[i].Names == "" {
			continue
		}
		// Synthetic pending/fallback records have no runtime entry to
		// inspect; inspecting them would only fail.
		if list[i].Reason != "" {
			continue
		}

		state, err := r.Runtime.InspectState(ctx, list[i].Names)
		if err != nil {
			log.Logger.Debug().Err(err).Str("name", list[i].Names).Msg("reconciler: inspect failed")
			continue
		}
		status, reason := state.ToContainerStatus()
		list[i].Status = status
		if reason != "" {
			list[i].Reason = reason
		}
	}
}

// mergeRunningByPID implements step 4: for each tracked (pid, workloadId)
// pair, drop it if the process is dead, else add a synthetic record if
// the workload isn't already visible.
func (r *Reconciler) mergeRunningByPID(names map[string]bool, list *[]types.ContainerView) {
	for pid, workloadID := range r.Dispatcher.RunningSnapshot() {
		if !pidAlive(pid) {
			r.Dispatcher.DeleteRunning(pid)
			continue
		}
		if names[workloadID] {
			continue
		}
		*list = append(*list, types.ContainerView{
			Names:  workloadID,
			Status: types.StatusPulling,
			Reason: "docker run in progress (tracked by PID)",
		})
		names[workloadID] = true
	}
}

// fallbackScan implements step 5: scan the host process table for any
// bare `docker run --name <n>` invocation not already accounted for.
func (r *Reconciler) fallbackScan(names map[string]bool, list *[]types.ContainerView) {
	for _, name := range scanPsAuxForDockerRunNames() {
		if names[name] {
			continue
		}
		*list = append(*list, types.ContainerView{
			Names:  name,
			Status: types.StatusPulling,
			Reason: "docker run in progress (ps aux fallback)",
		})
		names[name] = true
	}
}

func dedupeByName(list []types.ContainerView) []types.ContainerView {
	seen := make(map[string]bool, len(list))
	out := make([]types.ContainerView, 0, len(list))
	for _, v := range list {
		if v.Names != "" && seen[v.Names] {
			continue
		}
		if v.Names != "" {
			seen[v.Names] = true
		}
		out = append(out, v)
	}
	return out
}

// processRunningForName probes the host process table for a live
// `docker run` invocation referencing name.
func processRunningForName(name string) bool {
	out, err := exec.Command("ps", "aux").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "docker run") && strings.Contains(line, name) && !strings.Contains(line, "grep") {
			return true
		}
	}
	return false
}

// scanPsAuxForDockerRunNames extracts `--name <n>` values from every
// `docker run` line in the host process table.
func scanPsAuxForDockerRunNames() []string {
	out, err := exec.Command("ps", "aux").Output()
	if err != nil {
		return nil
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "docker run") || strings.Contains(line, "grep") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "--name" && i+1 < len(fields) {
				names = append(names, fields[i+1])
			}
		}
	}
	return names
}

// pidAlive checks liveness via a zero-signal kill, matching the
// original implementation's kill(pid, 0) probe.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}
