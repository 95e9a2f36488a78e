package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/types"
)

func newTestDispatcher() *Dispatcher {
	// "echo" stands in for the runtime CLI: Start() succeeds immediately
	// and the subprocess exits quickly without blocking the test.
	return New(runtime.NewAdapter("echo"))
}

func TestRun_ReturnsImmediatelyAndRecordsPending(t *testing.T) {
	d := newTestDispatcher()
	spec := types.LaunchSpec{WorkloadID: "wl-1", Image: "nginx", Name: "wl-1", DisplayName: "web"}

	start := time.Now()
	err := d.Run(spec)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Less(t, elapsed, 50*time.Millisecond)

	pending := d.PendingSnapshot()
	require.Contains(t, pending, "wl-1")
}

func TestRun_ReapsSubprocessWithoutBlocking(t *testing.T) {
	d := newTestDispatcher()
	spec := types.LaunchSpec{WorkloadID: "wl-2", Image: "nginx", Name: "wl-2"}

	require.NoError(t, d.Run(spec))

	require.Eventually(t, func() bool {
		_, ok := d.State("wl-2")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestDeletePending_RemovesEntry(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, d.Run(types.LaunchSpec{WorkloadID: "wl-3", Name: "wl-3"}))

	d.DeletePending("wl-3")

	require.NotContains(t, d.PendingSnapshot(), "wl-3")
}

func TestBuildRunArgs_IncludesLabelsAndName(t *testing.T) {
	spec := types.LaunchSpec{
		WorkloadID:  "wl-4",
		Name:        "wl-4",
		Image:       "nginx:latest",
		DisplayName: "web",
		Ports:       []string{"8080:80"},
	}
	args := buildRunArgs(spec)

	require.Contains(t, args, "--name")
	require.Contains(t, args, "wl-4")
	require.Contains(t, args, "--label")
	require.Contains(t, args, "workloadId=wl-4")
	require.Contains(t, args, "displayName=web")
	require.Contains(t, args, "nginx:latest")
}

func TestRunningSnapshot_EventuallyEmptiedAfterExit(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, d.Run(types.LaunchSpec{WorkloadID: "wl-5", Name: "wl-5"}))

	require.Eventually(t, func() bool {
		return len(d.RunningSnapshot()) == 0
	}, time.Second, 10*time.Millisecond)
}
