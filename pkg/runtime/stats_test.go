package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatsLine(t *testing.T) {
	out := "12.34%\t128MiB / 512MiB\t512MiB\t648B / 1.2kB\n"
	stats, err := parseStatsLine(out)
	require.NoError(t, err)
	require.InDelta(t, 12.34, stats.CPUPercent, 0.001)
	require.Equal(t, int64(128*1024*1024), stats.MemoryUsage)
	require.Equal(t, int64(512*1024*1024), stats.MemoryLimit)
	require.Equal(t, int64(648), stats.NetRxBytes)
	require.Equal(t, int64(1200), stats.NetTxBytes)
}

func TestParseByteUnit(t *testing.T) {
	cases := map[string]int64{
		"100B":    100,
		"1KiB":    1024,
		"1.5MiB":  int64(1.5 * 1024 * 1024),
		"2GiB":    2 * 1024 * 1024 * 1024,
		"unknown": 0,
	}
	for input, want := range cases {
		require.Equal(t, want, parseByteUnit(input), "input=%s", input)
	}
}

func TestParseNetUnit(t *testing.T) {
	cases := map[string]int64{
		"100B": 100,
		"1kB":  1000,
		"2MB":  2_000_000,
		"1GB":  1_000_000_000,
	}
	for input, want := range cases {
		require.Equal(t, want, parseNetUnit(input), "input=%s", input)
	}
}

func TestParseInfoFallback_RunningMatchesContainersRunningSubstring(t *testing.T) {
	out := "Some Header\nContainersRunning: 7\nPaused: 1\nStopped: 2\n"
	info := parseInfoFallback(out)

	require.Equal(t, 7, info.ContainersRunning, "original implementation bug: ContainersRunning: N line is parsed by the Running: branch")
	require.Equal(t, 1, info.ContainersPaused)
	require.Equal(t, 2, info.ContainersStopped)
}

func TestParseInfoFallback_PlainRunningLine(t *testing.T) {
	out := "Running: 3\nPaused: 0\nStopped: 0\n"
	info := parseInfoFallback(out)

	require.Equal(t, 3, info.ContainersRunning)
}

func TestParseInfoJSON(t *testing.T) {
	out := `{"ContainersRunning":4,"ContainersPaused":0,"ContainersStopped":1}`
	info, err := parseInfoJSON(out)
	require.NoError(t, err)
	require.Equal(t, 4, info.ContainersRunning)
	require.Equal(t, 1, info.ContainersStopped)
}

func TestParseContainerState_ToContainerStatus(t *testing.T) {
	cases := []struct {
		state  ContainerState
		status string
	}{
		{ContainerState{Running: true}, "Running"},
		{ContainerState{Paused: true}, "Paused"},
		{ContainerState{Restarting: true}, "Restarting"},
		{ContainerState{Dead: true}, "Dead"},
		{ContainerState{Status: "created"}, "ContainerCreating"},
		{ContainerState{Status: "exited"}, "Exited"},
		{ContainerState{Status: "removing"}, "Removing"},
		{ContainerState{Status: "running"}, "Running"},
		{ContainerState{Status: "running", Error: "no such image"}, "ImagePullBackOff"},
	}
	for _, c := range cases {
		status, _ := c.state.ToContainerStatus()
		require.Equal(t, c.status, string(status))
	}
}

func TestParseContainerLines(t *testing.T) {
	out := "abc123\tweb\tnginx:latest\tUp 2 minutes\t80/tcp\n"
	records := parseContainerLines(out)
	require.Len(t, records, 1)
	require.Equal(t, "abc123", records[0].ID)
	require.Equal(t, "web", records[0].Names)
	require.Equal(t, "nginx:latest", records[0].Image)
}
