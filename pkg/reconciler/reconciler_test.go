package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/dispatcher"
	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/types"
)

// fakeDockerCLI writes an executable shell script standing in for the
// `docker` binary: it prints canned output depending on the subcommand
// it's invoked with, letting the reconciler's Invoke-based parsing run
// against realistic text without a real container engine.
func fakeDockerCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-docker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestReconcile_MergesRuntimeListWithNoPending(t *testing.T) {
	script := `
case "$1" in
  ps) echo "abc123	web	nginx:latest	Up 2 minutes	80/tcp" ;;
  inspect) echo '{"Running":true,"Status":"running"}' ;;
esac
`
	bin := fakeDockerCLI(t, script)
	rt := runtime.NewAdapter(bin)
	disp := dispatcher.New(rt)
	r := New(rt, disp)

	views, err := r.Reconcile(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "web", views[0].Names)
	require.Equal(t, types.StatusRunning, views[0].Status)
}

func TestReconcile_PendingWorkloadDroppedWhenVisible(t *testing.T) {
	script := `
case "$1" in
  ps) echo "abc123	wl-1	nginx	Up	80/tcp" ;;
  inspect) echo '{"Running":true,"Status":"running"}' ;;
esac
`
	bin := fakeDockerCLI(t, script)
	rt := runtime.NewAdapter(bin)
	disp := dispatcher.New(rt)
	disp.TestSeedPending("wl-1", time.Now())
	r := New(rt, disp)

	views, err := r.Reconcile(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NotContains(t, disp.PendingSnapshot(), "wl-1")
}

func TestReconcile_PendingWorkloadExpiresAfterTimeout(t *testing.T) {
	script := `
case "$1" in
  ps) echo "" ;;
esac
`
	bin := fakeDockerCLI(t, script)
	rt := runtime.NewAdapter(bin)
	disp := dispatcher.New(rt)
	disp.TestSeedPending("wl-2", time.Now().Add(-40*time.Minute))
	r := New(rt, disp)

	views, err := r.Reconcile(context.Background(), true)
	require.NoError(t, err)

	for _, v := range views {
		require.NotEqual(t, "wl-2", v.Names)
	}
	require.NotContains(t, disp.PendingSnapshot(), "wl-2")
}

func TestReconcile_UnifiedListHasNoDuplicateNames(t *testing.T) {
	script := `
case "$1" in
  ps) echo "abc123	dup	nginx	Up	80/tcp" ;;
  inspect) echo '{"Running":true,"Status":"running"}' ;;
esac
`
	bin := fakeDockerCLI(t, script)
	rt := runtime.NewAdapter(bin)
	disp := dispatcher.New(rt)
	disp.TestSeedPending("dup", time.Now())
	r := New(rt, disp)

	views, err := r.Reconcile(context.Background(), true)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, v := range views {
		seen[v.Names]++
	}
	for name, count := range seen {
		require.Equal(t, 1, count, "name %s appeared more than once", name)
	}
}

func TestDedupeByName(t *testing.T) {
	in := []types.ContainerView{
		{Names: "a"},
		{Names: "a"},
		{Names: "b"},
	}
	out := dedupeByName(in)
	require.Len(t, out, 2)
}
