package hostprobe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/types"
)

func TestStatus_Busy(t *testing.T) {
	cases := []struct {
		facts types.HostFacts
		want  string
	}{
		{types.HostFacts{CPUUsagePercent: 81}, "busy"},
		{types.HostFacts{MemoryUsagePercent: 85}, "busy"},
		{types.HostFacts{DiskUsagePercent: 90}, "busy"},
		{types.HostFacts{CPUUsagePercent: 80}, "active"},
		{types.HostFacts{CPUUsagePercent: 10, MemoryUsagePercent: 10, DiskUsagePercent: 10}, "active"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Status(c.facts))
	}
}

func TestDefaultLabelSources(t *testing.T) {
	keys := map[string]bool{}
	for _, src := range DefaultLabelSources {
		keys[src.Key] = true
	}
	require.True(t, keys["env"])
	require.True(t, keys["region"])
	require.True(t, keys["app"])
}

func TestLabels_FallbackWhenEnvUnset(t *testing.T) {
	p := &Prober{LabelSources: []LabelSource{
		{Key: "env", EnvVar: "HOSTPROBE_TEST_ENV_VAR_UNSET", Fallback: "prod"},
	}}
	labels := p.labels()
	require.Equal(t, "prod", labels["env"])
}

func TestLabels_UsesEnvWhenSet(t *testing.T) {
	t.Setenv("HOSTPROBE_TEST_ENV_VAR_SET", "staging")
	p := &Prober{LabelSources: []LabelSource{
		{Key: "env", EnvVar: "HOSTPROBE_TEST_ENV_VAR_SET", Fallback: "prod"},
	}}
	labels := p.labels()
	require.Equal(t, "staging", labels["env"])
}
