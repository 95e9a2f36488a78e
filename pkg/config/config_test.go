package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingCentralURL(t *testing.T) {
	t.Setenv("CENTRAL_URL", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_PlaceholderCentralURLTreatedAsUnset(t *testing.T) {
	t.Setenv("CENTRAL_URL", "http://localhost:8084")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ValidCentralURL(t *testing.T) {
	t.Setenv("CENTRAL_URL", "https://scheduler.example.com")
	t.Setenv("AGENT_PORT", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://scheduler.example.com", cfg.CentralURL)
	require.Equal(t, defaultAgentPort, cfg.AgentPort)
}

func TestLoad_InvalidAgentPortFallsBackToDefault(t *testing.T) {
	t.Setenv("CENTRAL_URL", "https://scheduler.example.com")
	t.Setenv("AGENT_PORT", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaultAgentPort, cfg.AgentPort)
}

func TestLoad_CustomAgentPort(t *testing.T) {
	t.Setenv("CENTRAL_URL", "https://scheduler.example.com")
	t.Setenv("AGENT_PORT", "9090")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.AgentPort)
}
