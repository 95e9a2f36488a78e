// Package config loads the agent's environment-variable configuration:
// the scheduler URL, listen port, shared secret, and label sources.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/persys-dev/persys-agent/pkg/log"
)

const (
	defaultAgentPort     = 8080
	unsetCentralURLValue = "http://localhost:8084"
)

// Config holds the agent's runtime configuration.
type Config struct {
	CentralURL  string
	AgentPort   int
	AgentSecret string
	NodeEnv     string
	NodeRegion  string
	NodeApp     string
}

// Load reads the recognized environment variables. CENTRAL_URL is
// required; the literal default "http://localhost:8084" is treated as
// unset and returns an error so startup aborts rather than silently
// registering against a placeholder.
func Load() (Config, error) {
	central := os.Getenv("CENTRAL_URL")
	if central == "" || central == unsetCentralURLValue {
		return Config{}, fmt.Errorf("CENTRAL_URL is not set (or is the placeholder %q)", unsetCentralURLValue)
	}

	port := defaultAgentPort
	if raw := os.Getenv("AGENT_PORT"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			port = v
		} else {
			log.Logger.Warn().Str("value", raw).Msg("config: invalid AGENT_PORT, using default")
		}
	}

	return Config{
		CentralURL:  central,
		AgentPort:   port,
		AgentSecret: os.Getenv("AGENT_SECRET"),
		NodeEnv:     os.Getenv("NODE_ENV"),
		NodeRegion:  os.Getenv("NODE_REGION"),
		NodeApp:     os.Getenv("NODE_APP"),
	}, nil
}
