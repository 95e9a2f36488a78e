// Package registrar builds the node's registration record and submits
// it to the central scheduler, performing DNS and reachability
// preflight checks first.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/identity"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/types"
)

const (
	preflightConnectTimeout = 5 * time.Second
	preflightTotalTimeout   = 10 * time.Second
)

// Registrar builds and submits the registration record.
type Registrar struct {
	CentralURL   string
	AgentPort    int
	SharedSecret string

	Identity *identity.Store
	Prober   *hostprobe.Prober

	HTTPClient *http.Client
}

// New returns a Registrar.
func New(centralURL string, agentPort int, sharedSecret string, store *identity.Store, prober *hostprobe.Prober) *Registrar {
	return &Registrar{
		CentralURL:   centralURL,
		AgentPort:    agentPort,
		SharedSecret: sharedSecret,
		Identity:     store,
		Prober:       prober,
		HTTPClient:   &http.Client{Timeout: preflightTotalTimeout},
	}
}

// Register builds the registration record, runs the preflight checks,
// and POSTs it to the central scheduler. It returns whether the node is
// ready (status == "active"); a busy node registers successfully but is
// not ready.
func (r *Registrar) Register(ctx context.Context) (ready bool, err error) {
	nodeID, err := r.Identity.LoadOrCreateNodeID()
	if err != nil {
		return false, fmt.Errorf("registrar: load node id: %w", err)
	}

	if err := r.preflight(ctx); err != nil {
		return false, fmt.Errorf("registrar: preflight: %w", err)
	}

	facts, err := r.Prober.Probe()
	if err != nil {
		return false, fmt.Errorf("registrar: probe host: %w", err)
	}
	status := hostprobe.Status(facts)

	record := types.RegistrationRecord{
		NodeID:          nodeID,
		IPAddress:       facts.IPAddress,
		AgentPort:       r.AgentPort,
		Username:        facts.Username,
		Hostname:        facts.Hostname,
		OSName:          facts.OSName,
		KernelVersion:   facts.KernelVersion,
		Status:          status,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		TotalCPU:        facts.TotalCPU,
		TotalMemory:     facts.TotalMemoryMiB,
		AvailableCPU:    facts.AvailableCPU,
		AvailableMemory: facts.AvailableMemoryMiB,
		Hypervisor:      facts.Hypervisor,
		ContainerEngine: facts.ContainerEngine,
		DockerSwarm:     facts.Swarm,
		Labels:          facts.Labels,
		AuthConfig:      types.AuthConfig{SharedSecret: r.SharedSecret},
	}

	if err := r.post(ctx, record); err != nil {
		return false, fmt.Errorf("registrar: post registration: %w", err)
	}

	return status == "active", nil
}

// preflight extracts the hostname from CentralURL, resolves it via DNS
// unless it's already a dotted-decimal IPv4 address, then performs a
// short-timeout reachability GET.
func (r *Registrar) preflight(ctx context.Context) error {
	u, err := url.Parse(r.CentralURL)
	if err != nil {
		return fmt.Errorf("parse central url: %w", err)
	}
	host := u.Hostname()

	if net.ParseIP(host) == nil {
		if _, err := net.LookupHost(host); err != nil {
			return fmt.Errorf("dns lookup %s: %w", host, err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, preflightConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(connectCtx, http.MethodGet, r.CentralURL, nil)
	if err != nil {
		return fmt.Errorf("build preflight request: %w", err)
	}

	client := &http.Client{Timeout: preflightTotalTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reachability probe: %w", err)
	}
	defer resp.Body.Close()

	return nil
}

func (r *Registrar) post(ctx context.Context, record types.RegistrationRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal registration record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.CentralURL+"/nodes/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registration rejected: status %d", resp.StatusCode)
	}

	log.Logger.Info().Str("node_id", record.NodeID).Str("status", record.Status).Msg("registrar: registration accepted")
	return nil
}
