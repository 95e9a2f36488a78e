// Package heartbeat runs the periodic liveness and capacity report to
// the central scheduler: a single, strictly sequential loop that never
// aborts the process on failure.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/metrics"
	"github.com/persys-dev/persys-agent/pkg/types"
)

const interval = 4 * time.Minute

// Loop posts a heartbeat every interval until ctx is canceled. Failures
// are logged and never stop the loop.
type Loop struct {
	CentralURL string
	NodeID     string

	Prober     *hostprobe.Prober
	HTTPClient *http.Client

	// Interval overrides the default 4-minute period; zero means default.
	Interval time.Duration
}

// New returns a heartbeat Loop.
func New(centralURL, nodeID string, prober *hostprobe.Prober) *Loop {
	return &Loop{
		CentralURL: centralURL,
		NodeID:     nodeID,
		Prober:     prober,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run blocks, sending a heartbeat immediately and then on every tick,
// until ctx is canceled. The next probe always waits for the previous
// POST to return, success or failure.
func (l *Loop) Run(ctx context.Context) {
	period := l.Interval
	if period == 0 {
		period = interval
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	l.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.beat(ctx)
		}
	}
}

func (l *Loop) beat(ctx context.Context) {
	facts, err := l.Prober.Probe()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("heartbeat: failed to probe host")
		return
	}

	metrics.NodeAvailableCPUCores.Set(facts.AvailableCPU)
	metrics.NodeAvailableMemoryMiB.Set(float64(facts.AvailableMemoryMiB))

	record := types.HeartbeatRecord{
		NodeID:          l.NodeID,
		Status:          hostprobe.Status(facts),
		AvailableCPU:    facts.AvailableCPU,
		AvailableMemory: facts.AvailableMemoryMiB,
	}

	if err := l.post(ctx, record); err != nil {
		log.Logger.Warn().Err(err).Msg("heartbeat: post failed")
	}
}

func (l *Loop) post(ctx context.Context, record types.HeartbeatRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal heartbeat record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.CentralURL+"/nodes/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat rejected: status %d", resp.StatusCode)
	}
	return nil
}
