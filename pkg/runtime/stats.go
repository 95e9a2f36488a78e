package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/persys-dev/persys-agent/pkg/types"
)

// Stats returns a parsed `docker stats --no-stream` snapshot for id.
func (a *Adapter) Stats(ctx context.Context, id string) (*types.ContainerStats, error) {
	out, _, err := a.Invoke(ctx, "stats", "--no-stream", "--format",
		"{{.CPUPerc}}\t{{.MemUsage}}\t{{.MemLimit}}\t{{.NetIO}}", id)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", id, err)
	}
	return parseStatsLine(out)
}

// parseStatsLine parses the tab-delimited cpuPerc/memUsage/memLimit/netIO
// row produced by `docker stats`. memUsage is "used<unit> / limit<unit>"
// (or a bare "N<unit>"), memLimit is "N<unit>", netIO format is
// "rx<unit> / tx<unit>".
func parseStatsLine(out string) (*types.ContainerStats, error) {
	lines := splitNonEmptyLines(out)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no stats output")
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed stats line: %q", lines[0])
	}

	cpuPercent := parseCPUPercent(fields[0])

	memUsage, memLimit := parseMemUsageLimit(fields[1], fields[2])

	rx, tx := parseNetIO(fields[3])

	return &types.ContainerStats{
		CPUPercent:  cpuPercent,
		MemoryUsage: memUsage,
		MemoryLimit: memLimit,
		NetRxBytes:  rx,
		NetTxBytes:  tx,
	}, nil
}

func parseCPUPercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseMemUsageLimit returns used and limit bytes. docker's MemUsage
// field prints "used / limit"; when usageField has that shape both
// values are taken from it and limitField is ignored. Otherwise
// usageField and limitField are each parsed as a single "N<unit>" value
// with the same unit table.
func parseMemUsageLimit(usageField, limitField string) (int64, int64) {
	usageField = strings.TrimSpace(usageField)
	limitField = strings.TrimSpace(limitField)

	// MemUsage alone actually prints "used / limit"; tolerate either
	// shape by splitting on "/" if present.
	if parts := strings.SplitN(usageField, "/", 2); len(parts) == 2 {
		return parseByteUnit(strings.TrimSpace(parts[0])), parseByteUnit(strings.TrimSpace(parts[1]))
	}
	return parseByteUnit(usageField), parseByteUnit(limitField)
}

// parseByteUnit parses values like "512MiB", "1.2GiB", "100B" using
// case-sensitive, substring-based unit matching. Unknown units fall back
// to treating the numeric prefix as raw bytes.
func parseByteUnit(s string) int64 {
	units := []struct {
		suffix     string
		multiplier float64
	}{
		{"GiB", 1024 * 1024 * 1024},
		{"MiB", 1024 * 1024},
		{"KiB", 1024},
		{"B", 1},
	}
	for _, u := range units {
		if strings.Contains(s, u.suffix) {
			numPart := strings.TrimSuffix(s, u.suffix)
			v, _ := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
			return int64(v * u.multiplier)
		}
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return int64(v)
}

// parseNetIO parses "648B / 656B"-style values into rx/tx byte counts
// using the network unit table (decimal, unlike memory's binary units).
func parseNetIO(s string) (int64, int64) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parseNetUnit(strings.TrimSpace(parts[0])), parseNetUnit(strings.TrimSpace(parts[1]))
}

func parseNetUnit(s string) int64 {
	units := []struct {
		suffix     string
		multiplier float64
	}{
		{"GB", 1_000_000_000},
		{"MB", 1_000_000},
		{"kB", 1_000},
		{"B", 1},
	}
	for _, u := range units {
		if strings.Contains(s, u.suffix) {
			numPart := strings.TrimSuffix(s, u.suffix)
			v, _ := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
			return int64(v * u.multiplier)
		}
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return int64(v)
}

// Info returns the daemon-wide container counts. It prefers the JSON
// format; on parse failure it falls back to line-matching, preserving
// the original implementation's quirk verbatim: "Running:" also matches
// as a substring of "ContainersRunning:", so a daemon whose plain-text
// output only contains "ContainersRunning: N" (no separate "Running:"
// line) still sets ContainersRunning from that line. Do not "fix" this.
func (a *Adapter) Info(ctx context.Context) (*types.DockerInfo, error) {
	out, _, err := a.Invoke(ctx, "info", "--format", "{{json .}}")
	if err == nil {
		if info, parseErr := parseInfoJSON(out); parseErr == nil {
			return info, nil
		}
	}

	out, _, err = a.Invoke(ctx, "info")
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	return parseInfoFallback(out), nil
}

func parseInfoJSON(out string) (*types.DockerInfo, error) {
	var info types.DockerInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &info); err != nil {
		return nil, fmt.Errorf("parse info JSON: %w", err)
	}
	return &info, nil
}

// parseInfoFallback line-matches the plain-text `docker info` output.
// It intentionally reproduces the substring-match bug of the original:
// strings.Contains(line, "Running:") matches both a bare "Running: N"
// line and a "ContainersRunning: N" line.
func parseInfoFallback(out string) *types.DockerInfo {
	info := &types.DockerInfo{}
	for _, line := range splitNonEmptyLines(out) {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "Paused:"):
			info.ContainersPaused = extractTrailingInt(trimmed)
		case strings.Contains(trimmed, "Stopped:"):
			info.ContainersStopped = extractTrailingInt(trimmed)
		case strings.Contains(trimmed, "Running:"):
			info.ContainersRunning = extractTrailingInt(trimmed)
		}
	}
	return info
}

func extractTrailingInt(line string) int {
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return 0
	}
	v, _ := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	return v
}
