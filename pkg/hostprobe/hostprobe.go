// Package hostprobe reads kernel and procfs state to produce a
// point-in-time snapshot of CPU, memory, disk, networking, and
// virtualization facts about the host.
package hostprobe

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/types"
)

const busyThreshold = 80.0

// LabelSource maps a label key to an (envVar, fallback) pair, kept
// extensible per the configured set rather than hard-coded.
type LabelSource struct {
	Key      string
	EnvVar   string
	Fallback string
}

// DefaultLabelSources is the recognized set of label sources.
var DefaultLabelSources = []LabelSource{
	{Key: "env", EnvVar: "NODE_ENV", Fallback: "prod"},
	{Key: "region", EnvVar: "NODE_REGION", Fallback: "us-west"},
	{Key: "app", EnvVar: "NODE_APP", Fallback: ""},
}

// Prober collects HostFacts. Its label sources are configurable.
type Prober struct {
	fs procfs.FS

	LabelSources []LabelSource
}

// NewProber opens the default procfs mount.
func NewProber() (*Prober, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &Prober{fs: fs, LabelSources: DefaultLabelSources}, nil
}

// Probe produces a complete HostFacts snapshot.
func (p *Prober) Probe() (types.HostFacts, error) {
	var facts types.HostFacts

	cpuPercent, totalCPU, err := p.cpu()
	if err != nil {
		return facts, fmt.Errorf("probe cpu: %w", err)
	}
	facts.CPUUsagePercent = cpuPercent
	facts.TotalCPU = totalCPU
	facts.AvailableCPU = totalCPU * (1 - cpuPercent/100)

	totalMiB, availMiB, err := p.memory()
	if err != nil {
		return facts, fmt.Errorf("probe memory: %w", err)
	}
	facts.TotalMemoryMiB = totalMiB
	facts.AvailableMemoryMiB = availMiB
	if totalMiB > 0 {
		facts.MemoryUsagePercent = 100 * (1 - float64(availMiB)/float64(totalMiB))
	}

	facts.DiskUsagePercent = diskUsagePercent()

	iface, err := defaultInterface()
	if err == nil {
		facts.IPAddress = interfaceIPv4(iface)
	} else {
		log.Logger.Warn().Err(err).Msg("hostprobe: failed to determine default interface")
	}

	facts.Hostname, _ = os.Hostname()
	if u, err := user.Current(); err == nil {
		facts.Username = u.Username
	}
	facts.OSName = osName()
	facts.KernelVersion = kernelVersion()

	facts.Hypervisor = detectHypervisor()
	facts.ContainerEngine = detectContainerEngine()
	facts.Swarm = detectSwarm()

	facts.Labels = p.labels()

	return facts, nil
}

// Status classifies busy/active from the three usage percentages.
func Status(facts types.HostFacts) string {
	if facts.CPUUsagePercent > busyThreshold || facts.MemoryUsagePercent > busyThreshold || facts.DiskUsagePercent > busyThreshold {
		return "busy"
	}
	return "active"
}

func (p *Prober) labels() map[string]string {
	labels := make(map[string]string, len(p.LabelSources))
	for _, src := range p.LabelSources {
		v := os.Getenv(src.EnvVar)
		if v == "" {
			v = src.Fallback
		}
		labels[src.Key] = v
	}
	return labels
}

// cpu reads /proc/stat's aggregate cpu line (user+nice+system vs idle)
// as a single, non-delta sample, and /proc/cpuinfo's processor count.
func (p *Prober) cpu() (usagePercent float64, totalCores float64, err error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("read /proc/stat: %w", err)
	}
	c := stat.CPUTotal
	busy := c.User + c.Nice + c.System
	total := busy + c.Idle
	if total > 0 {
		usagePercent = 100 * busy / total
	}

	return usagePercent, float64(cpuCoreCount()), nil
}

// cpuCoreCount counts "processor" lines in /proc/cpuinfo, falling back
// to 4 when the file can't be read or has no such lines.
func cpuCoreCount() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 4
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "processor") {
			count++
		}
	}
	if count == 0 {
		return 4
	}
	return count
}

// memory reads /proc/meminfo, preferring MemAvailable and falling back
// to Free+Buffers+Cached clamped to MemTotal.
func (p *Prober) memory() (totalMiB, availableMiB int64, err error) {
	mem, err := p.fs.Meminfo()
	if err != nil {
		return 0, 0, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	total := kbToMiB(mem.MemTotal)
	var avail int64
	if mem.MemAvailable != nil {
		avail = kbToMiB(mem.MemAvailable)
	} else {
		var free, buffers, cached uint64
		if mem.MemFree != nil {
			free = *mem.MemFree
		}
		if mem.Buffers != nil {
			buffers = *mem.Buffers
		}
		if mem.Cached != nil {
			cached = *mem.Cached
		}
		avail = kbToMiB(&[]uint64{free + buffers + cached}[0])
		if avail > total {
			avail = total
		}
	}
	return total, avail, nil
}

func kbToMiB(v *uint64) int64 {
	if v == nil {
		return 0
	}
	return int64(*v / 1024)
}

// diskUsagePercent shells to `df` for the root filesystem's percent used.
func diskUsagePercent() float64 {
	out, err := exec.Command("df", "-h", "--output=pcent", "/").Output()
	if err != nil {
		log.Logger.Warn().Err(err).Msg("hostprobe: df failed")
		return 0
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return 0
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	last = strings.TrimSuffix(last, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(last), 64)
	if err != nil {
		return 0
	}
	return v
}

// defaultInterface parses /proc/net/route for the row with an all-zero
// destination and a non-zero gateway.
func defaultInterface() (string, error) {
	f, err := os.Open("/proc/net/route")
	if err != nil {
		return "", fmt.Errorf("open /proc/net/route: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		iface, dest, gateway := fields[0], fields[1], fields[2]
		if dest == "00000000" && gateway != "00000000" {
			return iface, nil
		}
	}
	return "", fmt.Errorf("no default route found")
}

// interfaceIPv4 returns the first IPv4 address bound to iface.
func interfaceIPv4(iface string) string {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return ""
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

func osName() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "linux"
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PRETTY_NAME=") {
			return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), `"`)
		}
	}
	return "linux"
}

func kernelVersion() string {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) >= 3 {
		return fields[2]
	}
	return strings.TrimSpace(string(data))
}
