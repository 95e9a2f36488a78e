package types

import "time"

// HypervisorType identifies the detected hypervisor, if any.
type HypervisorType string

const (
	HypervisorKVM        HypervisorType = "KVM"
	HypervisorXen        HypervisorType = "Xen"
	HypervisorVirtualBox HypervisorType = "VirtualBox"
	HypervisorNone       HypervisorType = "none"
)

// ContainerEngineType identifies the detected container engine, if any.
type ContainerEngineType string

const (
	ContainerEngineDocker ContainerEngineType = "Docker"
	ContainerEnginePodman ContainerEngineType = "Podman"
	ContainerEngineNone   ContainerEngineType = "none"
)

// HypervisorInfo describes a detected hypervisor.
type HypervisorInfo struct {
	Type    HypervisorType `json:"type"`
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
}

// ContainerEngineInfo describes the detected container engine.
type ContainerEngineInfo struct {
	Type    ContainerEngineType `json:"type"`
	Status  string              `json:"status"`
	Version string              `json:"version,omitempty"`
}

// SwarmInfo describes this node's Docker Swarm membership.
type SwarmInfo struct {
	Active         bool   `json:"active"`
	NodeID         string `json:"nodeId,omitempty"`
	Role           string `json:"role,omitempty"`
	Status         string `json:"status,omitempty"`
	ManagerAddress string `json:"managerAddress,omitempty"`
}

// HostFacts is a point-in-time snapshot of the host's resources and identity.
type HostFacts struct {
	CPUUsagePercent    float64 `json:"cpuUsagePercent"`
	TotalCPU           float64 `json:"totalCpu"`
	AvailableCPU       float64 `json:"availableCpu"`
	TotalMemoryMiB     int64   `json:"totalMemoryMiB"`
	AvailableMemoryMiB int64   `json:"availableMemoryMiB"`
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
	DiskUsagePercent   float64 `json:"diskUsagePercent"`

	IPAddress     string `json:"ipAddress"`
	Hostname      string `json:"hostname"`
	Username      string `json:"username"`
	OSName        string `json:"osName"`
	KernelVersion string `json:"kernelVersion"`

	Hypervisor      HypervisorInfo      `json:"hypervisor"`
	ContainerEngine ContainerEngineInfo `json:"containerEngine"`
	Swarm           SwarmInfo           `json:"swarm"`

	Labels map[string]string `json:"labels"`
}

// Status classifies a node as busy or active based on HostFacts thresholds.
const busyThreshold = 80.0

// Status returns "busy" if any resource is over the busy threshold, else "active".
func (h HostFacts) Status() string {
	if h.CPUUsagePercent > busyThreshold || h.MemoryUsagePercent > busyThreshold || h.DiskUsagePercent > busyThreshold {
		return "busy"
	}
	return "active"
}

// Workload is a dispatcher-tracked entry for an in-flight or recently
// launched container whose visibility in the runtime is not yet confirmed.
type Workload struct {
	WorkloadID  string
	DisplayName string
	LaunchedAt  time.Time
	ProcessID   int // 0 if not observable
}

// ContainerStatus is the unified status taxonomy reported to the scheduler.
type ContainerStatus string

const (
	StatusPulling           ContainerStatus = "Pulling"
	StatusContainerCreating ContainerStatus = "ContainerCreating"
	StatusRunning           ContainerStatus = "Running"
	StatusPaused            ContainerStatus = "Paused"
	StatusRestarting        ContainerStatus = "Restarting"
	StatusExited            ContainerStatus = "Exited"
	StatusRemoving          ContainerStatus = "Removing"
	StatusDead              ContainerStatus = "Dead"
	StatusImagePullBackOff  ContainerStatus = "ImagePullBackOff"
)

// ContainerView is one element of the unified containers list returned by
// the view reconciler.
type ContainerView struct {
	ID           string          `json:"id"`
	Names        string          `json:"names"`
	Image        string          `json:"image"`
	Status       ContainerStatus `json:"status"`
	Ports        string          `json:"ports"`
	Reason       string          `json:"reason,omitempty"`
	SinceMinutes *float64        `json:"sinceMinutes,omitempty"`
}

// ImageView is one element of the image listing.
type ImageView struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Size       string `json:"size"`
}

// ContainerStats is the parsed result of a `docker stats` snapshot.
type ContainerStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsage   int64   `json:"memoryUsage"`
	MemoryLimit   int64   `json:"memoryLimit"`
	NetRxBytes    int64   `json:"netRxBytes"`
	NetTxBytes    int64   `json:"netTxBytes"`
}

// DockerInfo is the subset of `docker info` fields the agent cares about.
type DockerInfo struct {
	ContainersRunning int `json:"ContainersRunning"`
	ContainersPaused  int `json:"ContainersPaused"`
	ContainersStopped int `json:"ContainersStopped"`
}

// LaunchSpec is the request body accepted by the workload dispatcher.
type LaunchSpec struct {
	WorkloadID    string            `json:"workloadId"`
	Image         string            `json:"image"`
	Name          string            `json:"name"`
	DisplayName   string            `json:"displayName"`
	Command       string            `json:"command"`
	Ports         []string          `json:"ports"`
	Env           map[string]string `json:"env"`
	Volumes       []string          `json:"volumes"`
	Network       string            `json:"network"`
	RestartPolicy string            `json:"restartPolicy"`
	Detach        bool              `json:"detach"`
	Async         bool              `json:"async"`
}

// RegistrationRecord is POSTed to the central scheduler on startup.
type RegistrationRecord struct {
	NodeID          string              `json:"nodeId"`
	IPAddress       string              `json:"ipAddress"`
	AgentPort       int                 `json:"agentPort"`
	Username        string              `json:"username"`
	Hostname        string              `json:"hostname"`
	OSName          string              `json:"osName"`
	KernelVersion   string              `json:"kernelVersion"`
	Status          string              `json:"status"`
	Timestamp       string              `json:"timestamp"`
	TotalCPU        float64             `json:"totalCpu"`
	TotalMemory     int64               `json:"totalMemory"`
	AvailableCPU    float64             `json:"availableCpu"`
	AvailableMemory int64               `json:"availableMemory"`
	Hypervisor      HypervisorInfo      `json:"hypervisor"`
	ContainerEngine ContainerEngineInfo `json:"containerEngine"`
	DockerSwarm     SwarmInfo           `json:"dockerSwarm"`
	Labels          map[string]string   `json:"labels"`
	AuthConfig      AuthConfig          `json:"authConfig"`
}

// AuthConfig carries the locally-configured shared secret to the scheduler
// so it can use it as a fallback credential when talking back to this node.
type AuthConfig struct {
	SharedSecret string `json:"sharedSecret"`
}

// HeartbeatRecord is POSTed to the central scheduler periodically.
type HeartbeatRecord struct {
	NodeID          string  `json:"nodeId"`
	Status          string  `json:"status"`
	AvailableCPU    float64 `json:"availableCpu"`
	AvailableMemory int64   `json:"availableMemory"`
}
