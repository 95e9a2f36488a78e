package hostprobe

import (
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/persys-dev/persys-agent/pkg/types"
)

// detectHypervisor follows the precedence KVM -> Xen -> VirtualBox -> none.
func detectHypervisor() types.HypervisorInfo {
	if cpuFlagsContainAny("vmx", "svm") {
		status := "inactive"
		if fileExists("/dev/kvm") {
			status = "active"
		}
		return types.HypervisorInfo{Type: types.HypervisorKVM, Status: status}
	}

	if fileExists("/proc/xen") {
		return types.HypervisorInfo{Type: types.HypervisorXen, Status: "active"}
	}

	if out, err := exec.Command("vboxmanage", "--version").Output(); err == nil {
		return types.HypervisorInfo{
			Type:    types.HypervisorVirtualBox,
			Status:  "active",
			Version: strings.TrimSpace(string(out)),
		}
	}

	return types.HypervisorInfo{Type: types.HypervisorNone, Status: "none"}
}

func cpuFlagsContainAny(flags ...string) bool {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return false
	}
	content := string(data)
	for _, flag := range flags {
		if strings.Contains(content, flag) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// detectContainerEngine follows the precedence Docker -> Podman -> none.
func detectContainerEngine() types.ContainerEngineInfo {
	if out, err := exec.Command("docker", "--version").Output(); err == nil {
		status := "inactive"
		if activeOut, err := exec.Command("systemctl", "is-active", "docker").Output(); err == nil {
			if strings.TrimSpace(string(activeOut)) == "active" {
				status = "active"
			}
		}
		return types.ContainerEngineInfo{
			Type:    types.ContainerEngineDocker,
			Status:  status,
			Version: strings.TrimSpace(string(out)),
		}
	}

	if out, err := exec.Command("podman", "--version").Output(); err == nil {
		return types.ContainerEngineInfo{
			Type:    types.ContainerEnginePodman,
			Status:  "active",
			Version: strings.TrimSpace(string(out)),
		}
	}

	return types.ContainerEngineInfo{Type: types.ContainerEngineNone, Status: "none"}
}

// detectSwarm reports this node's Docker Swarm membership, if any.
func detectSwarm() types.SwarmInfo {
	out, err := exec.Command("docker", "info", "--format", "{{.Swarm.LocalNodeState}}").Output()
	if err != nil {
		return types.SwarmInfo{Active: false}
	}
	if strings.TrimSpace(string(out)) != "active" {
		return types.SwarmInfo{Active: false}
	}

	nodeOut, err := exec.Command("docker", "node", "inspect", "self", "--format", "{{json .}}").Output()
	if err != nil {
		return types.SwarmInfo{Active: true}
	}

	var node struct {
		ID   string `json:"ID"`
		Spec struct {
			Role string `json:"Role"`
		} `json:"Spec"`
		Status struct {
			State string `json:"State"`
		} `json:"Status"`
		ManagerStatus struct {
			Addr string `json:"Addr"`
		} `json:"ManagerStatus"`
	}
	if err := json.Unmarshal(nodeOut, &node); err != nil {
		return types.SwarmInfo{Active: true}
	}

	return types.SwarmInfo{
		Active:         true,
		NodeID:         node.ID,
		Role:           node.Spec.Role,
		Status:         node.Status.State,
		ManagerAddress: node.ManagerStatus.Addr,
	}
}
