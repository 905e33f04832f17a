// services/collector.go - port observation collectors (Docker + procfs)
package services

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"portscope/common"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// Collector enumerates open ports from one platform-specific source. The
// core treats every implementation identically.
type Collector interface {
	// Ports returns the current raw open-port observations.
	Ports(ctx context.Context) ([]common.PortObservation, error)
	// Collect returns the full snapshot (ports plus running apps).
	Collect(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the full output of one collection pass.
type Snapshot struct {
	Ports    []common.PortObservation `json:"ports"`
	Apps     []AppInfo                `json:"apps"`
	VMs      []VMInfo                 `json:"vms"`
	Platform string                   `json:"platform"`
}

// AppInfo is a running application discovered alongside its ports.
type AppInfo struct {
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	State       string `json:"state"`
	ContainerID string `json:"container_id,omitempty"`
}

// VMInfo is a discovered virtual machine. Neither built-in collector
// produces these; the field exists so hypervisor-backed collectors share
// the same snapshot shape.
type VMInfo struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

/* -------- Docker collector -------- */

// DockerCollector reads port bindings from the Docker daemon. Host-bound
// ports become host observations carrying the bind address; exposed ports
// without a binding become internal observations on the container address.
type DockerCollector struct{}

// NewDockerClient connects to the configured Docker endpoint and verifies
// it answers.
func NewDockerClient(ctx context.Context) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host := strings.TrimSpace(common.Env("PORTSCOPE_DOCKER_HOST", "")); host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker ping failed: %w", err)
	}
	return cli, nil
}

func (DockerCollector) Ports(ctx context.Context) ([]common.PortObservation, error) {
	snap, err := DockerCollector{}.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ports, nil
}

func (DockerCollector) Collect(ctx context.Context) (*Snapshot, error) {
	cli, err := NewDockerClient(ctx)
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	list, err := cli.ContainerList(ctx, container.ListOptions{Filters: filters.NewArgs()})
	if err != nil {
		return nil, fmt.Errorf("container list failed: %w", err)
	}

	snap := &Snapshot{Platform: "docker"}
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		snap.Apps = append(snap.Apps, AppInfo{
			Name:        name,
			Image:       c.Image,
			State:       c.State,
			ContainerID: c.ID,
		})

		ci, err := cli.ContainerInspect(ctx, c.ID)
		if err != nil {
			common.WarnLog("collector: inspect %s failed: %v", c.ID[:12], err)
			continue
		}
		if ci.NetworkSettings == nil {
			continue
		}

		pid := 0
		if ci.State != nil {
			pid = ci.State.Pid
		}
		containerIP := containerAddress(ci.NetworkSettings)
		snap.Ports = append(snap.Ports, flattenPortMap(ci.NetworkSettings.Ports, name, pid, c.ID, containerIP)...)
	}
	return snap, nil
}

// flattenPortMap turns Docker's nat.PortMap into flat observations.
func flattenPortMap(pm nat.PortMap, owner string, pid int, containerID, containerIP string) []common.PortObservation {
	out := make([]common.PortObservation, 0, len(pm))
	for port, binds := range pm {
		private, _ := strconv.Atoi(port.Port())
		proto := string(port.Proto())

		if len(binds) == 0 {
			// Exposed inside the container network only: no host binding.
			if containerIP == "" {
				continue
			}
			out = append(out, common.PortObservation{
				HostIP:      containerIP,
				HostPort:    private,
				Protocol:    proto,
				Owner:       owner,
				PID:         pid,
				ContainerID: containerID,
				Internal:    true,
			})
			continue
		}
		for _, b := range binds {
			pub, _ := strconv.Atoi(b.HostPort)
			ip := b.HostIP
			if ip == "" {
				ip = "0.0.0.0"
			}
			out = append(out, common.PortObservation{
				HostIP:      ip,
				HostPort:    pub,
				Protocol:    proto,
				Owner:       owner,
				PID:         pid,
				ContainerID: containerID,
			})
		}
	}
	return out
}

func containerAddress(ns *container.NetworkSettings) string {
	if ns == nil {
		return ""
	}
	if ns.IPAddress != "" {
		return ns.IPAddress
	}
	for _, ep := range ns.Networks {
		if ep != nil && ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}

// ContainerHealth reports a container's state and (when configured) health
// status. Backs the ping short-circuit for internal container ports, which
// cannot be probed from outside the container network.
func ContainerHealth(ctx context.Context, containerID string) (state, health string, err error) {
	cli, err := NewDockerClient(ctx)
	if err != nil {
		return "", "", err
	}
	defer cli.Close()

	ci, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", "", err
	}
	if ci.State == nil {
		return "unknown", "", nil
	}
	state = ci.State.Status
	if ci.State.Health != nil {
		health = ci.State.Health.Status
	}
	return state, health, nil
}

/* -------- multi collector -------- */

// MultiCollector merges the output of several collectors. One source
// failing degrades to partial results; only all sources failing is an
// error.
type MultiCollector struct {
	Sources []Collector
}

func (m MultiCollector) Ports(ctx context.Context) ([]common.PortObservation, error) {
	snap, err := m.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ports, nil
}

func (m MultiCollector) Collect(ctx context.Context) (*Snapshot, error) {
	merged := &Snapshot{Platform: runtime.GOOS}
	var firstErr error
	failures := 0

	for _, src := range m.Sources {
		snap, err := src.Collect(ctx)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			common.WarnLog("collector: source failed: %v", err)
			continue
		}
		merged.Ports = append(merged.Ports, snap.Ports...)
		merged.Apps = append(merged.Apps, snap.Apps...)
		merged.VMs = append(merged.VMs, snap.VMs...)
	}

	if failures == len(m.Sources) && failures > 0 {
		return nil, firstErr
	}
	return merged, nil
}

// DefaultCollector builds the standard collector set: the host procfs
// scanner plus, when a Docker daemon is reachable, the Docker scanner.
func DefaultCollector() Collector {
	sources := []Collector{ProcNetCollector{}}
	if common.EnvBool("PORTSCOPE_COLLECT_DOCKER", "true") {
		sources = append(sources, DockerCollector{})
	}
	return MultiCollector{Sources: sources}
}
