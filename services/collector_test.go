package services

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portscope/common"
)

type stubCollector struct {
	snap *Snapshot
	err  error
}

func (s stubCollector) Ports(ctx context.Context) ([]common.PortObservation, error) {
	snap, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ports, nil
}

func (s stubCollector) Collect(ctx context.Context) (*Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func TestMultiCollector_Merges(t *testing.T) {
	m := MultiCollector{Sources: []Collector{
		stubCollector{snap: &Snapshot{
			Ports: []common.PortObservation{{HostIP: "0.0.0.0", HostPort: 22, Protocol: "tcp"}},
		}},
		stubCollector{snap: &Snapshot{
			Ports: []common.PortObservation{{HostIP: "0.0.0.0", HostPort: 80, Protocol: "tcp"}},
			Apps:  []AppInfo{{Name: "web", State: "running"}},
		}},
	}}

	snap, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Ports, 2)
	assert.Len(t, snap.Apps, 1)
}

func TestMultiCollector_PartialFailure(t *testing.T) {
	m := MultiCollector{Sources: []Collector{
		stubCollector{err: errors.New("daemon unreachable")},
		stubCollector{snap: &Snapshot{
			Ports: []common.PortObservation{{HostIP: "0.0.0.0", HostPort: 80, Protocol: "tcp"}},
		}},
	}}

	snap, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Ports, 1)
}

func TestMultiCollector_AllFail(t *testing.T) {
	boom := errors.New("daemon unreachable")
	m := MultiCollector{Sources: []Collector{
		stubCollector{err: boom},
		stubCollector{err: errors.New("procfs gone")},
	}}

	_, err := m.Collect(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFlattenPortMap_HostBindings(t *testing.T) {
	pm := nat.PortMap{
		"80/tcp": []nat.PortBinding{
			{HostIP: "0.0.0.0", HostPort: "8080"},
			{HostIP: "::", HostPort: "8080"},
		},
	}

	obs := flattenPortMap(pm, "web", 321, "abc123", "172.17.0.2")
	require.Len(t, obs, 2)
	for _, o := range obs {
		assert.Equal(t, 8080, o.HostPort)
		assert.Equal(t, "tcp", o.Protocol)
		assert.Equal(t, "web", o.Owner)
		assert.Equal(t, 321, o.PID)
		assert.Equal(t, "abc123", o.ContainerID)
		assert.False(t, o.Internal)
	}
}

func TestFlattenPortMap_UnboundExposedPortIsInternal(t *testing.T) {
	pm := nat.PortMap{"5432/tcp": nil}

	obs := flattenPortMap(pm, "db", 0, "abc123", "172.17.0.3")
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Internal)
	assert.Equal(t, "172.17.0.3", obs[0].HostIP)
	assert.Equal(t, 5432, obs[0].HostPort)

	// no container address means nothing to report
	assert.Empty(t, flattenPortMap(pm, "db", 0, "abc123", ""))
}

func TestFlattenPortMap_EmptyBindIPDefaultsToWildcard(t *testing.T) {
	pm := nat.PortMap{
		"53/udp": []nat.PortBinding{{HostIP: "", HostPort: "53"}},
	}

	obs := flattenPortMap(pm, "dns", 0, "abc123", "")
	require.Len(t, obs, 1)
	assert.Equal(t, "0.0.0.0", obs[0].HostIP)
	assert.Equal(t, "udp", obs[0].Protocol)
}

func TestContainerAddress(t *testing.T) {
	assert.Equal(t, "", containerAddress(nil))

	ns := &container.NetworkSettings{}
	ns.IPAddress = "172.17.0.5"
	assert.Equal(t, "172.17.0.5", containerAddress(ns))
}
