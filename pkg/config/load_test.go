package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
node_classes:
  compute:
    base_name: compute
    node_count: 2
    host_blade:
      blade_class: blade-a
      instance_capacity: 2
    virtual_machine:
      cpu_count: 2
      memory_size_mib: 4096
      boot_disk:
        target_device: vda
        source_image: /images/compute.qcow2
    network_interfaces:
      mgmt:
        cluster_network: mgmt-net
networks:
  mgmt-net:
    tunnel_id: 10
    devices:
      tunnel: vx-mgmt
      bridge_name: br-mgmt
    l3_configs:
      AF_INET:
        cidr: 192.168.1.0/24
host_blade_network:
  cidr: 10.255.0.0/24
`

func TestParse_ValidDocument(t *testing.T) {
	cfg, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	require.Contains(t, cfg.NodeClasses, "compute")
	nc := cfg.NodeClasses["compute"]
	assert.Equal(t, 2, nc.NodeCount)
	assert.Equal(t, "blade-a", nc.HostBlade.BladeClass)
	assert.Equal(t, 2, nc.VirtualMachine.CPUCount)

	require.Contains(t, cfg.Networks, "mgmt-net")
	assert.Equal(t, 10, cfg.Networks["mgmt-net"].TunnelID)
	assert.Equal(t, "192.168.1.0/24", cfg.Networks["mgmt-net"].L3Configs[FamilyInet].CIDR)

	require.NotNil(t, cfg.HostBladeNetwork)
	assert.Equal(t, "10.255.0.0/24", cfg.HostBladeNetwork.CIDR)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("node_classes: [this is not a map"))
	assert.Error(t, err)
}

func TestValidate_MissingVirtualMachineBlock(t *testing.T) {
	cfg := &ClusterConfig{
		NodeClasses: map[string]*NodeClass{
			"compute": {NodeCount: 1},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing virtual_machine block")
}

func TestValidate_ZeroCPUCountRejected(t *testing.T) {
	cfg := &ClusterConfig{
		NodeClasses: map[string]*NodeClass{
			"compute": {
				NodeCount:      1,
				VirtualMachine: &VirtualMachineSpec{CPUCount: 0, MemorySizeMiB: 1024},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu_count")
}

func TestValidate_PureBaseClassSkipsVirtualMachineCheck(t *testing.T) {
	cfg := &ClusterConfig{
		NodeClasses: map[string]*NodeClass{
			"base": {PureBaseClass: true},
		},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ChildClassSkipsDirectPresenceCheck(t *testing.T) {
	cfg := &ClusterConfig{
		NodeClasses: map[string]*NodeClass{
			"compute-big": {Parent: "compute", NodeCount: 1},
		},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownClusterNetworkRejected(t *testing.T) {
	cfg := &ClusterConfig{
		NodeClasses: map[string]*NodeClass{
			"compute": {
				NodeCount:      1,
				VirtualMachine: &VirtualMachineSpec{CPUCount: 1, MemorySizeMiB: 1024},
				NetworkInterfaces: map[string]*NetworkInterface{
					"mgmt": {ClusterNetwork: "does-not-exist"},
				},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not defined in networks")
}

func TestValidate_DeletedNetworkSkipsChecks(t *testing.T) {
	cfg := &ClusterConfig{
		Networks: map[string]*VirtualNetwork{
			"mgmt-net": {Delete: true},
		},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NetworkNameDefaultsToMapKey(t *testing.T) {
	cfg := &ClusterConfig{
		Networks: map[string]*VirtualNetwork{
			"mgmt-net": {},
		},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mgmt-net", cfg.Networks["mgmt-net"].NetworkName)
}
