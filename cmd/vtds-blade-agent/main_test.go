package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blade_core_config.yaml")
	doc := `
node_classes:
  compute:
    node_count: 1
networks:
  mgmt-net:
    tunnel_id: 42
    devices:
      local:
        peer: 10.0.0.1
        interface: eth1
    l3_configs:
      AF_INET:
        cidr: 192.168.1.0/24
host_blade_network:
  cidr: 10.255.0.0/24
  bridge_device: br-host-blade
  connected_blades:
    - blade_class: blade-a
      blade_instance: 0
      blade_ip: 10.255.0.1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := loadPlan(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.HostBladeNetwork)
	assert.Equal(t, "10.255.0.0/24", cfg.HostBladeNetwork.CIDR)
	assert.Equal(t, "br-host-blade", cfg.HostBladeNetwork.BridgeDevice)
}

func TestDeriveNetworkParams(t *testing.T) {
	cfg := &config.ClusterConfig{
		Networks: map[string]*config.VirtualNetwork{
			"mgmt-net": {
				TunnelID: 7,
				Devices: config.DevicesSpec{
					Local: &config.LocalDevice{Peer: "10.0.0.1", Interface: "eth1"},
				},
				L3Configs: map[string]*config.L3Config{
					config.FamilyInet: {CIDR: "192.168.1.0/24"},
				},
			},
			"overlay-only": {TunnelID: 9},
		},
	}

	vnis, peers := deriveNetworkParams(cfg)
	assert.Equal(t, map[string]int{"mgmt-net": 7, "overlay-only": 9}, vnis)

	require.Contains(t, peers, "mgmt-net")
	assert.Equal(t, "10.0.0.1", peers["mgmt-net"].LocalPeer)
	assert.Equal(t, "eth1", peers["mgmt-net"].LocalInterface)
	assert.Equal(t, "192.168.1.0/24", peers["mgmt-net"].LocalCIDR)

	_, hasOverlayOnly := peers["overlay-only"]
	assert.False(t, hasOverlayOnly)
}
