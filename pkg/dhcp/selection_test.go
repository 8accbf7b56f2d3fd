package dhcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

func TestSelectHostedNetworks(t *testing.T) {
	cfg := &config.ClusterConfig{
		Networks: map[string]*config.VirtualNetwork{
			"mgmt-net": {
				Devices: config.DevicesSpec{BridgeName: "br-mgmt"},
				L3Configs: map[string]*config.L3Config{
					config.FamilyInet: {
						CIDR:    "10.1.0.0/24",
						Gateway: "10.1.0.1",
						DHCP: &config.DHCPConfig{
							Enabled:   true,
							BladeHost: config.BladeHostRef{BladeClass: "blade-a", BladeInstance: 0},
							Pools:     []config.DHCPPool{{Start: "10.1.0.100", End: "10.1.0.200"}},
						},
					},
				},
			},
			"other-net": {
				Devices: config.DevicesSpec{BridgeName: "br-other"},
				L3Configs: map[string]*config.L3Config{
					config.FamilyInet: {CIDR: "10.2.0.0/24"},
				},
			},
		},
		NodeClasses: map[string]*config.NodeClass{
			"compute": {
				NetworkInterfaces: map[string]*config.NetworkInterface{
					"mgmt": {
						ClusterNetwork: "mgmt-net",
						AddrInfo: map[string]*config.AddrBlock{
							config.FamilyPacket: {Addresses: []string{"52:54:00:00:00:01"}},
							config.FamilyInet:   {Addresses: []string{"10.1.0.10"}},
						},
					},
				},
			},
		},
	}

	hosted, err := SelectHostedNetworks(cfg, "blade-a", 0)
	require.NoError(t, err)
	require.Contains(t, hosted, "mgmt-net")
	assert.NotContains(t, hosted, "other-net")

	input := hosted["mgmt-net"]
	assert.Equal(t, "br-mgmt", input.LocalInterface)
	require.Len(t, input.Bindings, 1)
	assert.Equal(t, []string{"52:54:00:00:00:01"}, input.Bindings[0].MACs)

	hosted, err = SelectHostedNetworks(cfg, "blade-a", 1)
	require.NoError(t, err)
	assert.Empty(t, hosted)
}
