package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

type fakeIPLookup struct {
	classes []string
	counts  map[string]int
	ips     map[string]string
}

func (f fakeIPLookup) BladeClasses() []string { return f.classes }
func (f fakeIPLookup) BladeCount(class string) int { return f.counts[class] }
func (f fakeIPLookup) BladeIP(class string, instance int, interconnect string) (string, error) {
	return f.ips[class], nil
}

// TestComputeEndpointIPs_Scenario2 reproduces spec §8 scenario 2: a
// network with no blade_interconnect gets endpoint_ips=[]; one naming a
// blade_interconnect gets one IP per connected blade instance.
func TestComputeEndpointIPs_Scenario2(t *testing.T) {
	lookup := fakeIPLookup{
		classes: []string{"blade-a", "blade-b"},
		counts:  map[string]int{"blade-a": 2, "blade-b": 1},
		ips:     map[string]string{"blade-a": "10.0.0.1", "blade-b": "10.0.0.2"},
	}

	networks := map[string]*config.VirtualNetwork{
		"isolated": {},
		"overlay":  {BladeInterconnect: "mgmt"},
		"gone":     {Delete: true, BladeInterconnect: "mgmt"},
	}

	err := ComputeEndpointIPs(networks, lookup)
	require.NoError(t, err)

	assert.Nil(t, networks["isolated"].EndpointIPs)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.1", "10.0.0.2"}, networks["overlay"].EndpointIPs)
	assert.Nil(t, networks["gone"].EndpointIPs)
}

func TestComputeEndpointIPs_ExplicitConnectedClasses(t *testing.T) {
	lookup := fakeIPLookup{
		classes: []string{"blade-a", "blade-b"},
		counts:  map[string]int{"blade-a": 1, "blade-b": 1},
		ips:     map[string]string{"blade-a": "10.0.0.1", "blade-b": "10.0.0.2"},
	}

	networks := map[string]*config.VirtualNetwork{
		"overlay": {BladeInterconnect: "mgmt", ConnectedBladeClasses: []string{"blade-b"}},
	}

	err := ComputeEndpointIPs(networks, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2"}, networks["overlay"].EndpointIPs)
}
