package cluster

import (
	"fmt"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// VirtualNetworks is the read-only query API over a prepared Cluster's
// overlay networks (spec §4.1).
type VirtualNetworks struct {
	cluster *Cluster
}

// GetVirtualNetworks returns the VirtualNetworks query view of a prepared
// cluster (spec §4.1's `get_virtual_networks()`).
func (c *Cluster) GetVirtualNetworks() (*VirtualNetworks, error) {
	if err := c.requirePrepared(); err != nil {
		return nil, err
	}
	return &VirtualNetworks{cluster: c}, nil
}

// NetworkNames returns every deployed overlay network's name, sorted
// (spec §4.1's `network_names()`).
func (v *VirtualNetworks) NetworkNames() []string {
	names := make([]string, 0, len(v.cluster.plan.Networks))
	for name := range v.cluster.plan.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IPv4CIDR returns network's AF_INET CIDR (spec §4.1's `ipv4_cidr`).
func (v *VirtualNetworks) IPv4CIDR(network string) (string, error) {
	net, ok := v.cluster.plan.Networks[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	l3, ok := net.L3Configs[config.FamilyInet]
	if !ok {
		return "", fmt.Errorf("network %q has no AF_INET configuration", network)
	}
	return l3.CIDR, nil
}
