package dhcp

import (
	"fmt"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// SelectHostedNetworks picks the networks for which (bladeClass,
// bladeInstance) is the configured DHCP host, and gathers every
// materialized node class's MAC/IP bindings on each such network (spec
// §4.7's opening selection rule and step 1).
func SelectHostedNetworks(cfg *config.ClusterConfig, bladeClass string, bladeInstance int) (map[string]NetworkInput, error) {
	out := map[string]NetworkInput{}

	for netName, net := range cfg.Networks {
		if net.Delete {
			continue
		}
		l3 := net.L3Configs[config.FamilyInet]
		if l3 == nil || l3.DHCP == nil || !l3.DHCP.Enabled {
			continue
		}
		if l3.DHCP.BladeHost.BladeClass != bladeClass || l3.DHCP.BladeHost.BladeInstance != bladeInstance {
			continue
		}

		localIface := net.Devices.BridgeName
		if net.Devices.Local != nil && net.Devices.Local.Interface != "" {
			localIface = net.Devices.Local.Interface
		}

		input := NetworkInput{
			CIDR:           l3.CIDR,
			LocalInterface: localIface,
			Pools:          l3.DHCP.Pools,
			Routers:        nonEmpty(l3.Gateway),
			DomainNameServers: l3.NameServers,
		}

		bindings, err := collectBindings(cfg.NodeClasses, netName)
		if err != nil {
			return nil, fmt.Errorf("network %q: %w", netName, err)
		}
		input.Bindings = bindings

		out[netName] = input
	}

	return out, nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// collectBindings gathers the MAC/IP address lists of every node class
// interface attached to netName (spec §4.7 step 1, "collect node-class
// interfaces connected to that network").
func collectBindings(classes map[string]*config.NodeClass, netName string) ([]InterfaceBinding, error) {
	var bindings []InterfaceBinding

	for _, nc := range classes {
		for _, iface := range nc.NetworkInterfaces {
			if iface.ClusterNetwork != netName {
				continue
			}

			var macs, ips []string
			if block := iface.AddrInfo[config.FamilyPacket]; block != nil {
				macs = block.Addresses
			}
			if block := iface.AddrInfo[config.FamilyInet]; block != nil {
				ips = block.Addresses
			}
			if len(macs) == 0 || len(ips) == 0 {
				continue
			}
			bindings = append(bindings, InterfaceBinding{MACs: macs, IPs: ips})
		}
	}
	return bindings, nil
}
