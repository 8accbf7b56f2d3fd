package vmbuilder

import (
	"fmt"
	"net/netip"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// InterfaceInfo is one network interface of a node instance, carrying
// everything both the netplan renderer and the domain XML renderer need
// (spec §4.6 "Netplan"/"Domain definition").
type InterfaceInfo struct {
	IfName        string
	NetName       string
	BridgeName    string
	MACAddr       string
	IPv4Addr      string
	IPv4NetLength int
	DHCP4         bool
}

// HostBladeNetName names the network of the synthetic host-blade
// interface (spec §3); that interface attaches to Builder.HostBladeBridge.
// The reconciler never creates a VXLAN overlay for this network.
const HostBladeNetName = "host-blade"

// buildInterfaces composes one InterfaceInfo per network_interfaces slot
// of nc for the given instance, applying spec §4.6's dhcp4 decision rule:
// dhcp4 := mode in {dynamic, reserved} or instance >= len(addresses).
func (b *Builder) buildInterfaces(nc *config.NodeClass, instance int) ([]InterfaceInfo, error) {
	slots := make([]string, 0, len(nc.NetworkInterfaces))
	for slot := range nc.NetworkInterfaces {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	out := make([]InterfaceInfo, 0, len(slots))
	for _, slot := range slots {
		iface := nc.NetworkInterfaces[slot]

		mac := ""
		if block := iface.AddrInfo[config.FamilyPacket]; block != nil && instance < len(block.Addresses) {
			mac = block.Addresses[instance]
		}

		var mode string
		var addrs []string
		if block := iface.AddrInfo[config.FamilyInet]; block != nil {
			mode = block.Mode
			addrs = block.Addresses
		}

		dhcp4 := mode == config.ModeDynamic || mode == config.ModeReserved || instance >= len(addrs)

		var netName, bridgeName, cidr string
		if iface.ClusterNetwork != "" {
			net, ok := b.Networks[iface.ClusterNetwork]
			if !ok {
				return nil, fmt.Errorf("interface %q: cluster_network %q is not defined", slot, iface.ClusterNetwork)
			}
			netName = net.NetworkName
			bridgeName = net.Devices.BridgeName
			if l3 := net.L3Configs[config.FamilyInet]; l3 != nil {
				cidr = l3.CIDR
			}
		} else {
			netName = HostBladeNetName
			bridgeName = b.HostBladeBridge
			cidr = b.HostBladeCIDR
		}

		netlen := 32
		if cidr != "" {
			prefix, err := netip.ParsePrefix(cidr)
			if err != nil {
				return nil, fmt.Errorf("interface %q: invalid CIDR %q: %w", slot, cidr, err)
			}
			netlen = prefix.Bits()
		}

		ipv4Addr := ""
		if !dhcp4 && instance < len(addrs) {
			ipv4Addr = addrs[instance]
		}

		out = append(out, InterfaceInfo{
			IfName:        slot,
			NetName:       netName,
			BridgeName:    bridgeName,
			MACAddr:       mac,
			IPv4Addr:      ipv4Addr,
			IPv4NetLength: netlen,
			DHCP4:         dhcp4,
		})
	}
	return out, nil
}

type netplanEthernet struct {
	Match     netplanMatch `yaml:"match"`
	DHCP4     bool         `yaml:"dhcp4"`
	DHCP6     bool         `yaml:"dhcp6"`
	Addresses []string     `yaml:"addresses,omitempty"`
}

type netplanMatch struct {
	MACAddress string `yaml:"macaddress"`
}

type netplanDoc struct {
	Network netplanNetwork `yaml:"network"`
}

type netplanNetwork struct {
	Version   int                        `yaml:"version"`
	Ethernets map[string]netplanEthernet `yaml:"ethernets"`
}

// RenderNetplan composes the netplan YAML document for a node instance's
// interfaces (spec §4.6 "Netplan").
func RenderNetplan(interfaces []InterfaceInfo) (string, error) {
	doc := netplanDoc{Network: netplanNetwork{Version: 2, Ethernets: map[string]netplanEthernet{}}}

	for _, iface := range interfaces {
		eth := netplanEthernet{
			Match: netplanMatch{MACAddress: iface.MACAddr},
			DHCP6: false,
			DHCP4: iface.DHCP4,
		}
		if !iface.DHCP4 {
			eth.Addresses = []string{fmt.Sprintf("%s/%d", iface.IPv4Addr, iface.IPv4NetLength)}
		}
		doc.Network.Ethernets[iface.IfName] = eth
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling netplan: %w", err)
	}
	return string(out), nil
}
