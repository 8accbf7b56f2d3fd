package plan

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/ipalloc"
)

// HostBladeSlot is the network_interfaces{} key the synthetic host-blade
// interface is installed under on every materialized node class.
const HostBladeSlot = "host-blade"

// HostBladeHostnameSuffix is spec §3's fixed suffix for the synthetic
// interface's hostname.
const HostBladeHostnameSuffix = "-host-blade"

// DefaultHostBladeBridge is the bridge device name assumed on every blade
// when host_blade_network.bridge_device is left unset in configuration.
const DefaultHostBladeBridge = "br-host-blade"

// ConnectedBlade is one blade instance's address on the synthetic
// host-blade network (spec §8 scenario 1's "connected_blades[]").
type ConnectedBlade struct {
	BladeClass    string `yaml:"blade_class"`
	BladeInstance int    `yaml:"blade_instance"`
	BladeIP       string `yaml:"blade_ip"`
}

// HostBladeNetwork is the controller-synthesized network connecting every
// node to its hosting blade (spec §3's "HostBladeNetwork").
type HostBladeNetwork struct {
	CIDR            string           `yaml:"cidr"`
	BridgeDevice    string           `yaml:"bridge_device"`
	ConnectedBlades []ConnectedBlade `yaml:"connected_blades"`
}

// BladeCounter resolves how many instances exist of a blade class; a
// narrow slice of provider.Provider so this file doesn't need to import
// the whole interface.
type BladeCounter interface {
	BladeClasses() []string
	BladeCount(class string) int
}

// SynthesizeHostBladeNetwork allocates the host-blade CIDR across every
// blade instance and every node-class instance, and installs the
// synthetic static interface on each materialized class, per spec §3 and
// §4.2.
//
// Allocation order: the first cluster_node_count+1 hosts of the CIDR are
// taken in ascending order; the first (lowest) host is the shared
// blade-side address; the remaining hosts are consumed from the tail
// (highest first) as node classes are visited in sorted-name order and
// instances ascending within a class — this reproduces spec §8 scenario
// 1's expected allocation ("addresses allocated from the tail").
func SynthesizeHostBladeNetwork(cfg *config.ClusterConfig, bc BladeCounter) (*HostBladeNetwork, error) {
	if cfg.HostBladeNetwork == nil || cfg.HostBladeNetwork.CIDR == "" {
		return nil, fmt.Errorf("host_blade_network.cidr is required")
	}

	prefix, err := netip.ParsePrefix(cfg.HostBladeNetwork.CIDR)
	if err != nil {
		return nil, fmt.Errorf("host_blade_network.cidr %q is invalid: %w", cfg.HostBladeNetwork.CIDR, err)
	}

	clusterNodeCount := 0
	names := sortedNodeClassNames(cfg.NodeClasses)
	for _, name := range names {
		nc := cfg.NodeClasses[name]
		if nc.PureBaseClass {
			continue
		}
		clusterNodeCount += nc.NodeCount
	}

	needed := uint64(clusterNodeCount + 1)
	if needed > ipalloc.UsableHostCount(prefix) {
		return nil, fmt.Errorf("host_blade_network.cidr %s has only %d usable hosts, need %d", prefix, ipalloc.UsableHostCount(prefix), needed)
	}

	hosts := make([]netip.Addr, 0, needed)
	for i := uint64(1); i <= needed; i++ {
		addr, err := ipalloc.NthHost(prefix, i)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, addr)
	}

	bladeIP := hosts[0].String()
	remaining := hosts[1:]
	nextIdx := len(remaining) - 1

	bridge := cfg.HostBladeNetwork.BridgeDevice
	if bridge == "" {
		bridge = DefaultHostBladeBridge
	}
	net := &HostBladeNetwork{CIDR: cfg.HostBladeNetwork.CIDR, BridgeDevice: bridge}
	for _, class := range bc.BladeClasses() {
		for instance := 0; instance < bc.BladeCount(class); instance++ {
			net.ConnectedBlades = append(net.ConnectedBlades, ConnectedBlade{
				BladeClass:    class,
				BladeInstance: instance,
				BladeIP:       bladeIP,
			})
		}
	}
	sort.Slice(net.ConnectedBlades, func(i, j int) bool {
		if net.ConnectedBlades[i].BladeClass != net.ConnectedBlades[j].BladeClass {
			return net.ConnectedBlades[i].BladeClass < net.ConnectedBlades[j].BladeClass
		}
		return net.ConnectedBlades[i].BladeInstance < net.ConnectedBlades[j].BladeInstance
	})

	for _, name := range names {
		nc := cfg.NodeClasses[name]
		if nc.PureBaseClass {
			continue
		}

		addrs := make([]string, nc.NodeCount)
		for instance := 0; instance < nc.NodeCount; instance++ {
			if nextIdx < 0 {
				return nil, fmt.Errorf("host_blade_network.cidr %s ran out of host addresses", prefix)
			}
			addrs[instance] = remaining[nextIdx].String()
			nextIdx--
		}

		if nc.NetworkInterfaces == nil {
			nc.NetworkInterfaces = map[string]*config.NetworkInterface{}
		}
		nc.NetworkInterfaces[HostBladeSlot] = &config.NetworkInterface{
			ClusterNetwork: "",
			AddrInfo: map[string]*config.AddrBlock{
				config.FamilyInet: {
					Mode:           config.ModeStatic,
					Addresses:      addrs,
					HostnameSuffix: HostBladeHostnameSuffix,
				},
			},
		}
	}

	return net, nil
}

func sortedNodeClassNames(classes map[string]*config.NodeClass) []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
