package plan

import (
	"fmt"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// IPLookup resolves a blade instance's underlay IP on an interconnect; the
// narrow slice of provider.Provider this file needs.
type IPLookup interface {
	BladeClasses() []string
	BladeCount(class string) int
	BladeIP(class string, instance int, interconnect string) (string, error)
}

// ComputeEndpointIPs fills in net.EndpointIPs for every non-deleted
// VirtualNetwork that names a blade_interconnect, per spec §4.2: for each
// connected blade class (default: every blade class in the fleet) and
// every instance of that class ascending, look up the blade's IP on the
// named interconnect. Networks with no blade_interconnect get an empty
// EndpointIPs, matching spec §8 scenario 2 ("endpoint_ips=[]" when
// blade_interconnect is null).
func ComputeEndpointIPs(networks map[string]*config.VirtualNetwork, lookup IPLookup) error {
	for name, net := range networks {
		if net.Delete {
			continue
		}
		if net.BladeInterconnect == "" {
			net.EndpointIPs = nil
			continue
		}

		classes := net.ConnectedBladeClasses
		if len(classes) == 0 {
			classes = lookup.BladeClasses()
			sort.Strings(classes)
		}

		var ips []string
		for _, class := range classes {
			for instance := 0; instance < lookup.BladeCount(class); instance++ {
				ip, err := lookup.BladeIP(class, instance, net.BladeInterconnect)
				if err != nil {
					return fmt.Errorf("network %q: %w", name, err)
				}
				ips = append(ips, ip)
			}
		}
		net.EndpointIPs = ips
	}
	return nil
}
