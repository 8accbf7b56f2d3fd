package cluster

import (
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/plan"
)

// classNamesForBlade returns, in sorted order, every node class hosted on
// bladeClass.
func classNamesForBlade(p *plan.Plan, bladeClass string) []string {
	var names []string
	for name, nc := range p.NodeClasses {
		if nc.HostBlade.BladeClass == bladeClass {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// networkNamesForBlade returns, in sorted order, every network bladeClass
// owns an endpoint on (i.e. at least one of its connected blade classes is
// bladeClass).
func networkNamesForBlade(p *plan.Plan, bladeClass string) []string {
	var names []string
	for name, net := range p.Networks {
		if net.BladeInterconnect == "" {
			continue
		}
		classes := net.ConnectedBladeClasses
		if len(classes) == 0 {
			names = append(names, name)
			continue
		}
		for _, c := range classes {
			if c == bladeClass {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}
