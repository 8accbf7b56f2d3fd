// Package plan builds the fully-materialized deployment plan a
// vtds-cluster-kvm controller hands to its blades: inheritance-resolved
// node classes, a synthesized host-blade network, computed overlay
// endpoint IPs, topped-up MAC addresses, and an embedded domain XML
// template (spec §4.2's PlanBuilder). Grounded on
// Cray-HPE-cray-site-init's networkBuilder.go for the allocate-then-embed
// shape of network materialization, and lxd/cluster/cluster_link.go for
// the deterministic-ordering, wrapped-error style used throughout.
package plan

import (
	"fmt"
	"os"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/inherit"
)

// LoadXMLTemplate reads the domain XML template named by
// config.ClusterConfig.VMXMLTemplatePath, ready for embedding into every
// materialized node class (spec §4.2).
func LoadXMLTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading VM XML template %s: %w", path, err)
	}
	return string(data), nil
}

// Plan is the complete, self-contained configuration shipped to every
// blade (spec §4.2, §6's "blade_core_config.yaml").
type Plan struct {
	NodeClasses      map[string]*config.NodeClass     `yaml:"node_classes"`
	Networks         map[string]*config.VirtualNetwork `yaml:"networks"`
	HostBladeNetwork *HostBladeNetwork                 `yaml:"host_blade_network"`
}

// Build resolves inheritance, synthesizes the host-blade network, computes
// overlay endpoint IPs, tops up MAC addresses, and embeds the domain XML
// template, returning the finished Plan. classes must be the raw,
// unresolved node_classes map as loaded from the cluster config.
func Build(cfg *config.ClusterConfig, bc BladeCounter, lookup IPLookup, vmXMLTemplate string) (*Plan, error) {
	resolved, err := inherit.ResolveAll(cfg.NodeClasses)
	if err != nil {
		return nil, fmt.Errorf("resolving node class inheritance: %w", err)
	}

	resolvedCfg := &config.ClusterConfig{
		NodeClasses:      resolved,
		Networks:         cfg.Networks,
		HostBladeNetwork: cfg.HostBladeNetwork,
	}

	hostBlade, err := SynthesizeHostBladeNetwork(resolvedCfg, bc)
	if err != nil {
		return nil, fmt.Errorf("synthesizing host-blade network: %w", err)
	}

	if err := ComputeEndpointIPs(cfg.Networks, lookup); err != nil {
		return nil, fmt.Errorf("computing endpoint IPs: %w", err)
	}

	if err := AssignMACs(resolved); err != nil {
		return nil, fmt.Errorf("assigning MAC addresses: %w", err)
	}

	for name, nc := range resolved {
		nc.VMXMLTemplate = vmXMLTemplate
		resolved[name] = nc
	}

	networks := map[string]*config.VirtualNetwork{}
	for name, net := range cfg.Networks {
		if net.Delete {
			continue
		}
		networks[name] = net
	}

	return &Plan{
		NodeClasses:      resolved,
		Networks:         networks,
		HostBladeNetwork: hostBlade,
	}, nil
}
