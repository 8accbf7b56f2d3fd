// Package inherit expands a NodeClass by merging its parent chain,
// implementing spec §4.1's InheritanceResolver: a deep merge from root to
// leaf ancestor, followed by a delete-flag pruning sweep, with cycle
// detection. Grounded on lxd-export/core/import/graph_ops.go's DAG-node
// lookup idiom, generalized here to a simple linear ancestor chain (this
// module's "parent" relation is single-parent, not LXD's multi-edge entity
// graph).
package inherit

import (
	"fmt"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// Resolve returns a deep-merged copy of classes[name] incorporating every
// ancestor in its parent chain, root to leaf, per spec §4.1. Pure base
// classes remain available as merge ancestors but are never themselves the
// target of Resolve from outside this package (ResolveAll skips them).
func Resolve(classes map[string]*config.NodeClass, name string) (*config.NodeClass, error) {
	chain, err := ancestorChain(classes, name)
	if err != nil {
		return nil, err
	}

	merged := &config.NodeClass{}
	for _, ancestorName := range chain {
		merge(merged, classes[ancestorName])
	}

	prune(merged)
	return merged, nil
}

// ancestorChain returns the ordered list of class names from the root
// ancestor down to and including name, detecting cycles.
func ancestorChain(classes map[string]*config.NodeClass, name string) ([]string, error) {
	var chain []string
	visited := map[string]bool{}

	cur := name
	for {
		if visited[cur] {
			return nil, fmt.Errorf("node class %q: cycle detected in parent chain (visited %q again)", name, cur)
		}
		visited[cur] = true

		nc, ok := classes[cur]
		if !ok {
			return nil, fmt.Errorf("node class %q: parent %q is not defined", name, cur)
		}

		chain = append(chain, cur)
		if nc.Parent == "" {
			break
		}
		cur = nc.Parent
	}

	// chain is leaf-to-root; reverse to root-to-leaf so child fields
	// override parent fields during merge.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// merge overlays src onto dst: scalar fields are replaced when src sets a
// non-zero value, mappings merge by key, sequences replace wholesale, per
// spec §4.1.
func merge(dst, src *config.NodeClass) {
	if src.BaseName != "" {
		dst.BaseName = src.BaseName
	}
	if src.NodeNames != nil {
		dst.NodeNames = append([]string(nil), src.NodeNames...)
	}
	if src.NodeCount != 0 {
		dst.NodeCount = src.NodeCount
	}
	// pure_base_class is not inherited: a child of a pure base class is
	// deployable unless it says otherwise.
	dst.PureBaseClass = src.PureBaseClass
	dst.Parent = src.Parent

	if src.HostBlade.BladeClass != "" {
		dst.HostBlade.BladeClass = src.HostBlade.BladeClass
	}
	if src.HostBlade.InstanceCapacity != 0 {
		dst.HostBlade.InstanceCapacity = src.HostBlade.InstanceCapacity
	}

	if src.NetworkInterfaces != nil {
		if dst.NetworkInterfaces == nil {
			dst.NetworkInterfaces = map[string]*config.NetworkInterface{}
		}
		for slot, iface := range src.NetworkInterfaces {
			cp := *iface
			dst.NetworkInterfaces[slot] = &cp
		}
	}

	if src.VirtualMachine != nil {
		if dst.VirtualMachine == nil {
			dst.VirtualMachine = &config.VirtualMachineSpec{}
		}
		mergeVirtualMachine(dst.VirtualMachine, src.VirtualMachine)
	}
}

func mergeVirtualMachine(dst, src *config.VirtualMachineSpec) {
	if src.CPUCount != 0 {
		dst.CPUCount = src.CPUCount
	}
	if src.MemorySizeMiB != 0 {
		dst.MemorySizeMiB = src.MemorySizeMiB
	}
	if src.BootDisk != nil {
		cp := *src.BootDisk
		dst.BootDisk = &cp
	}
	if src.AdditionalDisks != nil {
		if dst.AdditionalDisks == nil {
			dst.AdditionalDisks = map[string]*config.Disk{}
		}
		for name, disk := range src.AdditionalDisks {
			cp := *disk
			dst.AdditionalDisks[name] = &cp
		}
	}
}

// prune drops network_interfaces and additional_disks (and their
// partitions) entries flagged delete=true, per spec §4.1.
func prune(nc *config.NodeClass) {
	for slot, iface := range nc.NetworkInterfaces {
		if iface.Delete {
			delete(nc.NetworkInterfaces, slot)
		}
	}
	if nc.VirtualMachine == nil {
		return
	}
	for name, disk := range nc.VirtualMachine.AdditionalDisks {
		if disk == nil {
			continue
		}
		if disk.Delete {
			delete(nc.VirtualMachine.AdditionalDisks, name)
			continue
		}
		for pname, part := range disk.Partitions {
			if part.Delete {
				delete(disk.Partitions, pname)
			}
		}
	}
}

// ResolveAll resolves every non-pure-base-class class in classes, returning
// the deployable, fully-merged set (spec §4.1's "pure base classes are
// skipped entirely during materialization").
func ResolveAll(classes map[string]*config.NodeClass) (map[string]*config.NodeClass, error) {
	out := map[string]*config.NodeClass{}
	for name, nc := range classes {
		if nc.PureBaseClass {
			continue
		}
		resolved, err := Resolve(classes, name)
		if err != nil {
			return nil, err
		}
		if resolved.PureBaseClass {
			// A class can only end up pure_base_class=true here if its
			// own (non-inherited) field said so; already excluded above.
			continue
		}
		out[name] = resolved
	}
	return out, nil
}
