package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/nodepool"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/plan"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/vmbuilder"
)

// defaultSSHPort is used by SSHConnectNode(s) when the caller passes 0
// (spec §4.1's `ssh_connect_node(..., remote_port=22)` default).
const defaultSSHPort = 22

// VirtualNodes is the read-only query API over a prepared Cluster's
// materialized node classes (spec §4.1).
type VirtualNodes struct {
	cluster *Cluster
	pool    *nodepool.Pool
}

// GetVirtualNodes returns the VirtualNodes query view of a prepared
// cluster (spec §4.1's `get_virtual_nodes()`).
func (c *Cluster) GetVirtualNodes() (*VirtualNodes, error) {
	if err := c.requirePrepared(); err != nil {
		return nil, err
	}
	return &VirtualNodes{
		cluster: c,
		pool:    &nodepool.Pool{Provider: c.Provider, Locator: classLocator{c.plan}},
	}, nil
}

// classLocator adapts a Plan to nodepool.NodeLocator.
type classLocator struct{ plan *plan.Plan }

func (l classLocator) InstanceCapacity(class string) int {
	nc, ok := l.plan.NodeClasses[class]
	if !ok {
		return 0
	}
	return nc.HostBlade.InstanceCapacity
}

// NodeClasses returns every deployable node class's name, sorted.
func (v *VirtualNodes) NodeClasses() []string {
	names := make([]string, 0, len(v.cluster.plan.NodeClasses))
	for name := range v.cluster.plan.NodeClasses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount returns class's node_count, or 0 if class is unknown.
func (v *VirtualNodes) NodeCount(class string) int {
	nc, ok := v.cluster.plan.NodeClasses[class]
	if !ok {
		return 0
	}
	return nc.NodeCount
}

// NetworkNames returns, sorted, the cluster network names class attaches
// to, using plan.HostBladeSlot for the synthetic host-blade interface.
func (v *VirtualNodes) NetworkNames(class string) []string {
	nc, ok := v.cluster.plan.NodeClasses[class]
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	for _, iface := range nc.NetworkInterfaces {
		name := iface.ClusterNetwork
		if name == "" {
			name = plan.HostBladeSlot
		}
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeHostname returns instance's hostname. With network == "", it is the
// class's base hostname (spec §4.6). With network set to a cluster
// network name this class attaches to, and that attachment carrying a
// non-empty hostname_suffix (spec §3's "hostname_suffix", used by the
// synthetic host-blade network), the suffix replaces the default
// "-{NNN}" numbering.
func (v *VirtualNodes) NodeHostname(class string, instance int, network string) (string, error) {
	nc, ok := v.cluster.plan.NodeClasses[class]
	if !ok {
		return "", fmt.Errorf("unknown node class %q", class)
	}
	base := vmbuilder.Hostname(nc, instance)
	if network == "" {
		return base, nil
	}

	for _, iface := range nc.NetworkInterfaces {
		name := iface.ClusterNetwork
		if name == "" {
			name = plan.HostBladeSlot
		}
		if name != network {
			continue
		}
		if block, ok := iface.AddrInfo[config.FamilyInet]; ok && block.HostnameSuffix != "" {
			return nc.BaseName + block.HostnameSuffix, nil
		}
		return base, nil
	}
	return "", fmt.Errorf("node class %q is not attached to network %q", class, network)
}

// NodeSSHKeySecretPaths returns the (public, private) key paths generated
// for class (spec §4.1's `node_ssh_key_secret/paths(class)`).
func (v *VirtualNodes) NodeSSHKeySecretPaths(class string) (pub string, priv string, err error) {
	return v.cluster.NodeSSHKeyPaths(class)
}

// hostBladeIP returns instance's address on the synthetic host-blade
// network, the path used to reach a node from its hosting blade.
func (v *VirtualNodes) hostBladeIP(class string, instance int) (string, error) {
	nc, ok := v.cluster.plan.NodeClasses[class]
	if !ok {
		return "", fmt.Errorf("unknown node class %q", class)
	}
	iface, ok := nc.NetworkInterfaces[plan.HostBladeSlot]
	if !ok {
		return "", fmt.Errorf("node class %q has no host-blade interface", class)
	}
	block, ok := iface.AddrInfo[config.FamilyInet]
	if !ok || instance >= len(block.Addresses) {
		return "", fmt.Errorf("node class %q instance %d has no host-blade address", class, instance)
	}
	return block.Addresses[instance], nil
}

// ConnectNode opens a local tunnel to instance's remotePort through its
// hosting blade (spec §4.1's `connect_node`, spec §4.4).
func (v *VirtualNodes) ConnectNode(ctx context.Context, class string, instance int, remotePort int) (*nodepool.Tunnel, error) {
	ip, err := v.hostBladeIP(class, instance)
	if err != nil {
		return nil, err
	}
	return v.pool.Open(ctx, class, instance, ip, remotePort)
}

// ConnectedNode names one open tunnel returned by ConnectNodes.
type ConnectedNode struct {
	Class    string
	Instance int
	Tunnel   *nodepool.Tunnel
}

// ConnectNodes opens tunnels to remotePort on every instance of every
// class in classes, or of every class if classes is nil (spec §4.1's
// `connect_nodes(remote_port, classes=None)`).
func (v *VirtualNodes) ConnectNodes(ctx context.Context, remotePort int, classes []string) ([]ConnectedNode, error) {
	if classes == nil {
		classes = v.NodeClasses()
	}

	var out []ConnectedNode
	for _, class := range classes {
		for instance := 0; instance < v.NodeCount(class); instance++ {
			t, err := v.ConnectNode(ctx, class, instance, remotePort)
			if err != nil {
				return out, fmt.Errorf("connecting %s/%d: %w", class, instance, err)
			}
			out = append(out, ConnectedNode{Class: class, Instance: instance, Tunnel: t})
		}
	}
	return out, nil
}

// SSHConnectNode opens a tunnel to instance's SSH port (remotePort, or 22
// if 0) and wraps it with SSHNode's copy_to/copy_from/run_command
// template-rendering layer (spec §4.1's `ssh_connect_node`, spec §4.4's
// "An SSH-capable variant").
func (v *VirtualNodes) SSHConnectNode(ctx context.Context, class string, instance int, remotePort int) (*nodepool.SSHNode, error) {
	if remotePort == 0 {
		remotePort = defaultSSHPort
	}
	t, err := v.ConnectNode(ctx, class, instance, remotePort)
	if err != nil {
		return nil, err
	}
	hostname, err := v.NodeHostname(class, instance, "")
	if err != nil {
		return nil, err
	}
	return &nodepool.SSHNode{
		Tunnel:   t,
		NodeUser: "root",
		Context: nodepool.TemplateContext{
			NodeClass: class, Instance: instance, NodeHostname: hostname,
			RemotePort: remotePort, LocalIP: t.LocalIP, LocalPort: t.LocalPort,
		},
	}, nil
}

// ConnectedSSHNode names one open SSHNode returned by SSHConnectNodes.
type ConnectedSSHNode struct {
	Class    string
	Instance int
	Node     *nodepool.SSHNode
}

// SSHConnectNodes is ConnectNodes' SSHConnectNode-returning counterpart
// (spec §4.1's `ssh_connect_nodes(classes=None, remote_port=22)`).
func (v *VirtualNodes) SSHConnectNodes(ctx context.Context, classes []string, remotePort int) ([]ConnectedSSHNode, error) {
	if classes == nil {
		classes = v.NodeClasses()
	}
	if remotePort == 0 {
		remotePort = defaultSSHPort
	}

	var out []ConnectedSSHNode
	for _, class := range classes {
		for instance := 0; instance < v.NodeCount(class); instance++ {
			n, err := v.SSHConnectNode(ctx, class, instance, remotePort)
			if err != nil {
				return out, fmt.Errorf("ssh-connecting %s/%d: %w", class, instance, err)
			}
			out = append(out, ConnectedSSHNode{Class: class, Instance: instance, Node: n})
		}
	}
	return out, nil
}
