package netrecon

import (
	"context"
	"fmt"

	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// NetworkSpec is the blade-local view of one in-scope overlay network
// (spec §4.5's "Inputs").
type NetworkSpec struct {
	Name        string
	TunnelName  string
	BridgeName  string
	VNI         int
	EndpointIPs []string

	// LocalPeer/LocalInterface/LocalCIDR are set only when this blade
	// owns an endpoint on the overlay (spec §4.5 step 8).
	LocalPeer      string
	LocalInterface string
	LocalCIDR      string
}

const vxlanDstPort = 4789

// Reconciler drives the per-network reconciliation steps of spec §4.5.
type Reconciler struct {
	Runner subprocess.Runner
	LogDir string
}

// Reconcile brings net up to the state described by spec §4.5 steps 1-9,
// given the blade's current discovered link/FDB/libvirt-network state.
func (r *Reconciler) Reconcile(ctx context.Context, d *Discovery, net NetworkSpec) error {
	if err := r.checkNameConflicts(d, net); err != nil {
		return fmt.Errorf("network %q: %w", net.Name, err)
	}

	underlay, err := r.selectUnderlay(d, net)
	if err != nil {
		return fmt.Errorf("network %q: %w", net.Name, err)
	}

	if err := r.teardown(ctx, net); err != nil {
		return fmt.Errorf("network %q: tearing down stale links: %w", net.Name, err)
	}

	if _, err := r.Runner.Run(ctx, r.LogDir, "vxlan-add-"+net.TunnelName, "ip", "link", "add",
		net.TunnelName, "type", "vxlan", "id", fmt.Sprintf("%d", net.VNI),
		"dev", underlay, "dstport", fmt.Sprintf("%d", vxlanDstPort)); err != nil {
		return fmt.Errorf("network %q: creating vxlan interface: %w", net.Name, err)
	}

	if _, err := r.Runner.Run(ctx, r.LogDir, "bridge-add-"+net.BridgeName, "ip", "link", "add",
		net.BridgeName, "type", "bridge"); err != nil {
		return fmt.Errorf("network %q: creating bridge: %w", net.Name, err)
	}

	if _, err := r.Runner.Run(ctx, r.LogDir, "enslave-"+net.TunnelName, "ip", "link", "set",
		net.TunnelName, "master", net.BridgeName); err != nil {
		return fmt.Errorf("network %q: enslaving tunnel under bridge: %w", net.Name, err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "up-"+net.TunnelName, "ip", "link", "set",
		net.TunnelName, "up"); err != nil {
		return fmt.Errorf("network %q: bringing tunnel up: %w", net.Name, err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "up-"+net.BridgeName, "ip", "link", "set",
		net.BridgeName, "up"); err != nil {
		return fmt.Errorf("network %q: bringing bridge up: %w", net.Name, err)
	}

	for _, ip := range net.EndpointIPs {
		if ip == underlayLocalIP(d, underlay) {
			continue
		}
		label := fmt.Sprintf("fdb-append-%s-%s", net.TunnelName, ip)
		if _, err := r.Runner.Run(ctx, r.LogDir, label, "bridge", "fdb", "append",
			"to", "00:00:00:00:00:00", "dst", ip, "dev", net.TunnelName); err != nil {
			return fmt.Errorf("network %q: adding FDB entry for %s: %w", net.Name, ip, err)
		}
	}

	if net.LocalPeer != "" && net.LocalInterface != "" {
		if err := r.setUpLocalPeer(ctx, net); err != nil {
			return fmt.Errorf("network %q: %w", net.Name, err)
		}
	}

	if err := r.defineLibvirtNetwork(ctx, d, net); err != nil {
		return fmt.Errorf("network %q: %w", net.Name, err)
	}

	return nil
}

// checkNameConflicts implements spec §4.5 step 1.
func (r *Reconciler) checkNameConflicts(d *Discovery, net NetworkSpec) error {
	if l, ok := d.Links[net.TunnelName]; ok && l.LinkInfo.InfoKind != "vxlan" {
		return fmt.Errorf("tunnel name %q already exists as a non-vxlan link", net.TunnelName)
	}
	if l, ok := d.Links[net.BridgeName]; ok && l.LinkInfo.InfoKind != "bridge" {
		return fmt.Errorf("bridge name %q already exists as a non-bridge link", net.BridgeName)
	}
	return nil
}

// selectUnderlay implements spec §4.5 step 2.
func (r *Reconciler) selectUnderlay(d *Discovery, net NetworkSpec) (string, error) {
	endpoints := map[string]bool{}
	for _, ip := range net.EndpointIPs {
		endpoints[ip] = true
	}

	for ifname, link := range d.Links {
		for _, a := range link.AddrInfo {
			if endpoints[a.Local] {
				return ifname, nil
			}
		}
	}
	return "", fmt.Errorf("no local link has an address in endpoint_ips")
}

func underlayLocalIP(d *Discovery, underlay string) string {
	link, ok := d.Links[underlay]
	if !ok {
		return ""
	}
	for _, a := range link.AddrInfo {
		if a.Family == "inet" {
			return a.Local
		}
	}
	return ""
}

// teardown implements spec §4.5 step 3.
func (r *Reconciler) teardown(ctx context.Context, net NetworkSpec) error {
	for _, name := range []string{net.TunnelName, net.BridgeName, net.LocalPeer} {
		if name == "" {
			continue
		}
		// Best-effort: the link may not exist yet, which is fine.
		_, _ = r.Runner.Run(ctx, r.LogDir, "teardown-"+name, "ip", "link", "del", name)
	}
	return nil
}

// setUpLocalPeer implements spec §4.5 step 8: create a veth pair,
// enslave the blade-side peer under the bridge, bring both up, assign
// the blade CIDR to the interface side.
func (r *Reconciler) setUpLocalPeer(ctx context.Context, net NetworkSpec) error {
	if _, err := r.Runner.Run(ctx, r.LogDir, "veth-add-"+net.LocalPeer, "ip", "link", "add",
		net.LocalPeer, "type", "veth", "peer", "name", net.LocalInterface); err != nil {
		return fmt.Errorf("creating veth pair %s/%s: %w", net.LocalPeer, net.LocalInterface, err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "veth-enslave-"+net.LocalPeer, "ip", "link", "set",
		net.LocalPeer, "master", net.BridgeName); err != nil {
		return fmt.Errorf("enslaving %s under bridge: %w", net.LocalPeer, err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "veth-up-"+net.LocalPeer, "ip", "link", "set",
		net.LocalPeer, "up"); err != nil {
		return fmt.Errorf("bringing %s up: %w", net.LocalPeer, err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "veth-up-"+net.LocalInterface, "ip", "link", "set",
		net.LocalInterface, "up"); err != nil {
		return fmt.Errorf("bringing %s up: %w", net.LocalInterface, err)
	}
	if net.LocalCIDR != "" {
		if _, err := r.Runner.Run(ctx, r.LogDir, "veth-addr-"+net.LocalInterface, "ip", "addr", "add",
			net.LocalCIDR, "dev", net.LocalInterface); err != nil {
			return fmt.Errorf("assigning %s to %s: %w", net.LocalCIDR, net.LocalInterface, err)
		}
	}
	return nil
}

// defineLibvirtNetwork implements spec §4.5 step 9.
func (r *Reconciler) defineLibvirtNetwork(ctx context.Context, d *Discovery, net NetworkSpec) error {
	if d.LibvirtNets[net.Name] {
		if _, err := r.Runner.Run(ctx, r.LogDir, "virsh-net-destroy-"+net.Name, "virsh", "net-destroy", net.Name); err != nil {
			return fmt.Errorf("removing existing libvirt network: %w", err)
		}
		if _, err := r.Runner.Run(ctx, r.LogDir, "virsh-net-undefine-"+net.Name, "virsh", "net-undefine", net.Name); err != nil {
			return fmt.Errorf("undefining existing libvirt network: %w", err)
		}
	}

	xml := libvirtNetworkXML(net)
	xmlPath := r.LogDir + "/" + net.Name + "-network.xml"
	if err := writeFile(xmlPath, xml); err != nil {
		return fmt.Errorf("writing libvirt network XML: %w", err)
	}

	if _, err := r.Runner.Run(ctx, r.LogDir, "virsh-net-define-"+net.Name, "virsh", "net-define", xmlPath); err != nil {
		return fmt.Errorf("defining libvirt network: %w", err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "virsh-net-start-"+net.Name, "virsh", "net-start", net.Name); err != nil {
		return fmt.Errorf("starting libvirt network: %w", err)
	}
	if _, err := r.Runner.Run(ctx, r.LogDir, "virsh-net-autostart-"+net.Name, "virsh", "net-autostart", net.Name); err != nil {
		return fmt.Errorf("marking libvirt network autostart: %w", err)
	}
	return nil
}

func libvirtNetworkXML(net NetworkSpec) string {
	return fmt.Sprintf(`<network>
  <name>%s</name>
  <forward mode="bridge"/>
  <bridge name="%s"/>
</network>
`, net.Name, net.BridgeName)
}
