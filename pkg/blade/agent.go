// Package blade implements the blade-agent run order (spec §4's phase
// sequence and §5's ordering guarantee): network reconcile, DHCP
// bringup, then node reconcile/create, strictly in that order so a node
// never comes up before its overlay network exists. Grounded on
// lxd-agent's daemon main-loop composition, which wires its subsystems up
// in a fixed start order before serving requests.
package blade

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/dhcp"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/netrecon"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/vmbuilder"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// Input is the fully-loaded plan plus this blade's identity, the shape
// `deploy_to_blade` assembles before calling Run (spec §6's agent CLI
// contract).
type Input struct {
	Plan          *config.ClusterConfig
	BladeClass    string
	BladeInstance int
	VNIs          map[string]int // network name -> VXLAN VNI (tunnel_id)
	LocalPeers    map[string]netrecon.NetworkSpec // network name -> blade-side peer override, if any

	HostBladeBridge string
	HostBladeCIDR   string

	// KeaConfigPath overrides where the rendered Kea config is written;
	// defaults to dhcp.ConfigPath when empty.
	KeaConfigPath string

	// VMBaseDir overrides vmbuilder.DefaultBaseDir; PasswdDir overrides
	// where per-node root-password files are written. Both default when
	// empty (spec §4.6 "Directories").
	VMBaseDir string
	PasswdDir string

	Runner subprocess.Runner
	LogDir string
}

// Run executes the strictly-ordered agent phases against Input (spec §5
// "The agent phases are strictly ordered").
func Run(ctx context.Context, in Input) error {
	networks := inScopeNetworks(in.Plan, in.BladeClass)

	if err := reconcileNetworks(ctx, in, networks); err != nil {
		return fmt.Errorf("network reconcile: %w", err)
	}

	if err := bringUpDHCP(ctx, in); err != nil {
		return fmt.Errorf("DHCP bringup: %w", err)
	}

	if err := buildNodes(ctx, in); err != nil {
		return fmt.Errorf("node reconcile/create: %w", err)
	}

	return nil
}

// inScopeNetworks returns the networks at least one node class hosted on
// bladeClass connects to (spec §4.5 "Inputs").
func inScopeNetworks(plan *config.ClusterConfig, bladeClass string) []string {
	seen := map[string]bool{}
	for _, nc := range plan.NodeClasses {
		if nc.HostBlade.BladeClass != bladeClass {
			continue
		}
		for _, iface := range nc.NetworkInterfaces {
			if iface.ClusterNetwork != "" {
				seen[iface.ClusterNetwork] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func reconcileNetworks(ctx context.Context, in Input, networkNames []string) error {
	if len(networkNames) == 0 {
		return nil
	}

	d, err := netrecon.Discover(ctx, in.Runner, in.LogDir)
	if err != nil {
		return fmt.Errorf("discovering current network state: %w", err)
	}

	r := &netrecon.Reconciler{Runner: in.Runner, LogDir: in.LogDir}

	for _, name := range networkNames {
		net, ok := in.Plan.Networks[name]
		if !ok {
			return fmt.Errorf("network %q is in scope but not present in the plan", name)
		}

		spec := netrecon.NetworkSpec{
			Name:        name,
			TunnelName:  net.Devices.Tunnel,
			BridgeName:  net.Devices.BridgeName,
			VNI:         in.VNIs[name],
			EndpointIPs: net.EndpointIPs,
		}
		if peer, ok := in.LocalPeers[name]; ok {
			spec.LocalPeer = peer.LocalPeer
			spec.LocalInterface = peer.LocalInterface
			spec.LocalCIDR = peer.LocalCIDR
		}

		logger.Info("reconciling network", logger.Ctx{"network": name, "blade_class": in.BladeClass, "blade_instance": in.BladeInstance})
		if err := r.Reconcile(ctx, d, spec); err != nil {
			return err
		}
	}
	return nil
}

func bringUpDHCP(ctx context.Context, in Input) error {
	hosted, err := dhcp.SelectHostedNetworks(in.Plan, in.BladeClass, in.BladeInstance)
	if err != nil {
		return fmt.Errorf("selecting DHCP-hosted networks: %w", err)
	}
	if len(hosted) == 0 {
		return nil
	}

	raw, err := dhcp.Render(hosted)
	if err != nil {
		return fmt.Errorf("rendering Kea config: %w", err)
	}

	path := in.KeaConfigPath
	if path == "" {
		path = dhcp.ConfigPath
	}
	if err := writeFile(path, raw); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return dhcp.Activate(ctx, in.Runner, in.LogDir)
}

func buildNodes(ctx context.Context, in Input) error {
	b := &vmbuilder.Builder{
		Runner:          in.Runner,
		LogDir:          in.LogDir,
		Networks:        in.Plan.Networks,
		HostBladeBridge: in.HostBladeBridge,
		HostBladeCIDR:   in.HostBladeCIDR,
		BaseDir:         in.VMBaseDir,
		PasswdDir:       in.PasswdDir,
	}

	names := make([]string, 0, len(in.Plan.NodeClasses))
	for name, nc := range in.Plan.NodeClasses {
		if nc.HostBlade.BladeClass == in.BladeClass {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		nc := in.Plan.NodeClasses[name]
		if err := b.BuildClass(ctx, name, nc, in.BladeInstance); err != nil {
			return fmt.Errorf("node class %q: %w", name, err)
		}
	}
	return nil
}
