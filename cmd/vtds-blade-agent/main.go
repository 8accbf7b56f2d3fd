// Command vtds-blade-agent is the blade-local agent binary invoked by the
// controller's fan-out: `deploy_to_blade {blade_class} {blade_instance}
// {config_yaml_path} {ssh_keys_dir}` (spec §6). A malformed invocation is
// a usage error (prints usage, exits 1, before any reconciliation
// begins); a failure during reconciliation is a contextual error (wrapped
// with the failing subprocess's log paths, logged as ERROR:, exits 1) —
// the UsageError/ContextualError distinction the original Python agent
// drew (SPEC_FULL.md §C.2).
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/blade"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/netrecon"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

const usage = "usage: vtds-blade-agent deploy_to_blade {blade_class} {blade_instance} {config_yaml_path} {ssh_keys_dir}"

func usageError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, usage)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 6 || os.Args[1] != "deploy_to_blade" {
		usageError("ERROR: wrong number of arguments or unknown subcommand")
	}

	bladeClass := os.Args[2]
	bladeInstance, err := strconv.Atoi(os.Args[3])
	if err != nil {
		usageError("ERROR: blade_instance %q is not an integer", os.Args[3])
	}
	configPath := os.Args[4]
	sshKeysDir := os.Args[5]

	plan, err := loadPlan(configPath)
	if err != nil {
		logger.Fatal("loading blade plan failed", logger.Ctx{"error": err, "path": configPath})
	}

	in := blade.Input{
		Plan:          plan,
		BladeClass:    bladeClass,
		BladeInstance: bladeInstance,
		Runner:        subprocess.Real{},
		LogDir:        "/var/log/vtds-blade-agent",
	}
	if hb := plan.HostBladeNetwork; hb != nil {
		in.HostBladeBridge = hb.BridgeDevice
		in.HostBladeCIDR = hb.CIDR
	}
	in.VNIs, in.LocalPeers = deriveNetworkParams(plan)

	logger.Info("deploying to blade", logger.Ctx{
		"blade_class": bladeClass, "blade_instance": bladeInstance, "ssh_keys_dir": sshKeysDir,
	})

	if err := blade.Run(context.Background(), in); err != nil {
		logger.Fatal("deploy_to_blade failed", logger.Ctx{"error": err})
	}
}

// loadPlan decodes the controller-serialized blade_core_config.yaml
// directly into a ClusterConfig: the plan's node_classes/networks are
// already in their final, typed shape by the time the agent sees them, so
// this skips pkg/config's permissive map->mapstructure decode (that path
// exists for hand-authored user configuration, not machine-written
// output).
func loadPlan(path string) (*config.ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg config.ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// deriveNetworkParams builds the per-network VNI and blade-local-peer
// inputs pkg/blade needs from the networks embedded in the plan.
func deriveNetworkParams(cfg *config.ClusterConfig) (map[string]int, map[string]netrecon.NetworkSpec) {
	vnis := map[string]int{}
	peers := map[string]netrecon.NetworkSpec{}

	names := make([]string, 0, len(cfg.Networks))
	for name := range cfg.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		net := cfg.Networks[name]
		vnis[name] = net.TunnelID

		if net.Devices.Local == nil {
			continue
		}
		spec := netrecon.NetworkSpec{
			LocalPeer:      net.Devices.Local.Peer,
			LocalInterface: net.Devices.Local.Interface,
		}
		if l3, ok := net.L3Configs[config.FamilyInet]; ok {
			spec.LocalCIDR = l3.CIDR
		}
		peers[name] = spec
	}

	return vnis, peers
}
