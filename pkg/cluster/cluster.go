// Package cluster wires together PlanBuilder, BladeFanout, and the
// Provider boundary into the four public lifecycle operations spec §4.1
// names: prepare, validate, deploy, remove — plus the read-only
// VirtualNodes/VirtualNetworks query API. Grounded on lxd-migrate/main.go's
// shape of a small orchestration core calling through a handful of
// narrow collaborators, each operation failing loudly and leaving nothing
// half-done.
package cluster

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/fanout"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/plan"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/provider"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/vmbuilder"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// SSHKeysSubdir is the build-directory subdirectory holding one generated
// keypair per node class, uploaded to every blade by deploy() (spec
// §4.2's "node_ssh_key_secret/paths").
const SSHKeysSubdir = "ssh_keys"

// Cluster is the controller-side core: the single entry point the CLI and
// any embedding caller drive through prepare -> validate -> deploy, or
// prepare -> remove.
type Cluster struct {
	Config   *config.ClusterConfig
	Provider provider.Provider
	Runner   subprocess.Runner
	LogDir   string

	// AgentBinaryPath is the local path to the compiled blade-agent
	// binary, copied to every blade by deploy() (spec §4.3 step 3).
	AgentBinaryPath string

	plan     *plan.Plan
	planPath string
}

// New builds a Cluster ready to run Prepare.
func New(cfg *config.ClusterConfig, p provider.Provider, runner subprocess.Runner, logDir, agentBinaryPath string) *Cluster {
	return &Cluster{Config: cfg, Provider: p, Runner: runner, LogDir: logDir, AgentBinaryPath: agentBinaryPath}
}

// sshKeysDir is where per-node-class keypairs are generated and staged
// for upload.
func (c *Cluster) sshKeysDir() string {
	return filepath.Join(c.Config.BuildDir, SSHKeysSubdir)
}

// Prepare expands the configuration into a fully-materialized Plan,
// generates each node class's SSH keypair, and serializes the plan to
// Config.BuildDir. Must precede Validate, Deploy, and Remove (spec §4.2,
// §4.1's "prepare() must precede the others").
func (c *Cluster) Prepare(ctx context.Context) error {
	tmpl, err := plan.LoadXMLTemplate(c.Config.VMXMLTemplatePath)
	if err != nil {
		return fmt.Errorf("loading VM XML template: %w", err)
	}

	p, err := plan.Build(c.Config, c.Provider, c.Provider, tmpl)
	if err != nil {
		return fmt.Errorf("building plan: %w", err)
	}
	c.plan = p

	if err := c.generateNodeSSHKeys(ctx); err != nil {
		return fmt.Errorf("generating node ssh keys: %w", err)
	}

	path, err := p.WriteTo(c.Config.BuildDir)
	if err != nil {
		return fmt.Errorf("serializing plan: %w", err)
	}
	c.planPath = path

	logger.Info("plan prepared", logger.Ctx{
		"node_classes": len(p.NodeClasses), "networks": len(p.Networks), "plan_path": path,
	})
	return nil
}

func (c *Cluster) requirePrepared() error {
	if c.plan == nil {
		return fmt.Errorf("cluster: prepare() must be called before this operation")
	}
	return nil
}

// Validate checks the prepared plan against spec §7's invariants: MAC
// address length/format per interface, and well-formed host-blade
// capacity, beyond what config.Validate already enforces on the raw
// configuration.
func (c *Cluster) Validate() error {
	if err := c.requirePrepared(); err != nil {
		return err
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}

	for name, nc := range c.plan.NodeClasses {
		if !nc.PureBaseClass && nc.HostBlade.InstanceCapacity <= 0 {
			return fmt.Errorf("node class %q: host_blade.instance_capacity must be > 0", name)
		}

		for slot, iface := range nc.NetworkInterfaces {
			block, ok := iface.AddrInfo[config.FamilyPacket]
			if !ok {
				continue
			}
			if len(block.Addresses) < nc.NodeCount {
				return fmt.Errorf("node class %q interface %q: %d MAC addresses, need >= %d node_count",
					name, slot, len(block.Addresses), nc.NodeCount)
			}
			for _, mac := range block.Addresses {
				if err := validateMAC(mac); err != nil {
					return fmt.Errorf("node class %q interface %q: %w", name, slot, err)
				}
			}
		}
	}
	return nil
}

func validateMAC(mac string) error {
	if len(mac) != 17 || !strings.HasPrefix(mac, "52:54:00") {
		return fmt.Errorf("invalid MAC %q: expected xx:xx:xx:xx:xx:xx with prefix 52:54:00", mac)
	}
	return nil
}

// Deploy fans the prepared plan out to every blade: SSH keys, plan YAML,
// agent binary, then agent invocation (spec §4.3).
func (c *Cluster) Deploy(ctx context.Context) error {
	if err := c.requirePrepared(); err != nil {
		return err
	}

	f := &fanout.Fanout{
		Provider:           c.Provider,
		LocalSSHKeysDirFor: func(string) string { return c.sshKeysDir() },
		LocalPlanPath:      c.planPath,
		LocalAgentPath:     c.AgentBinaryPath,
	}
	return f.Run(ctx)
}

// Remove tears down every in-scope libvirt domain and network device
// this cluster owns on every blade, reusing the same
// never-early-cancel/aggregate-every-failure fan-out as Deploy (spec
// §4.1's remove() and §5's "each run is idempotent reconciliation").
func (c *Cluster) Remove(ctx context.Context) error {
	if err := c.requirePrepared(); err != nil {
		return err
	}

	conns, err := c.Provider.SSHConnectBlades(ctx)
	if err != nil {
		return fmt.Errorf("opening blade SSH connections: %w", err)
	}

	return fanout.ForEach(ctx, conns, "remove", func(ctx context.Context, bc provider.BladeConn) error {
		cmd := c.teardownCommand(bc.BladeClass(), bc.BladeInstance())
		if cmd == "" {
			return nil
		}
		_, stderr, err := bc.RunCommand(ctx, cmd, true)
		if err != nil {
			return fmt.Errorf("tearing down blade %s/%d: %w (stderr=%s)", bc.BladeClass(), bc.BladeInstance(), err, stderr)
		}
		return nil
	})
}

// teardownCommand renders the best-effort virsh destroy/undefine and
// device-removal shell line for every hostname and overlay device this
// blade instance hosts, matching the blade agent's own reconcile
// semantics ("destroyed and undefined before being recreated" — spec §5)
// run in reverse without the recreate.
func (c *Cluster) teardownCommand(bladeClass string, bladeInstance int) string {
	var parts []string

	for _, className := range classNamesForBlade(c.plan, bladeClass) {
		nc := c.plan.NodeClasses[className]
		start, end := vmbuilder.InstanceRange(nc.NodeCount, nc.HostBlade.InstanceCapacity, bladeInstance)
		for instance := start; instance < end; instance++ {
			hostname := vmbuilder.Hostname(nc, instance)
			parts = append(parts, fmt.Sprintf("virsh destroy %s", hostname))
			parts = append(parts, fmt.Sprintf("virsh undefine %s", hostname))
		}
	}

	for _, name := range networkNamesForBlade(c.plan, bladeClass) {
		net := c.plan.Networks[name]
		parts = append(parts, fmt.Sprintf("ip link delete %s", net.Devices.Tunnel))
		parts = append(parts, fmt.Sprintf("ip link delete %s", net.Devices.BridgeName))
		parts = append(parts, fmt.Sprintf("virsh net-destroy %s", net.NetworkName))
		parts = append(parts, fmt.Sprintf("virsh net-undefine %s", net.NetworkName))
	}

	if len(parts) == 0 {
		return ""
	}
	// every step is best-effort: a device or domain that was never
	// created (or already gone) must not fail the whole teardown.
	for i, p := range parts {
		parts[i] = "(" + p + " || true)"
	}
	return strings.Join(parts, "; ")
}
