// Command vtds-cluster-kvm is the controller-side CLI: thin cobra glue
// over pkg/cluster's prepare/validate/deploy/remove operations (spec §6's
// controller CLI, kept deliberately trivial per spec §1). Grounded on
// lxd-migrate/main.go's single-purpose-cobra-root-plus-subcommands shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/cluster"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/provider"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

type cmdGlobal struct {
	flagConfig    string
	flagFleet     string
	flagAgentPath string
	flagLogDir    string
}

// prepared loads the cluster configuration and blade fleet, builds a
// Cluster, and runs Prepare — every subcommand needs a freshly prepared
// plan since each CLI invocation is a separate process (spec §4.1's
// "prepare() must precede the others").
func (g *cmdGlobal) prepared(cmd *cobra.Command) (*cluster.Cluster, error) {
	cfg, err := config.Load(g.flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}

	fleet, err := provider.LoadStaticFleet(g.flagFleet)
	if err != nil {
		return nil, fmt.Errorf("loading blade fleet: %w", err)
	}

	c := cluster.New(cfg, &provider.StaticProvider{Fleet: fleet}, subprocess.Real{}, g.flagLogDir, g.flagAgentPath)
	if err := c.Prepare(cmd.Context()); err != nil {
		return nil, fmt.Errorf("preparing plan: %w", err)
	}
	return c, nil
}

func main() {
	global := &cmdGlobal{}

	root := &cobra.Command{
		Use:           "vtds-cluster-kvm",
		Short:         "Deploy a virtual test cluster onto a fleet of KVM hypervisor blades",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&global.flagConfig, "config", "cluster.yaml", "Path to the cluster configuration YAML")
	root.PersistentFlags().StringVar(&global.flagFleet, "fleet", "fleet.yaml", "Path to the blade fleet description YAML")
	root.PersistentFlags().StringVar(&global.flagAgentPath, "agent", "vtds-blade-agent", "Path to the compiled blade-agent binary")
	root.PersistentFlags().StringVar(&global.flagLogDir, "log-dir", "", "Directory for per-operation subprocess logs")

	root.AddCommand(
		cmdPrepare(global),
		cmdValidate(global),
		cmdDeploy(global),
		cmdRemove(global),
	)

	if err := root.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func cmdPrepare(g *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Expand the configuration into a per-blade plan and serialize it",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := g.prepared(cmd)
			return err
		},
	}
}

func cmdValidate(g *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the prepared plan against the configuration's invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.prepared(cmd)
			if err != nil {
				return err
			}
			return c.Validate()
		},
	}
}

func cmdDeploy(g *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Fan the prepared plan out to every blade and run the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.prepared(cmd)
			if err != nil {
				return err
			}
			return c.Deploy(cmd.Context())
		},
	}
}

func cmdRemove(g *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Tear down every in-scope virtual node and network device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.prepared(cmd)
			if err != nil {
				return err
			}
			return c.Remove(cmd.Context())
		},
	}
}
