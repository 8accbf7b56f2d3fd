// Package fanout implements BladeFanout (spec §4.3): the controller-side
// parallel SSH push of the plan and blade-agent to every blade, with a
// join barrier aggregating every failing blade's error rather than just
// the first. Grounded on lxd/cluster/cluster_link.go's
// errgroup.WithContext fan-out, layered with hashicorp/go-multierror
// because plain errgroup.Wait() only surfaces the first error and spec
// §7 requires the aggregate to name every failing blade.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/provider"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
)

// AgentName is the filename the blade-agent script/binary is copied to
// under /root on every blade (spec §4.3 step 3).
const AgentName = "vtds-blade-agent"

// RemotePlanPath is where the plan YAML lands on every blade.
const RemotePlanPath = "/root/blade_cluster_config.yaml"

// RemoteSSHKeysDir is where each blade's SSH key directory lands.
const RemoteSSHKeysDir = "/root/ssh_keys"

// BladeError names one blade's failure during a fan-out operation,
// carrying whatever log output is available (spec §7's "contextual errors
// carry the failing operation's log paths").
type BladeError struct {
	BladeClass    string
	BladeInstance int
	Op            string
	Stdout        string
	Stderr        string
	Err           error
}

func (e *BladeError) Error() string {
	return fmt.Sprintf("blade %s/%d: %s: %v", e.BladeClass, e.BladeInstance, e.Op, e.Err)
}

func (e *BladeError) Unwrap() error { return e.Err }

// Fanout pushes a deploy to every blade connection returned by
// provider.SSHConnectBlades: SSH keys, the plan YAML, and the agent
// script, then launches the agent, per spec §4.3 steps 1-4.
type Fanout struct {
	Provider     provider.Provider
	LocalSSHKeysDirFor func(bladeClass string) string
	LocalPlanPath      string
	LocalAgentPath     string
}

// Run executes the full fan-out against every blade: key upload, plan
// upload, agent upload, then agent invocation, each stage a parallel
// fan-out with a join barrier (spec §4.3's "Parallelism"). It stops after
// the first stage in which any blade fails and returns that stage's error,
// which wraps a *multierror.Error (via hashicorp/go-multierror) naming
// every blade that failed that stage.
func (f *Fanout) Run(ctx context.Context) error {
	conns, err := f.Provider.SSHConnectBlades(ctx)
	if err != nil {
		return fmt.Errorf("opening blade SSH connections: %w", err)
	}

	if err := f.fanOut(ctx, conns, "copy ssh keys", func(c context.Context, bc provider.BladeConn) error {
		return bc.CopyTo(c, f.LocalSSHKeysDirFor(bc.BladeClass()), RemoteSSHKeysDir)
	}); err != nil {
		return err
	}

	if err := f.fanOut(ctx, conns, "copy plan", func(c context.Context, bc provider.BladeConn) error {
		return bc.CopyTo(c, f.LocalPlanPath, RemotePlanPath)
	}); err != nil {
		return err
	}

	remoteAgent := "/root/" + AgentName
	if err := f.fanOut(ctx, conns, "copy agent", func(c context.Context, bc provider.BladeConn) error {
		return bc.CopyTo(c, f.LocalAgentPath, remoteAgent)
	}); err != nil {
		return err
	}

	return f.fanOut(ctx, conns, "run agent", func(c context.Context, bc provider.BladeConn) error {
		cmd := fmt.Sprintf(
			"chmod 755 %s; %s deploy_to_blade %s %d %s %s",
			remoteAgent, remoteAgent, bc.BladeClass(), bc.BladeInstance(), RemotePlanPath, RemoteSSHKeysDir,
		)
		stdout, stderr, err := bc.RunCommand(c, cmd, true)
		if err != nil {
			return &BladeError{
				BladeClass:    bc.BladeClass(),
				BladeInstance: bc.BladeInstance(),
				Op:            "run agent",
				Stdout:        stdout,
				Stderr:        stderr,
				Err:           err,
			}
		}
		return nil
	})
}

// fanOut runs op against every connection in parallel and joins on an
// errgroup, aggregating every failure into a single *multierror.Error
// instead of returning only the first (spec §4.3, §7).
func (f *Fanout) fanOut(ctx context.Context, conns []provider.BladeConn, op string, fn func(context.Context, provider.BladeConn) error) error {
	return ForEach(ctx, conns, op, fn)
}

// ForEach runs fn against every connection in parallel and joins on an
// errgroup, aggregating every failure into a single *multierror.Error
// instead of returning only the first (spec §4.3, §7). Exported so other
// controller-side operations (e.g. remove()) that need the same
// never-early-cancel, aggregate-every-failure fan-out can reuse it
// instead of duplicating the join logic.
func ForEach(ctx context.Context, conns []provider.BladeConn, op string, fn func(context.Context, provider.BladeConn) error) error {
	g, gctx := errgroup.WithContext(ctx)

	results := make(chan error, len(conns))
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			err := fn(gctx, conn)
			if err != nil {
				logger.Error("blade fan-out operation failed", logger.Ctx{
					"op": op, "blade_class": conn.BladeClass(), "blade_instance": conn.BladeInstance(), "error": err,
				})
				results <- fmt.Errorf("blade %s/%d: %w", conn.BladeClass(), conn.BladeInstance(), err)
				return nil
			}
			results <- nil
			return nil
		})
	}

	// errgroup.Wait only ever needed to join the goroutines here; the
	// per-blade errors themselves are collected from results so that one
	// failing blade never cancels or hides another's outcome.
	_ = g.Wait()
	close(results)

	var merr *multierror.Error
	for err := range results {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		return fmt.Errorf("%s: %w", op, merr.ErrorOrNil())
	}
	return nil
}

// WithTimeout wraps ctx with a deadline appropriate for one fan-out
// operation, used by callers ahead of Run/fanOut to honor spec §4.3's
// "A timeout may be supplied per operation" without baking a fixed
// duration into this package.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
