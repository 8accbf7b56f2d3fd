// Package nodepool implements NodeConnectionPool (spec §4.4): on-demand
// local TCP tunnels from the controller host, through a blade's SSH
// endpoint, to a guest port on a virtual node. Grounded on spec §4.4's
// literal ssh -L contract and on
// other_examples/209ab143_steiler-containerlab__cmd-deploy.go.go's
// worker/retry shape for orchestrating an external long-running process.
package nodepool

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/provider"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
)

// PortPollInterval and PortPollAttempts bound step 4's readiness poll:
// up to 60 one-second retries on connection-refused (spec §4.4 step 4).
const (
	PortPollInterval = time.Second
	PortPollAttempts = 60

	// SSHRestartAttempts and SSHRestartBackoff bound step 4's ssh-process
	// restart loop: up to 10 restarts with a 10-second backoff.
	SSHRestartAttempts = 10
	SSHRestartBackoff  = 10 * time.Second
)

// NodeLocator resolves which blade hosts a given node-class instance.
type NodeLocator interface {
	// InstanceCapacity returns the per-blade node instance capacity for
	// class, used for the instance/instance_capacity integer division
	// that finds the hosting blade (spec §4.4 step 2).
	InstanceCapacity(class string) int
}

// Pool opens tunnels to virtual nodes through their hosting blade's SSH
// endpoint.
type Pool struct {
	Provider provider.Provider
	Locator  NodeLocator
}

// Tunnel is one open local forward to a node's guest port. Close tears
// down the ssh process; the inner blade-side tunnel dies with it.
type Tunnel struct {
	LocalIP    string
	LocalPort  int
	RemotePort int

	cmd    *exec.Cmd
	mu     sync.Mutex
	closed bool
}

// Close kills the ssh process backing t, releasing the local port and the
// blade-side forward (spec §4.4 step 5).
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	return t.cmd.Process.Kill()
}

// freeLocalPort binds and immediately closes a loopback TCP listener to
// claim a free local port (spec §4.4 step 1).
func freeLocalPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("acquiring a free local port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Open establishes a tunnel from a fresh local loopback port to
// remotePort on the guest at nodeIP, hosted by (class, instance) (spec
// §4.4).
func (p *Pool) Open(ctx context.Context, class string, instance int, nodeIP string, remotePort int) (*Tunnel, error) {
	capacity := p.Locator.InstanceCapacity(class)
	if capacity <= 0 {
		return nil, fmt.Errorf("node class %q: instance_capacity must be > 0", class)
	}
	bladeInstance := instance / capacity

	endpoint, err := p.Provider.BladeSSHEndpoint(class, bladeInstance)
	if err != nil {
		return nil, fmt.Errorf("resolving SSH endpoint for blade hosting %s/%d: %w", class, instance, err)
	}

	localPort, err := freeLocalPort()
	if err != nil {
		return nil, err
	}

	tunnel := &Tunnel{LocalIP: "127.0.0.1", LocalPort: localPort, RemotePort: remotePort}

	var lastErr error
	for attempt := 0; attempt < SSHRestartAttempts; attempt++ {
		cmd, err := startSSHTunnel(ctx, localPort, nodeIP, remotePort, endpoint)
		if err != nil {
			lastErr = err
			logger.Warn("ssh tunnel launch failed, retrying", logger.Ctx{
				"node_class": class, "instance": instance, "attempt": attempt, "error": err,
			})
			time.Sleep(SSHRestartBackoff)
			continue
		}
		tunnel.cmd = cmd

		if err := pollPort(ctx, localPort, cmd); err != nil {
			lastErr = err
			_ = cmd.Process.Kill()
			logger.Warn("ssh tunnel did not become ready, restarting", logger.Ctx{
				"node_class": class, "instance": instance, "attempt": attempt, "error": err,
			})
			time.Sleep(SSHRestartBackoff)
			continue
		}

		return tunnel, nil
	}

	return nil, fmt.Errorf("opening tunnel to %s/%d after %d attempts: %w", class, instance, SSHRestartAttempts, lastErr)
}

// startSSHTunnel launches `ssh -L ...` per spec §4.4 step 3, with
// host-key checking disabled for the loopback forward.
func startSSHTunnel(ctx context.Context, localPort int, nodeIP string, remotePort int, endpoint provider.BladeSSHEndpoint) (*exec.Cmd, error) {
	args := []string{
		"-L", fmt.Sprintf("127.0.0.1:%d:%s:%d", localPort, nodeIP, remotePort),
		"-N",
		"-p", fmt.Sprintf("%d", endpoint.Port),
		"-i", endpoint.PrivateKey,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("root@%s", endpoint.LocalIP),
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ssh tunnel: %w", err)
	}
	return cmd, nil
}

// pollPort polls localPort until it accepts a connection or the ssh
// process exits, per spec §4.4 step 4.
func pollPort(ctx context.Context, localPort int, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	addr := fmt.Sprintf("127.0.0.1:%d", localPort)
	for attempt := 0; attempt < PortPollAttempts; attempt++ {
		select {
		case err := <-exited:
			return fmt.Errorf("ssh process exited before tunnel was ready: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(PortPollInterval)
	}
	return fmt.Errorf("tunnel on %s never became ready after %d attempts", addr, PortPollAttempts)
}
