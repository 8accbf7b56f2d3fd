package nodepool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"text/template"
)

// TemplateContext is the variable set exposed to copy_to/copy_from/
// run_command command-string templates (spec §4.4, "An SSH-capable
// variant").
type TemplateContext struct {
	NodeClass    string
	Instance     int
	NodeHostname string
	RemotePort   int
	LocalIP      string
	LocalPort    int
}

// SSHNode layers scp/ssh invocations on top of an open Tunnel, per spec
// §4.4's SSH-capable variant.
type SSHNode struct {
	Tunnel   *Tunnel
	NodeUser string
	Context  TemplateContext
}

func render(tmpl string, ctx TemplateContext) (string, error) {
	t, err := template.New("cmd").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing command template %q: %w", tmpl, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("rendering command template %q: %w", tmpl, err)
	}
	return buf.String(), nil
}

func (n *SSHNode) scpArgs(localPath string, remotePath string) []string {
	return []string{
		"-P", fmt.Sprintf("%d", n.Tunnel.LocalPort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		localPath,
		fmt.Sprintf("%s@%s:%s", n.NodeUser, n.Tunnel.LocalIP, remotePath),
	}
}

// CopyTo renders localPath/remotePath against n.Context and scps the
// result to the node, blocking or launching in the background per
// blocking.
func (n *SSHNode) CopyTo(ctx context.Context, localPath, remotePath string, blocking bool) error {
	local, err := render(localPath, n.Context)
	if err != nil {
		return err
	}
	remote, err := render(remotePath, n.Context)
	if err != nil {
		return err
	}
	return n.runSCP(ctx, n.scpArgs(local, remote), blocking)
}

// CopyFrom is CopyTo's inverse: remotePath on the node to localPath.
func (n *SSHNode) CopyFrom(ctx context.Context, remotePath, localPath string, blocking bool) error {
	local, err := render(localPath, n.Context)
	if err != nil {
		return err
	}
	remote, err := render(remotePath, n.Context)
	if err != nil {
		return err
	}
	args := []string{
		"-P", fmt.Sprintf("%d", n.Tunnel.LocalPort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("%s@%s:%s", n.NodeUser, n.Tunnel.LocalIP, remote),
		local,
	}
	return n.runSCP(ctx, args, blocking)
}

func (n *SSHNode) runSCP(ctx context.Context, args []string, blocking bool) error {
	cmd := exec.CommandContext(ctx, "scp", args...)
	if blocking {
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("scp failed: %w: %s", err, out)
		}
		return nil
	}
	return cmd.Start()
}

// RunCommand renders command against n.Context and runs it over ssh
// through the tunnel, blocking or launching in the background.
func (n *SSHNode) RunCommand(ctx context.Context, command string, blocking bool) (string, error) {
	rendered, err := render(command, n.Context)
	if err != nil {
		return "", err
	}

	args := []string{
		"-p", fmt.Sprintf("%d", n.Tunnel.LocalPort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("%s@%s", n.NodeUser, n.Tunnel.LocalIP),
		rendered,
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)

	if !blocking {
		if err := cmd.Start(); err != nil {
			return "", fmt.Errorf("launching ssh command: %w", err)
		}
		return "", nil
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("ssh command failed: %w: %s", err, out)
	}
	return string(out), nil
}
