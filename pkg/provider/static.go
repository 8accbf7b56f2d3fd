package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"gopkg.in/yaml.v2"
)

// StaticFleet describes a fixed set of directly SSH-reachable blades: the
// reference Provider implementation `cmd/vtds-cluster-kvm` uses when run
// standalone, rather than embedded behind a richer orchestration system
// (spec §6 treats the provider as an external collaborator; this is the
// simplest concrete one that satisfies the boundary). Loaded from YAML,
// grounded on the same "decode once into typed structs" shape as
// pkg/config.Load.
type StaticFleet struct {
	Blades           map[string][]StaticBlade `yaml:"blades"`
	PythonExecutable string                   `yaml:"python_executable"`
}

// StaticBlade is one blade instance's SSH connection details, and its
// underlay IP on each named interconnect.
type StaticBlade struct {
	Host          string            `yaml:"host"`
	Port          int               `yaml:"port"`
	User          string            `yaml:"user"`
	PrivateKey    string            `yaml:"private_key"`
	Interconnects map[string]string `yaml:"interconnects"`
}

// LoadStaticFleet reads and parses a StaticFleet document from path.
func LoadStaticFleet(path string) (*StaticFleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fleet file %s: %w", path, err)
	}
	var fleet StaticFleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("parsing fleet file %s: %w", path, err)
	}
	return &fleet, nil
}

// StaticProvider implements Provider directly over SSH/SCP subprocess
// calls, the same "no client library, just a fixed command-line contract"
// idiom as pkg/nodepool (spec §6, §4.4).
type StaticProvider struct {
	Fleet *StaticFleet
}

// BladeClasses implements Provider.
func (p *StaticProvider) BladeClasses() []string {
	names := make([]string, 0, len(p.Fleet.Blades))
	for name := range p.Fleet.Blades {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BladeCount implements Provider.
func (p *StaticProvider) BladeCount(class string) int {
	return len(p.Fleet.Blades[class])
}

func (p *StaticProvider) blade(class string, instance int) (StaticBlade, error) {
	blades, ok := p.Fleet.Blades[class]
	if !ok || instance < 0 || instance >= len(blades) {
		return StaticBlade{}, fmt.Errorf("no blade %s/%d in fleet", class, instance)
	}
	return blades[instance], nil
}

// BladeIP implements Provider.
func (p *StaticProvider) BladeIP(class string, instance int, interconnect string) (string, error) {
	b, err := p.blade(class, instance)
	if err != nil {
		return "", err
	}
	ip, ok := b.Interconnects[interconnect]
	if !ok {
		return "", fmt.Errorf("blade %s/%d has no address on interconnect %q", class, instance, interconnect)
	}
	return ip, nil
}

// GetBladePythonExecutable implements Provider.
func (p *StaticProvider) GetBladePythonExecutable() string {
	if p.Fleet.PythonExecutable == "" {
		return "/usr/bin/python3"
	}
	return p.Fleet.PythonExecutable
}

// BladeSSHEndpoint implements Provider.
func (p *StaticProvider) BladeSSHEndpoint(class string, instance int) (BladeSSHEndpoint, error) {
	b, err := p.blade(class, instance)
	if err != nil {
		return BladeSSHEndpoint{}, err
	}
	port := b.Port
	if port == 0 {
		port = 22
	}
	return BladeSSHEndpoint{LocalIP: b.Host, Port: port, PrivateKey: b.PrivateKey}, nil
}

// SSHConnectBlades implements Provider, opening a staticConn per blade
// instance. The connections are cheap (argv wrappers, not held sockets),
// so "opening" them is just resolving fleet data.
func (p *StaticProvider) SSHConnectBlades(_ context.Context) ([]BladeConn, error) {
	var conns []BladeConn
	for _, class := range p.BladeClasses() {
		for instance, b := range p.Fleet.Blades[class] {
			conns = append(conns, &staticConn{class: class, instance: instance, blade: b})
		}
	}
	return conns, nil
}

// staticConn is a BladeConn backed directly by ssh/scp subprocess calls.
type staticConn struct {
	class    string
	instance int
	blade    StaticBlade
}

func (c *staticConn) BladeClass() string    { return c.class }
func (c *staticConn) BladeInstance() int    { return c.instance }
func (c *staticConn) SSHKeyPaths() (string, string) {
	return c.blade.PrivateKey + ".pub", c.blade.PrivateKey
}

func (c *staticConn) user() string {
	if c.blade.User == "" {
		return "root"
	}
	return c.blade.User
}

func (c *staticConn) port() int {
	if c.blade.Port == 0 {
		return 22
	}
	return c.blade.Port
}

// CopyTo implements BladeConn via `scp`.
func (c *staticConn) CopyTo(ctx context.Context, localPath, remotePath string) error {
	args := []string{
		"-P", fmt.Sprintf("%d", c.port()),
		"-i", c.blade.PrivateKey,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		localPath,
		fmt.Sprintf("%s@%s:%s", c.user(), c.blade.Host, remotePath),
	}
	out, err := exec.CommandContext(ctx, "scp", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("scp to blade %s/%d failed: %w: %s", c.class, c.instance, err, out)
	}
	return nil
}

// RunCommand implements BladeConn via `ssh`.
func (c *staticConn) RunCommand(ctx context.Context, command string, blocking bool) (string, string, error) {
	args := []string{
		"-p", fmt.Sprintf("%d", c.port()),
		"-i", c.blade.PrivateKey,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("%s@%s", c.user(), c.blade.Host),
		command,
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)

	if !blocking {
		if err := cmd.Start(); err != nil {
			return "", "", fmt.Errorf("launching ssh command on blade %s/%d: %w", c.class, c.instance, err)
		}
		return "", "", nil
	}

	var stdout, stderr []byte
	stdout, err := cmd.Output()
	if exitErr, ok := err.(*exec.ExitError); ok {
		stderr = exitErr.Stderr
	}
	if err != nil {
		return string(stdout), string(stderr), fmt.Errorf("ssh command on blade %s/%d failed: %w", c.class, c.instance, err)
	}
	return string(stdout), string(stderr), nil
}
