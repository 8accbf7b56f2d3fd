package provider

import (
	"context"
	"fmt"
)

// Fake is an in-memory Provider for tests, grounded on the same
// "inject a fake collaborator at the boundary" idiom used throughout the
// pack's test files rather than standing up any real transport.
type Fake struct {
	Counts       map[string]int
	IPs          map[string]string // "class/instance/interconnect" -> ip
	Endpoints    map[string]BladeSSHEndpoint
	PythonExe    string
	Connections  []BladeConn
}

// NewFake builds an empty Fake provider.
func NewFake() *Fake {
	return &Fake{
		Counts:    map[string]int{},
		IPs:       map[string]string{},
		Endpoints: map[string]BladeSSHEndpoint{},
		PythonExe: "/usr/bin/python3",
	}
}

// BladeClasses implements Provider.
func (f *Fake) BladeClasses() []string {
	classes := make([]string, 0, len(f.Counts))
	for c := range f.Counts {
		classes = append(classes, c)
	}
	return classes
}

// BladeCount implements Provider.
func (f *Fake) BladeCount(class string) int { return f.Counts[class] }

// BladeIP implements Provider.
func (f *Fake) BladeIP(class string, instance int, interconnect string) (string, error) {
	key := fmt.Sprintf("%s/%d/%s", class, instance, interconnect)
	ip, ok := f.IPs[key]
	if !ok {
		return "", fmt.Errorf("fake provider: no IP registered for %s", key)
	}
	return ip, nil
}

// SSHConnectBlades implements Provider.
func (f *Fake) SSHConnectBlades(_ context.Context) ([]BladeConn, error) {
	return f.Connections, nil
}

// GetBladePythonExecutable implements Provider.
func (f *Fake) GetBladePythonExecutable() string { return f.PythonExe }

// BladeSSHEndpoint implements Provider.
func (f *Fake) BladeSSHEndpoint(class string, instance int) (BladeSSHEndpoint, error) {
	key := fmt.Sprintf("%s/%d", class, instance)
	ep, ok := f.Endpoints[key]
	if !ok {
		return BladeSSHEndpoint{}, fmt.Errorf("fake provider: no SSH endpoint registered for %s", key)
	}
	return ep, nil
}

// FakeConn is an in-memory BladeConn for tests.
type FakeConn struct {
	Class     string
	Instance  int
	Pub, Priv string
	Copies    []struct{ Local, Remote string }
	Commands  []string
	RunErr    error
	Stdout    string
	Stderr    string
}

// BladeClass implements BladeConn.
func (c *FakeConn) BladeClass() string { return c.Class }

// BladeInstance implements BladeConn.
func (c *FakeConn) BladeInstance() int { return c.Instance }

// SSHKeyPaths implements BladeConn.
func (c *FakeConn) SSHKeyPaths() (string, string) { return c.Pub, c.Priv }

// CopyTo implements BladeConn.
func (c *FakeConn) CopyTo(_ context.Context, local, remote string) error {
	c.Copies = append(c.Copies, struct{ Local, Remote string }{local, remote})
	return nil
}

// RunCommand implements BladeConn.
func (c *FakeConn) RunCommand(_ context.Context, command string, _ bool) (string, string, error) {
	c.Commands = append(c.Commands, command)
	return c.Stdout, c.Stderr, c.RunErr
}
