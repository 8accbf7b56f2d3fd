// Package provider defines the narrow external "provider API" boundary
// (spec §6): blade creation, blade SSH endpoints, and blade IP lookups are
// someone else's problem. This module only ever calls through this
// interface and never constructs blade transport itself, mirroring
// lxd/cluster/cluster_link.go's pattern of keeping remote addressing
// behind a narrow interface the caller never touches directly.
package provider

import "context"

// BladeConn is one open connection to a blade, as handed back by
// SSHConnectBlades. Spec §4.3 only needs copy + remote-exec primitives.
type BladeConn interface {
	// BladeClass is the class of the blade this connection targets.
	BladeClass() string
	// BladeInstance is the per-class instance index of the blade.
	BladeInstance() int
	// SSHKeyPaths returns the (public, private) key file paths this
	// blade class's SSH key pair lives at.
	SSHKeyPaths() (pub string, priv string)
	// CopyTo uploads localPath to remotePath on the blade.
	CopyTo(ctx context.Context, localPath, remotePath string) error
	// RunCommand runs command on the blade and returns its stdout and
	// stderr. If blocking is false, the call returns once the command has
	// been launched without waiting for completion (spec §4.3's
	// non-blocking remote command launch).
	RunCommand(ctx context.Context, command string, blocking bool) (stdout, stderr string, err error)
}

// Provider is the external collaborator this module calls through (spec
// §6). It never does any deploying itself.
type Provider interface {
	// BladeClasses returns the names of all blade classes in the fleet.
	BladeClasses() []string
	// BladeCount returns how many blade instances exist of class.
	BladeCount(class string) int
	// BladeIP returns the underlay IP of (class, instance) on the named
	// interconnect.
	BladeIP(class string, instance int, interconnect string) (string, error)
	// SSHConnectBlades opens one connection per blade and returns them;
	// callers are expected to use the returned slice only within the
	// lifetime of ctx (context-managed resource, spec §6).
	SSHConnectBlades(ctx context.Context) ([]BladeConn, error)
	// GetBladePythonExecutable returns the path to the Python interpreter
	// blades should use to run the agent (retained from the original
	// Python agent's invocation contract; the Go agent binary does not
	// need an interpreter, but the provider boundary is preserved for
	// parity with spec §6).
	GetBladePythonExecutable() string
	// BladeSSHEndpoint returns the local SSH forwarding endpoint
	// (address, port, private key path) used to reach class/instance,
	// needed by NodeConnectionPool (spec §4.4 step 2-3).
	BladeSSHEndpoint(class string, instance int) (BladeSSHEndpoint, error)
}

// BladeSSHEndpoint describes how to reach a blade over SSH for the purpose
// of opening a further local forward into one of its guests.
type BladeSSHEndpoint struct {
	LocalIP    string
	Port       int
	PrivateKey string
}
