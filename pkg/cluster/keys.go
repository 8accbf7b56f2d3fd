package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
)

// nodeKeyFile is the private key filename generated per node class; its
// ".pub" counterpart is the public key.
const nodeKeyFile = "id_ed25519"

// generateNodeSSHKeys creates one ed25519 keypair per materialized node
// class under sshKeysDir()/<class>/, skipping classes that already have a
// keypair so repeated prepare() calls are idempotent.
func (c *Cluster) generateNodeSSHKeys(ctx context.Context) error {
	for className := range c.plan.NodeClasses {
		dir := filepath.Join(c.sshKeysDir(), className)
		priv := filepath.Join(dir, nodeKeyFile)

		if _, err := os.Stat(priv); err == nil {
			continue
		}

		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating ssh key directory %s: %w", dir, err)
		}

		logger.Info("generating node class ssh keypair", logger.Ctx{"node_class": className, "dir": dir})
		if _, err := c.Runner.Run(ctx, c.LogDir, "ssh-keygen-"+className, "ssh-keygen",
			"-t", "ed25519", "-f", priv, "-N", "", "-C", "vtds-"+className); err != nil {
			return fmt.Errorf("generating ssh keypair for %s: %w", className, err)
		}
	}
	return nil
}

// NodeSSHKeyPaths returns the (public, private) key file paths generated
// for class (spec §4.1's "node_ssh_key_secret/paths(class)").
func (c *Cluster) NodeSSHKeyPaths(class string) (pub string, priv string, err error) {
	if err := c.requirePrepared(); err != nil {
		return "", "", err
	}
	if _, ok := c.plan.NodeClasses[class]; !ok {
		return "", "", fmt.Errorf("unknown node class %q", class)
	}
	priv = filepath.Join(c.sshKeysDir(), class, nodeKeyFile)
	pub = priv + ".pub"
	return pub, priv, nil
}
