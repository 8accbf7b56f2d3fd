package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticFleet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	doc := `
blades:
  blade-a:
    - host: 10.0.0.1
      port: 2222
      user: root
      private_key: /keys/blade-a-0
      interconnects:
        mgmt: 192.168.1.1
    - host: 10.0.0.2
      private_key: /keys/blade-a-1
      interconnects:
        mgmt: 192.168.1.2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	fleet, err := LoadStaticFleet(path)
	require.NoError(t, err)
	require.Len(t, fleet.Blades["blade-a"], 2)
	assert.Equal(t, 2222, fleet.Blades["blade-a"][0].Port)
}

func TestStaticProvider_QueryMethods(t *testing.T) {
	p := &StaticProvider{Fleet: &StaticFleet{
		Blades: map[string][]StaticBlade{
			"blade-a": {
				{Host: "10.0.0.1", PrivateKey: "/keys/a0", Interconnects: map[string]string{"mgmt": "192.168.1.1"}},
				{Host: "10.0.0.2", PrivateKey: "/keys/a1", Interconnects: map[string]string{"mgmt": "192.168.1.2"}},
			},
			"blade-b": {
				{Host: "10.0.1.1", PrivateKey: "/keys/b0"},
			},
		},
	}}

	assert.Equal(t, []string{"blade-a", "blade-b"}, p.BladeClasses())
	assert.Equal(t, 2, p.BladeCount("blade-a"))
	assert.Equal(t, 0, p.BladeCount("unknown"))

	ip, err := p.BladeIP("blade-a", 1, "mgmt")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.2", ip)

	_, err = p.BladeIP("blade-a", 5, "mgmt")
	assert.Error(t, err)

	_, err = p.BladeIP("blade-b", 0, "mgmt")
	assert.Error(t, err)

	ep, err := p.BladeSSHEndpoint("blade-a", 0)
	require.NoError(t, err)
	assert.Equal(t, 22, ep.Port)
	assert.Equal(t, "10.0.0.1", ep.LocalIP)

	assert.Equal(t, "/usr/bin/python3", p.GetBladePythonExecutable())

	conns, err := p.SSHConnectBlades(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 3)
	assert.Equal(t, "blade-a", conns[0].BladeClass())
	assert.Equal(t, 0, conns[0].BladeInstance())
	pub, priv := conns[0].SSHKeyPaths()
	assert.Equal(t, "/keys/a0.pub", pub)
	assert.Equal(t, "/keys/a0", priv)
}
