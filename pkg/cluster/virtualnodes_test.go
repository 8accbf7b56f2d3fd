package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preparedCluster(t *testing.T) *Cluster {
	t.Helper()
	c := newTestCluster(t)
	require.NoError(t, c.Prepare(context.Background()))
	return c
}

func TestVirtualNodes_QueryMethods(t *testing.T) {
	c := preparedCluster(t)
	vn, err := c.GetVirtualNodes()
	require.NoError(t, err)

	assert.Equal(t, []string{"compute"}, vn.NodeClasses())
	assert.Equal(t, 2, vn.NodeCount("compute"))
	assert.Equal(t, 0, vn.NodeCount("unknown"))

	names := vn.NetworkNames("compute")
	assert.Contains(t, names, "mgmt-net")
	assert.Contains(t, names, "host-blade")

	hostname, err := vn.NodeHostname("compute", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "compute-001", hostname)

	hostBladeHostname, err := vn.NodeHostname("compute", 0, "host-blade")
	require.NoError(t, err)
	assert.Equal(t, "compute-host-blade", hostBladeHostname)

	_, err = vn.NodeHostname("compute", 0, "no-such-network")
	assert.Error(t, err)
}

func TestVirtualNodes_NodeSSHKeySecretPaths(t *testing.T) {
	c := preparedCluster(t)
	vn, err := c.GetVirtualNodes()
	require.NoError(t, err)

	pub, priv, err := vn.NodeSSHKeySecretPaths("compute")
	require.NoError(t, err)
	assert.NotEmpty(t, pub)
	assert.NotEmpty(t, priv)
}

func TestVirtualNetworks_QueryMethods(t *testing.T) {
	c := preparedCluster(t)
	vnets, err := c.GetVirtualNetworks()
	require.NoError(t, err)

	assert.Equal(t, []string{"mgmt-net"}, vnets.NetworkNames())

	cidr, err := vnets.IPv4CIDR("mgmt-net")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.0/24", cidr)

	_, err = vnets.IPv4CIDR("unknown")
	assert.Error(t, err)
}

func TestVirtualNodes_HostBladeIP(t *testing.T) {
	c := preparedCluster(t)
	vn, err := c.GetVirtualNodes()
	require.NoError(t, err)

	ip, err := vn.hostBladeIP("compute", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, ip)

	_, err = vn.hostBladeIP("compute", 5)
	assert.Error(t, err)

	_, err = vn.hostBladeIP("unknown", 0)
	assert.Error(t, err)
}
