package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/provider"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

func testConfig(t *testing.T, buildDir string) *config.ClusterConfig {
	t.Helper()
	tmplPath := filepath.Join(buildDir, "domain.xml.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte("<domain/>"), 0o644))

	return &config.ClusterConfig{
		HostBladeNetwork:  &config.HostBladeNetworkInput{CIDR: "10.255.0.0/24"},
		VMXMLTemplatePath: tmplPath,
		BuildDir:          buildDir,
		NodeClasses: map[string]*config.NodeClass{
			"compute": {
				BaseName:  "compute",
				NodeCount: 2,
				HostBlade: config.HostBladeRef{BladeClass: "blade-a", InstanceCapacity: 2},
				NetworkInterfaces: map[string]*config.NetworkInterface{
					"mgmt": {ClusterNetwork: "mgmt-net"},
				},
				VirtualMachine: &config.VirtualMachineSpec{
					CPUCount:      2,
					MemorySizeMiB: 2048,
					BootDisk:      &config.Disk{TargetDevice: "vda"},
				},
			},
		},
		Networks: map[string]*config.VirtualNetwork{
			"mgmt-net": {
				NetworkName:       "mgmt-net",
				BladeInterconnect: "mgmt",
				Devices:           config.DevicesSpec{Tunnel: "vx-mgmt", BridgeName: "br-mgmt"},
				L3Configs: map[string]*config.L3Config{
					config.FamilyInet: {CIDR: "10.1.0.0/24"},
				},
			},
		},
	}
}

func testProvider() *provider.Fake {
	p := provider.NewFake()
	p.Counts["blade-a"] = 1
	p.IPs["blade-a/0/mgmt"] = "10.1.1.1"
	return p
}

func newTestCluster(t *testing.T) *Cluster {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	return New(cfg, testProvider(), subprocess.NewFake(), t.TempDir(), filepath.Join(dir, "vtds-blade-agent"))
}

func TestCluster_PrepareValidateDeploy(t *testing.T) {
	c := newTestCluster(t)

	require.NoError(t, c.Prepare(context.Background()))
	require.NoError(t, c.Validate())

	pub, priv, err := c.NodeSSHKeyPaths("compute")
	require.NoError(t, err)
	assert.Contains(t, priv, "compute")
	assert.Equal(t, priv+".pub", pub)

	conn := &provider.FakeConn{Class: "blade-a", Instance: 0}
	fakeProvider := c.Provider.(*provider.Fake)
	fakeProvider.Connections = []provider.BladeConn{conn}

	require.NoError(t, c.Deploy(context.Background()))
	assert.NotEmpty(t, conn.Commands)
	assert.Len(t, conn.Copies, 3)
}

func TestCluster_OperationsRequirePrepare(t *testing.T) {
	c := newTestCluster(t)
	assert.Error(t, c.Validate())
	assert.Error(t, c.Deploy(context.Background()))
	assert.Error(t, c.Remove(context.Background()))

	_, err := c.GetVirtualNodes()
	assert.Error(t, err)
	_, err = c.GetVirtualNetworks()
	assert.Error(t, err)
}

func TestCluster_Remove(t *testing.T) {
	c := newTestCluster(t)
	require.NoError(t, c.Prepare(context.Background()))

	conn := &provider.FakeConn{Class: "blade-a", Instance: 0}
	fakeProvider := c.Provider.(*provider.Fake)
	fakeProvider.Connections = []provider.BladeConn{conn}

	require.NoError(t, c.Remove(context.Background()))
	require.Len(t, conn.Commands, 1)
	assert.Contains(t, conn.Commands[0], "virsh destroy compute-001")
	assert.Contains(t, conn.Commands[0], "virsh undefine compute-002")
	assert.Contains(t, conn.Commands[0], "ip link delete vx-mgmt")
}

func TestCluster_Validate_RejectsShortMACList(t *testing.T) {
	c := newTestCluster(t)
	require.NoError(t, c.Prepare(context.Background()))

	nc := c.plan.NodeClasses["compute"]
	nc.NetworkInterfaces["mgmt"].AddrInfo[config.FamilyPacket].Addresses = []string{"52:54:00:00:00:01"}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAC addresses")
}
