package vmbuilder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

func TestInstanceRange(t *testing.T) {
	start, end := InstanceRange(10, 4, 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 4, end)

	start, end = InstanceRange(10, 4, 2)
	assert.Equal(t, 8, start)
	assert.Equal(t, 10, end)

	start, end = InstanceRange(10, 4, 3)
	assert.Equal(t, 10, start)
	assert.Equal(t, 10, end)
}

func TestHostname(t *testing.T) {
	nc := &config.NodeClass{BaseName: "compute"}
	assert.Equal(t, "compute-001", Hostname(nc, 0))
	assert.Equal(t, "compute-004", Hostname(nc, 3))

	nc.NodeNames = []string{"login"}
	assert.Equal(t, "login", Hostname(nc, 0))
	assert.Equal(t, "compute-002", Hostname(nc, 1))
}

func TestBuildInterfaces_DHCPDecisionRule(t *testing.T) {
	b := &Builder{
		Networks: map[string]*config.VirtualNetwork{
			"mgmt-net": {
				NetworkName: "mgmt-net",
				Devices:     config.DevicesSpec{BridgeName: "br-mgmt"},
				L3Configs:   map[string]*config.L3Config{config.FamilyInet: {CIDR: "10.1.0.0/24"}},
			},
		},
	}
	nc := &config.NodeClass{
		NetworkInterfaces: map[string]*config.NetworkInterface{
			"mgmt": {
				ClusterNetwork: "mgmt-net",
				AddrInfo: map[string]*config.AddrBlock{
					config.FamilyPacket: {Addresses: []string{"52:54:00:00:00:01", "52:54:00:00:00:02"}},
					config.FamilyInet:   {Mode: config.ModeStatic, Addresses: []string{"10.1.0.10"}},
				},
			},
		},
	}

	ifaces, err := b.buildInterfaces(nc, 0)
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.False(t, ifaces[0].DHCP4)
	assert.Equal(t, "10.1.0.10", ifaces[0].IPv4Addr)
	assert.Equal(t, 24, ifaces[0].IPv4NetLength)
	assert.Equal(t, "br-mgmt", ifaces[0].BridgeName)

	// instance 1 has no static address entry (len(addresses)==1) so
	// dhcp4 must be true per the instance >= len(addresses) clause.
	ifaces, err = b.buildInterfaces(nc, 1)
	require.NoError(t, err)
	assert.True(t, ifaces[0].DHCP4)
	assert.Empty(t, ifaces[0].IPv4Addr)
}

func TestRenderNetplan(t *testing.T) {
	out, err := RenderNetplan([]InterfaceInfo{
		{IfName: "mgmt", MACAddr: "52:54:00:00:00:01", IPv4Addr: "10.1.0.10", IPv4NetLength: 24},
		{IfName: "data", MACAddr: "52:54:00:00:00:02", DHCP4: true},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "10.1.0.10/24")
	assert.Contains(t, out, "dhcp4: true")
}

func TestBuildClass_EndToEnd(t *testing.T) {
	fake := subprocess.NewFake()
	nc := &config.NodeClass{
		BaseName:  "compute",
		NodeCount: 2,
		HostBlade: config.HostBladeRef{BladeClass: "blade-a", InstanceCapacity: 2},
		VirtualMachine: &config.VirtualMachineSpec{
			CPUCount:      2,
			MemorySizeMiB: 1024,
			BootDisk:      &config.Disk{TargetDevice: "vda"},
		},
		NetworkInterfaces: map[string]*config.NetworkInterface{
			"mgmt": {
				AddrInfo: map[string]*config.AddrBlock{
					config.FamilyPacket: {Addresses: []string{"52:54:00:00:00:01", "52:54:00:00:00:02"}},
				},
			},
		},
		VMXMLTemplate: `<domain><name>{{ hostname }}</name><uuid>{{ uuid }}</uuid></domain>`,
	}

	dir := t.TempDir()
	b := &Builder{
		Runner:    fake,
		LogDir:    dir,
		Networks:  map[string]*config.VirtualNetwork{},
		BaseDir:   filepath.Join(dir, "vtds"),
		PasswdDir: dir,
	}

	require.NoError(t, b.BuildClass(context.Background(), "compute", nc, 0))

	labels := make(map[string]bool)
	for _, inv := range fake.Invocations {
		labels[inv.Label] = true
	}
	assert.True(t, labels["virsh-define-compute-001"])
	assert.True(t, labels["virsh-start-compute-001"])
	assert.True(t, labels["virsh-define-compute-002"])

	assert.FileExists(t, filepath.Join(dir, "compute-001-passwd.txt"))
	assert.FileExists(t, filepath.Join(dir, "compute-002-passwd.txt"))
}
